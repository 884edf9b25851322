package config

import (
	"testing"
	"time"
)

func TestConnectBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, maxConnectBackoff},
		{12, maxConnectBackoff},
	}
	for _, tc := range cases {
		if got := connectBackoff(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryUntilConnected(t *testing.T) {
	calls := 0
	retryUntilConnected("test", func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("expected a single call on success, got %d", calls)
	}
}
