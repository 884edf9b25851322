package utils

import (
	"context"
	"testing"
	"time"
)

func TestSortedUnique(t *testing.T) {
	cases := []struct {
		name string
		in   []int
		want []int
	}{
		{"dupes", []int{5, 1, 5, 3, 1}, []int{1, 3, 5}},
		{"empty", nil, []int{}},
		{"single", []int{7}, []int{7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SortedUnique(tc.in)
			if got == nil || len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestTenantLock_NoRedisIsNoop(t *testing.T) {
	release, err := TenantLock(context.Background(), "stockLock", "tenant-a", time.Second, "test", "TestTenantLock")
	if err != nil {
		t.Fatalf("expected no error without redis, got %v", err)
	}
	release()

	lease, err := ObtainTenantLease(context.Background(), "reprocessLock", "tenant-a", time.Second)
	if err != nil || lease != nil {
		t.Fatalf("expected inert lease, got %v, %v", lease, err)
	}
	// nil lease methods are safe
	if err := lease.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	lease.Release()
}

func TestContextHelpers(t *testing.T) {
	ctx := SetTenantIdInContext(context.Background(), "tenant-a")
	ctx = SetCorrelationIdInContext(ctx, "corr-1")
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	detached := DetachedContext(cancelled)
	if detached.Err() != nil {
		t.Fatalf("detached context must not inherit cancellation")
	}
	if id, ok := GetTenantIdFromContext(detached); !ok || id != "tenant-a" {
		t.Fatalf("tenant lost on detach: %q", id)
	}
	if id, ok := GetCorrelationIdFromContext(detached); !ok || id != "corr-1" {
		t.Fatalf("correlation lost on detach: %q", id)
	}
}
