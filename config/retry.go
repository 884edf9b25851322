package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

const maxConnectBackoff = 30 * time.Second

// connectBackoff doubles from 2s and caps at maxConnectBackoff.
func connectBackoff(attempt int) time.Duration {
	wait := time.Second << min(attempt, 5)
	if wait > maxConnectBackoff {
		return maxConnectBackoff
	}
	return wait
}

// retryUntilConnected calls connect until it succeeds. Startup has nothing useful to do
// without its dependencies, so there is no attempt limit.
func retryUntilConnected(target string, connect func() error) {
	for attempt := 1; ; attempt++ {
		err := connect()
		entry := GetLogger().WithFields(logrus.Fields{"target": target, "attempt": attempt})
		if err == nil {
			entry.Info("connect.ok")
			return
		}
		wait := connectBackoff(attempt)
		entry.WithFields(logrus.Fields{"retry_in": wait.String()}).Warn("connect.failed: " + err.Error())
		time.Sleep(wait)
	}
}
