package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const pubsubMaxAttempts = 5

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

var errPubSubProjectMissing = errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")

// PubSubConfigured is true when both a project and the product index topic are set.
func PubSubConfigured() bool {
	return pubSubProjectID() != "" && ProductIndexTopic() != ""
}

func ProductIndexTopic() string {
	return strings.TrimSpace(os.Getenv("PRODUCT_INDEX_TOPIC"))
}

// GetPubSubClient returns the shared client, creating it on first use.
// Credentials come from PUBSUB_CREDENTIALS_JSON or Application Default Credentials.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := pubSubProjectID()
	if projectID == "" {
		return nil, errPubSubProjectMissing
	}
	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	var lastErr error
	for attempt := 1; attempt <= pubsubMaxAttempts; attempt++ {
		c, err := pubsub.NewClient(ctx, projectID, opts...)
		if err == nil {
			pubsubClient = c
			GetLogger().WithFields(logrus.Fields{"project_id": projectID, "attempt": attempt}).Info("pubsub.client.ready")
			return c, nil
		}
		lastErr = err

		wait := time.Second << min(attempt, 5)
		GetLogger().WithFields(logrus.Fields{
			"project_id": projectID,
			"attempt":    attempt,
			"retry_in":   wait.String(),
		}).Warn("pubsub.client.init_failed: " + err.Error())
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("init pubsub client: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("init pubsub client: %w", lastErr)
}

func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}

func pubSubProjectID() string {
	for _, key := range []string{"PUBSUB_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
