//go:build integration || component

package testutil

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"
)

const defaultBrokers = "localhost:9092"

// Kafka topic names allow only [a-zA-Z0-9._-] and at most 249 characters.
const maxTopicLen = 249

var invalidTopicChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// TestBrokers returns the Redpanda seed brokers for tests that publish sync
// notifications. Set MKT_TEST_REDPANDA_BROKERS (comma separated) to override.
func TestBrokers() []string {
	brokers := os.Getenv("MKT_TEST_REDPANDA_BROKERS")
	if brokers == "" {
		brokers = defaultBrokers
	}
	return strings.Split(brokers, ",")
}

// TestTopicName returns a fresh notification topic for t, so parallel runs
// never read each other's records.
func TestTopicName(t *testing.T) string {
	t.Helper()
	suffix := fmt.Sprintf("-%d", time.Now().UnixNano())
	name := "marketplace-sync-test-" + strings.ToLower(invalidTopicChars.ReplaceAllString(t.Name(), "-"))
	if len(name)+len(suffix) > maxTopicLen {
		name = name[:maxTopicLen-len(suffix)]
	}
	return name + suffix
}
