// Package testutil holds shared test gating helpers.
package testutil

import (
	"os"
	"testing"
)

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// MongoURL returns the MongoDB URL for integration tests, skipping the test
// when none is configured.
func MongoURL(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set, skipping integration test")
	}
	return url
}
