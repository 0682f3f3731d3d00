package messages_test

import (
	"testing"

	"github.com/gametester/runctl/internal/messages"
)

func TestGetErrorMessage(t *testing.T) {
	t.Run("replaces every parameter", func(t *testing.T) {
		msg := messages.GetErrorMessage(messages.BackendRequestFailed, "Method", "GET", "Endpoint", "/status/abc", "Error", "connection refused")
		expected := "The request GET /status/abc failed: 'connection refused'."
		if msg != expected {
			t.Fatalf("Expected %q, got %q", expected, msg)
		}
	})

	t.Run("marks missing parameter values", func(t *testing.T) {
		msg := messages.GetErrorMessage(messages.FieldRequired, "Field")
		if msg != "The field 'NOT_DEFINED' is required." {
			t.Fatalf("Unexpected message %q", msg)
		}
	})

	t.Run("kind is exposed", func(t *testing.T) {
		if messages.PollingTimedOut.GetKind() != messages.KindTimeout {
			t.Fatalf("Expected timeout kind, got %s", messages.PollingTimedOut.GetKind())
		}
	})
}
