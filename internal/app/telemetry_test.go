package app

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{
		Message:    "verifier parse failed for https://social.example/u/alice/post/991",
		ServerName: "review-worker-3",
		User:       sentry.User{ID: "u-1", Email: "alice@example.com"},
		Tags:       map[string]string{"hostname": "review-worker-3", "category": "content-parse"},
		Contexts:   map[string]sentry.Context{"os": {"name": "linux"}, "trace": {"id": "x"}},
		Exception: []sentry.Exception{
			{Type: "error", Value: "GET https://social.example/u/alice/post/991: 502"},
		},
	}

	got := applyPrivacyFilters(event)

	assert.Empty(t, got.ServerName)
	assert.True(t, got.User.IsEmpty())
	assert.NotContains(t, got.Tags, "hostname")
	assert.Equal(t, "content-parse", got.Tags["category"])
	assert.NotContains(t, got.Contexts, "os")
	assert.Contains(t, got.Contexts, "trace")
	assert.NotContains(t, got.Message, "alice")
	assert.Contains(t, got.Message, "https://social.example/[redacted]")
	assert.NotContains(t, got.Exception[0].Value, "alice")
}
