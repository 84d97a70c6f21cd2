package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.timeout)
		assert.Equal(t, defaultUserAgent, client.agent)
		assert.Nil(t, client.limiter, "no rate limit by default")
	})

	t.Run("zero values use defaults", func(t *testing.T) {
		client := New(&Config{RateLimit: 2})
		assert.Equal(t, DefaultTimeout, client.timeout)
		assert.NotEmpty(t, client.agent)
		require.NotNil(t, client.limiter)
		assert.Equal(t, 1, client.limiter.Burst(), "burst is at least one")
	})
}

func TestDo_InjectsHeaders(t *testing.T) {
	var gotUA, gotAuth string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{UserAgent: "reviewcore-test/1.0", APIKey: "s3cret"})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, "reviewcore-test/1.0", gotUA)
	assert.Equal(t, "Bearer s3cret", gotAuth)
}

func TestDo_DefaultTimeout(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{Timeout: 50 * time.Millisecond})

	resp, err := client.Get(t.Context(), server.URL)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ContextTimeoutOverridesDefault(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{Timeout: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_BodyReadableAfterReturn(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("still here"))
	})

	client := newTestClient(t)

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(body))
}

func TestDo_RateLimitRespectsDeadline(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// One token, refilled once every 1000s.
	client := newTestClientWithConfig(t, &Config{RateLimit: 0.001, Burst: 1})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	closeResponseBody(t, resp)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestDo_Hooks(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	client := newTestClient(t)

	var beforeCalled bool
	var status int
	var elapsed time.Duration
	client.SetBeforeRequestHook(func(r *http.Request) {
		beforeCalled = true
		assert.Equal(t, server.URL, r.URL.String())
	})
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, d time.Duration) {
		assert.NoError(t, err)
		status = resp.StatusCode
		elapsed = d
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.True(t, beforeCalled)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Positive(t, elapsed)
}

func TestPostJSON(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://example.com/p/1", payload["url"])
		w.WriteHeader(http.StatusCreated)
	})

	client := newTestClient(t)

	resp, err := client.PostJSON(t.Context(), server.URL, map[string]string{"url": "https://example.com/p/1"})
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClose(t *testing.T) {
	client := New(nil)
	client.Close()
	client.Close()
}
