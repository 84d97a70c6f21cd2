package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/review"
)

type fakeService struct {
	mu        sync.Mutex
	submitted []review.Submission
	enqueued  []string
	tasks     map[string]*model.ReviewTask
	submitErr error
	statusErr error
	queue     review.QueueMetrics
}

func newFakeService() *fakeService {
	return &fakeService{tasks: make(map[string]*model.ReviewTask)}
}

func (f *fakeService) SubmitForReview(_ context.Context, sub review.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, sub)
	return "task-1", nil
}

func (f *fakeService) Enqueue(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, taskID)
	return true
}

func (f *fakeService) GetStatus(_ context.Context, taskID string) (*model.ReviewTask, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, errors.Newf("task %s not found", taskID).
			Category(errors.CategoryNotFound).
			Build()
	}
	return t, nil
}

func (f *fakeService) GetQueueMetrics() review.QueueMetrics {
	return f.queue
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSubmitReview(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	srv := New(Config{}, svc)

	body := `{"submitterId":"u-1","contentType":"post","externalUrl":"https://example.com/p/1",
		"declared":{"author":"Alice","title":"Stop phishing today"}}`
	rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/reviews", body)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[SubmitResponse](t, rec)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, model.StatusPending, resp.Status)
	assert.True(t, resp.Queued)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, model.ContentPost, svc.submitted[0].ContentType)
	assert.Equal(t, "Alice", svc.submitted[0].Declared.Author)
	assert.Equal(t, []string{"task-1"}, svc.enqueued)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSubmitReview_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{
			name:     "malformed json",
			body:     `{"submitterId":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "validation",
			body: `{"submitterId":"u-1","contentType":"video"}`,
			err: errors.Newf("unknown content type").
				Category(errors.CategoryValidation).
				Build(),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "store failure",
			body: `{"submitterId":"u-1","contentType":"post"}`,
			err: errors.Newf("database is locked").
				Category(errors.CategoryDatabase).
				Build(),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newFakeService()
			svc.submitErr = tt.err
			srv := New(Config{}, svc)

			rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/reviews", tt.body)

			require.Equal(t, tt.wantCode, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.CorrelationID)
			assert.Empty(t, svc.enqueued)
			if tt.wantCode == http.StatusInternalServerError {
				assert.NotContains(t, resp.Message, "database")
			}
		})
	}
}

func TestSubmitReview_BodyLimit(t *testing.T) {
	t.Parallel()

	srv := New(Config{BodyLimit: "1K"}, newFakeService())
	body := `{"submitterId":"` + strings.Repeat("x", 2048) + `"}`

	rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/reviews", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestGetReview(t *testing.T) {
	t.Parallel()

	next := time.Date(2026, 6, 2, 9, 30, 0, 0, time.UTC)
	svc := newFakeService()
	svc.tasks["task-9"] = &model.ReviewTask{
		ID:           "task-9",
		SubmitterID:  "u-1",
		ContentType:  model.ContentPost,
		ExternalURL:  "https://example.com/p/9",
		Status:       model.StatusCompleted,
		AttemptCount: 1,
		Check: model.ContinuousCheck{
			Enabled:       true,
			Status:        model.CheckActive,
			NextCheckTime: &next,
		},
		AuditHistory: []model.AuditEntry{
			{Actor: review.ActorSubmitter, Action: "submitted"},
			{Actor: review.ActorCommission, Action: "completed", Comment: "credited 100 points in 3 transactions"},
		},
		CheckHistory: []model.CheckHistoryEntry{
			{Result: model.CheckResultExists, Reward: 30},
		},
	}
	srv := New(Config{}, svc)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/reviews/task-9", "")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[TaskView](t, rec)
	assert.Equal(t, "task-9", view.TaskID)
	assert.Equal(t, model.StatusCompleted, view.Status)
	assert.True(t, view.ContinuousCheck.Enabled)
	require.NotNil(t, view.ContinuousCheck.NextCheckTime)
	assert.True(t, next.Equal(*view.ContinuousCheck.NextCheckTime))
	require.Len(t, view.AuditHistory, 2)
	assert.Equal(t, "completed", view.AuditHistory[1].Action)
	require.Len(t, view.ContinuousCheck.History, 1)
	assert.Equal(t, int64(30), view.ContinuousCheck.History[0].Reward)
}

func TestGetReview_NotFound(t *testing.T) {
	t.Parallel()

	srv := New(Config{}, newFakeService())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/reviews/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "task not found", resp.Message)
}

func TestGetQueue(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.queue = review.QueueMetrics{QueueLength: 3, ActiveWorkers: 2, BreakerState: "closed", Processed: 10}
	srv := New(Config{}, svc)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/queue", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[review.QueueMetrics](t, rec)
	assert.Equal(t, svc.queue, got)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("reviewcore_queue_length 0\n"))
	})

	var healthErr error
	srv := New(Config{}, newFakeService(),
		WithMetricsHandler(metrics),
		WithHealthCheck(func(context.Context) error { return healthErr }))

	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reviewcore_queue_length")

	healthErr = errors.NewStd("database unreachable")
	rec = do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	srv := New(Config{}, newFakeService())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStartShutdown(t *testing.T) {
	t.Parallel()

	srv := New(Config{Listen: "127.0.0.1:0"}, newFakeService())
	srv.Start()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
