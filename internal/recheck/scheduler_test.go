package recheck

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigshield/reviewcore/internal/commission"
	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/events"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/testutil"
)

var day0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type fakeChecker struct {
	mu     sync.Mutex
	answer func(call int) (bool, error)
	calls  int
}

func (f *fakeChecker) CheckExists(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.answer == nil {
		return true, nil
	}
	return f.answer(f.calls)
}

type eventSink struct {
	mu     sync.Mutex
	events []events.CheckEvent
}

func (s *eventSink) Publish(e events.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := e.(events.CheckEvent); ok {
		s.events = append(s.events, c)
	}
	return true
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func setupStore(t *testing.T) *datastore.DataStore {
	t.Helper()
	return testutil.OpenSeededStore(t)
}

// approvalLag is how long before day0 the post was submitted; the review
// itself always takes some time.
const approvalLag = 2 * time.Second

// seedApprovedPost stores a post approved on day0 with its first check due
// a day later.
func seedApprovedPost(t *testing.T, ds *datastore.DataStore, id string) {
	t.Helper()
	seedPostApprovedAt(t, ds, id, day0.Add(-approvalLag), day0)
}

func seedPostApprovedAt(t *testing.T, ds *datastore.DataStore, id string, submitted, approved time.Time) {
	t.Helper()
	next := approved.Add(day)
	require.NoError(t, ds.CreateTask(t.Context(), &model.ReviewTask{
		ID:           id,
		SubmitterID:  "worker",
		ContentType:  model.ContentPost,
		ExternalURL:  "https://example.com/p/" + id,
		Declared:     model.DeclaredMetadata{Author: "Alice", Title: "Beware of scams"},
		SubmittedAt:  submitted,
		Status:       model.StatusCompleted,
		AttemptCount: 1,
		Check: model.ContinuousCheck{
			Enabled:       true,
			Status:        model.CheckActive,
			NextCheckTime: &next,
		},
	}))
}

func newScheduler(ds datastore.Interface, checker ExistenceChecker, clk *clock, sink *eventSink) *Scheduler {
	return NewScheduler(ds, checker, commission.NewCalculator(), DefaultConfig(),
		WithClock(clk.Now),
		WithPublisher(sink))
}

func pointsByUser(t *testing.T, ds *datastore.DataStore, taskID string) map[string]int64 {
	t.Helper()
	txs, err := ds.ListTransactions(t.Context(), datastore.TransactionFilter{TaskID: taskID})
	require.NoError(t, err)
	out := map[string]int64{}
	for _, tx := range txs {
		out[tx.UserID] += tx.Amount
	}
	return out
}

func TestRunOnce_PaysDailyUntilWindowCloses(t *testing.T) {
	t.Parallel()
	ds := setupStore(t)
	seedApprovedPost(t, ds, "post-1")
	clk := &clock{now: day0}
	sink := &eventSink{}
	s := newScheduler(ds, &fakeChecker{}, clk, sink)

	summary, err := s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, summary.Due, "nothing is due on the approval day")

	for d := 1; d <= 7; d++ {
		clk.set(day0.Add(time.Duration(d) * day))
		summary, err := s.RunOnce(t.Context())
		require.NoError(t, err)
		assert.Equal(t, Summary{Due: 1, Paid: 1}, summary, "day %d", d)

		task, err := ds.GetTask(t.Context(), "post-1")
		require.NoError(t, err)
		require.NotNil(t, task.Check.NextCheckTime)
		assert.Equal(t, day0.Add(time.Duration(d+1)*day), task.Check.NextCheckTime.UTC(), "day %d", d)
		assert.Equal(t, d, task.Check.Runs)
	}

	clk.set(day0.Add(8 * day))
	summary, err = s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Expired: 1}, summary)

	task, err := ds.GetTask(t.Context(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, model.CheckExpired, task.Check.Status)
	assert.False(t, task.Check.Enabled)
	require.Len(t, task.CheckHistory, 8)
	assert.Equal(t, model.CheckResultExpired, task.CheckHistory[7].Result)
	assert.Equal(t, int64(30), task.CheckHistory[0].Reward)

	assert.Equal(t, map[string]int64{"worker": 210, "lead": 21, "director": 7}, pointsByUser(t, ds, "post-1"))

	clk.set(day0.Add(9 * day))
	summary, err = s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, summary.Due)

	assert.Len(t, sink.events, 8)
}

func TestRunOnce_PaysSeventhDayAfterSlowReview(t *testing.T) {
	t.Parallel()
	ds := setupStore(t)
	approved := day0.Add(3 * time.Hour)
	seedPostApprovedAt(t, ds, "post-1", day0, approved)
	clk := &clock{}
	s := newScheduler(ds, &fakeChecker{}, clk, &eventSink{})

	for d := 1; d <= 7; d++ {
		clk.set(approved.Add(time.Duration(d) * day))
		summary, err := s.RunOnce(t.Context())
		require.NoError(t, err)
		assert.Equal(t, Summary{Due: 1, Paid: 1}, summary, "day %d", d)
	}

	clk.set(approved.Add(8 * day))
	summary, err := s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Expired: 1}, summary)
	assert.Equal(t, int64(210), pointsByUser(t, ds, "post-1")["worker"])
}

func TestRunOnce_DeletedPostStopsPaying(t *testing.T) {
	t.Parallel()
	ds := setupStore(t)
	seedApprovedPost(t, ds, "post-1")
	clk := &clock{}
	checker := &fakeChecker{answer: func(call int) (bool, error) { return call < 3, nil }}
	s := newScheduler(ds, checker, clk, &eventSink{})

	for d := 1; d <= 5; d++ {
		clk.set(day0.Add(time.Duration(d) * day))
		_, err := s.RunOnce(t.Context())
		require.NoError(t, err)
	}

	task, err := ds.GetTask(t.Context(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, model.CheckDeleted, task.Check.Status)
	assert.False(t, task.Check.Enabled)
	require.Len(t, task.CheckHistory, 3)
	assert.Equal(t, model.CheckResultDeleted, task.CheckHistory[2].Result)
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, int64(60), pointsByUser(t, ds, "post-1")["worker"])
}

func TestRunOnce_VerifierErrorKeepsTaskDue(t *testing.T) {
	t.Parallel()
	ds := setupStore(t)
	seedApprovedPost(t, ds, "post-1")
	clk := &clock{now: day0.Add(day)}
	checker := &fakeChecker{answer: func(call int) (bool, error) {
		if call == 1 {
			return false, errors.NewStd("scraper unavailable")
		}
		return true, nil
	}}
	sink := &eventSink{}
	s := newScheduler(ds, checker, clk, sink)

	summary, err := s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Errors: 1}, summary)

	task, err := ds.GetTask(t.Context(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, model.CheckActive, task.Check.Status)
	assert.Equal(t, day0.Add(day), task.Check.NextCheckTime.UTC())
	require.Len(t, task.CheckHistory, 1)
	assert.Equal(t, model.CheckResultError, task.CheckHistory[0].Result)
	assert.Contains(t, task.CheckHistory[0].Detail, "scraper unavailable")
	assert.Empty(t, pointsByUser(t, ds, "post-1"))

	summary, err = s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Paid: 1}, summary)
	require.Len(t, sink.events, 2)
	assert.Equal(t, "error", sink.events[0].Result)
	assert.Equal(t, "exists", sink.events[1].Result)
}

func TestRunOnce_LateTickDoesNotBackfill(t *testing.T) {
	t.Parallel()
	ds := setupStore(t)
	seedApprovedPost(t, ds, "post-1")
	late := day0.Add(3*day + 5*time.Hour)
	s := newScheduler(ds, &fakeChecker{}, &clock{now: late}, &eventSink{})

	summary, err := s.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Paid)

	task, err := ds.GetTask(t.Context(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, late.Add(day), task.Check.NextCheckTime.UTC())
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()
	ds := setupStore(t)
	seedApprovedPost(t, ds, "post-1")
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	s := NewScheduler(ds, &fakeChecker{}, commission.NewCalculator(), cfg,
		WithClock(func() time.Time { return day0.Add(day) }))

	s.Start(t.Context())
	s.Start(t.Context())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		task, err := ds.GetTask(context.Background(), "post-1")
		return err == nil && task.Check.Runs == 1
	}, testutil.DefaultTestTimeout, testutil.PollInterval)

	require.NoError(t, s.Stop(testutil.DefaultTestTimeout))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(testutil.ShortTestTimeout))
}
