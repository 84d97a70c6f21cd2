package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigshield/reviewcore/internal/model"
)

// setupTestStore creates an in-memory SQLite store with the full schema.
func setupTestStore(t *testing.T) *DataStore {
	t.Helper()
	ds, err := OpenSQLite(":memory:", time.Second)
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func newTask(id string) *model.ReviewTask {
	return &model.ReviewTask{
		ID:           id,
		SubmitterID:  "worker-1",
		ContentType:  model.ContentPost,
		ExternalURL:  "https://example.com/p/" + id,
		Declared:     model.DeclaredMetadata{Author: "Alice", Title: "Spring picnic"},
		SubmittedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:       model.StatusPending,
		AttemptCount: 1,
	}
}

func TestOpenSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "review.db")
	ds, err := OpenSQLite(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	assert.FileExists(t, path)
}

func TestCreateAndGetTask(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)

	require.NoError(t, ds.CreateTask(ctx, newTask("t1")))
	require.NoError(t, ds.AppendAudit(ctx, &model.AuditEntry{TaskID: "t1", Actor: "system", Action: "submitted"}))
	require.NoError(t, ds.AppendAudit(ctx, &model.AuditEntry{TaskID: "t1", Actor: "system", Action: "mentor_approved"}))

	got, err := ds.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Declared.Author)
	assert.Equal(t, model.StatusPending, got.Status)
	require.Len(t, got.AuditHistory, 2)
	assert.Equal(t, "submitted", got.AuditHistory[0].Action)
	assert.Equal(t, "mentor_approved", got.AuditHistory[1].Action)

	err = ds.CreateTask(ctx, newTask("t1"))
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = ds.GetTask(ctx, "missing")
	require.Error(t, err)
}

func TestCreateTask_Validation(t *testing.T) {
	ds := setupTestStore(t)

	task := newTask("bad")
	task.ContentType = "video"
	require.Error(t, ds.CreateTask(context.Background(), task))
}

func TestUpdateStatus_GuardedByCurrentStatus(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	require.NoError(t, ds.CreateTask(ctx, newTask("t1")))

	sim := 92.5
	reason := ""
	nick := "alice"
	err := ds.UpdateStatus(ctx, "t1", model.StatusPending, model.StatusMentorApproved, TaskChanges{
		Verification: &model.VerificationResult{
			Passed:           true,
			Confidence:       0.77,
			Reasons:          []string{"author matched"},
			RiskLevel:        model.RiskLow,
			AuthorSimilarity: &sim,
		},
		RejectionReason:  &reason,
		ResolvedNickname: &nick,
	})
	require.NoError(t, err)

	// A second writer still believing the task is pending loses.
	err = ds.UpdateStatus(ctx, "t1", model.StatusPending, model.StatusRejected, TaskChanges{})
	require.ErrorIs(t, err, ErrStatusConflict)

	got, err := ds.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusMentorApproved, got.Status)
	assert.Equal(t, "alice", got.ResolvedNickname)
	require.NotNil(t, got.Verification)
	assert.True(t, got.Verification.Passed)
	assert.InDelta(t, 0.77, got.Verification.Confidence, 1e-9)
	require.NotNil(t, got.Verification.AuthorSimilarity)
	assert.InDelta(t, 92.5, *got.Verification.AuthorSimilarity, 1e-9)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	require.NoError(t, ds.CreateTask(ctx, newTask("t1")))

	err := ds.UpdateStatus(ctx, "t1", model.StatusCompleted, model.StatusPending, TaskChanges{})
	var illegal *model.ErrIllegalTransition
	require.ErrorAs(t, err, &illegal)
}

func TestIncrementAttempt(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	require.NoError(t, ds.CreateTask(ctx, newTask("t1")))

	require.NoError(t, ds.IncrementAttempt(ctx, "t1", 1))
	require.ErrorIs(t, ds.IncrementAttempt(ctx, "t1", 1), ErrStatusConflict)
	require.Error(t, ds.IncrementAttempt(ctx, "t1", 2), "cap must not be exceeded")

	got, err := ds.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.AttemptCount)
}

func TestListTaskIDsAndCounts(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)

	for i, id := range []string{"b", "a", "c"} {
		task := newTask(id)
		task.SubmittedAt = task.SubmittedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, ds.CreateTask(ctx, task))
	}
	require.NoError(t, ds.UpdateStatus(ctx, "c", model.StatusPending, model.StatusRejected, TaskChanges{}))

	ids, err := ds.ListTaskIDsByStatus(ctx, model.StatusPending, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	counts, err := ds.CountTasksByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.StatusPending])
	assert.Equal(t, int64(1), counts[model.StatusRejected])
}

func TestCredit(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	require.NoError(t, ds.CreateUser(ctx, &model.User{ID: "u1", Points: 10}))

	rec, err := ds.Credit(ctx, Credit{UserID: "u1", TaskID: "t1", Kind: model.TxTaskReward, Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(110), rec.PointsAfter)

	user, err := ds.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(110), user.Points)
	assert.Equal(t, int64(100), user.TotalEarned)

	_, err = ds.Credit(ctx, Credit{UserID: "ghost", TaskID: "t1", Kind: model.TxTaskReward, Amount: 5})
	require.Error(t, err)

	_, err = ds.Credit(ctx, Credit{UserID: "u1", TaskID: "t1", Kind: model.TxTaskReward, Amount: 0})
	require.Error(t, err)

	records, err := ds.ListTransactions(ctx, TransactionFilter{TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestTransaction_RollsBackCredits(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	require.NoError(t, ds.CreateUser(ctx, &model.User{ID: "u1"}))

	boom := errors.New("boom")
	err := ds.Transaction(ctx, func(tx Interface) error {
		if _, err := tx.Credit(ctx, Credit{UserID: "u1", TaskID: "t1", Kind: model.TxTaskReward, Amount: 50}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	user, err := ds.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, user.Points)

	records, err := ds.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordApprovedComment_EnforcesLimit(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	url := "https://example.com/p/1"
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	rec, err := ds.GetCommentLimit(ctx, url, "bob")
	require.NoError(t, err)
	assert.Nil(t, rec)

	for i, text := range []string{"first", "second"} {
		rec, err = ds.RecordApprovedComment(ctx, url, "bob", model.ApprovedComment{
			TaskID: text, Content: text, ApprovedAt: now,
		}, model.MaxApprovedComments)
		require.NoError(t, err)
		assert.Equal(t, i+1, rec.ApprovedCount)
	}

	_, err = ds.RecordApprovedComment(ctx, url, "bob", model.ApprovedComment{TaskID: "third"}, model.MaxApprovedComments)
	require.ErrorIs(t, err, ErrCommentLimitReached)

	rec, err = ds.GetCommentLimit(ctx, url, "bob")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.ApprovedCount)
	require.Len(t, rec.ApprovedComments, 2)
	assert.Equal(t, "second", rec.ApprovedComments[1].Content)

	// Other nicknames on the same url are counted separately.
	rec, err = ds.RecordApprovedComment(ctx, url, "carol", model.ApprovedComment{TaskID: "c1"}, model.MaxApprovedComments)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ApprovedCount)
}

func TestDeviceNotes(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ds.CreateDevice(ctx, &model.Device{ID: "d1", UserID: "u1", Nickname: "Alice"}))
	require.NoError(t, ds.CreateDevice(ctx, &model.Device{ID: "d2", UserID: "u1", Nickname: "Alice2"}))
	devices, err := ds.DevicesForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	require.NoError(t, ds.AppendDeviceNote(ctx, &model.DeviceNoteHistory{DeviceID: "d1", UserID: "u1", URL: "a", At: now.Add(-10 * 24 * time.Hour)}))
	note, err := ds.LatestDeviceNote(ctx, "d1", now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, note, "notes outside the window are ignored")

	require.NoError(t, ds.AppendDeviceNote(ctx, &model.DeviceNoteHistory{DeviceID: "d1", UserID: "u1", URL: "b", At: now.Add(-2 * 24 * time.Hour)}))
	note, err = ds.LatestDeviceNote(ctx, "d1", now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "b", note.URL)
}

func TestCountNicknameApprovals(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	nick := "alice"

	approve := func(id string, submitted time.Time) {
		task := newTask(id)
		task.SubmittedAt = submitted
		require.NoError(t, ds.CreateTask(ctx, task))
		require.NoError(t, ds.UpdateStatus(ctx, id, model.StatusPending, model.StatusManagerApproved, TaskChanges{ResolvedNickname: &nick}))
	}
	approve("old", base.Add(-8*24*time.Hour))
	approve("recent", base.Add(-24*time.Hour))

	n, err := ds.CountNicknameApprovals(ctx, "worker-1", nick, base.Add(-7*24*time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = ds.CountNicknameApprovals(ctx, "worker-1", nick, base.Add(-7*24*time.Hour), "recent")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = ds.CountNicknameApprovals(ctx, "worker-2", nick, base.Add(-7*24*time.Hour), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContinuousChecks(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)
	later := now.Add(time.Hour)

	complete := func(id string, next time.Time) {
		require.NoError(t, ds.CreateTask(ctx, newTask(id)))
		require.NoError(t, ds.UpdateStatus(ctx, id, model.StatusPending, model.StatusManagerApproved, TaskChanges{}))
		require.NoError(t, ds.UpdateStatus(ctx, id, model.StatusManagerApproved, model.StatusCompleted, TaskChanges{
			Check: &model.ContinuousCheck{Enabled: true, Status: model.CheckActive, NextCheckTime: &next},
		}))
	}
	complete("due", due)
	complete("notyet", later)

	tasks, err := ds.ListDueChecks(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "due", tasks[0].ID)

	next := now.Add(24 * time.Hour)
	check := model.ContinuousCheck{Enabled: true, Status: model.CheckActive, NextCheckTime: &next, LastCheckTime: &now, Runs: 1}
	require.NoError(t, ds.UpdateCheck(ctx, "due", 0, check))
	require.ErrorIs(t, ds.UpdateCheck(ctx, "due", 0, check), ErrStatusConflict)
	require.NoError(t, ds.AppendCheckHistory(ctx, &model.CheckHistoryEntry{TaskID: "due", Result: model.CheckResultExists, Reward: 10, At: now}))

	tasks, err = ds.ListDueChecks(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	got, err := ds.GetTask(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Check.Runs)
	require.Len(t, got.CheckHistory, 1)
	assert.Equal(t, int64(10), got.CheckHistory[0].Reward)
}

func TestTaskConfigCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	ds := setupTestStore(t)

	_, err := ds.GetTaskConfig(ctx, model.ContentPost)
	require.Error(t, err)

	require.NoError(t, ds.PutTaskConfig(ctx, &model.TaskConfig{ContentType: model.ContentPost, Price: 100}))
	cfg, err := ds.GetTaskConfig(ctx, model.ContentPost)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cfg.Price)

	require.NoError(t, ds.PutTaskConfig(ctx, &model.TaskConfig{ContentType: model.ContentPost, Price: 120}))
	cfg, err = ds.GetTaskConfig(ctx, model.ContentPost)
	require.NoError(t, err)
	assert.Equal(t, int64(120), cfg.Price)
}
