package datastore

import (
	"context"
	"time"

	"github.com/gigshield/reviewcore/internal/model"
)

// ListDueChecks returns completed post tasks whose active continuous check is
// due at now, oldest due first.
func (ds *DataStore) ListDueChecks(ctx context.Context, now time.Time, limit int) ([]model.ReviewTask, error) {
	var tasks []model.ReviewTask
	q := ds.db(ctx).
		Where("status = ? AND content_type = ?", model.StatusCompleted, model.ContentPost).
		Where("check_enabled = ? AND check_status = ?", true, model.CheckActive).
		Where("check_next_check_time <= ?", now.UTC()).
		Order("check_next_check_time, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, dbError(err, "list_due_checks", "")
	}
	return tasks, nil
}

// UpdateCheck replaces the continuous check columns of a task whose check is
// still active and has completed exactly expectedRuns runs.
func (ds *DataStore) UpdateCheck(ctx context.Context, id string, expectedRuns int, check model.ContinuousCheck) error {
	res := ds.db(ctx).Model(&model.ReviewTask{}).
		Where("id = ? AND check_status = ? AND check_runs = ?", id, model.CheckActive, expectedRuns).
		Updates(checkColumns(check))
	if res.Error != nil {
		return dbError(res.Error, "update_check", "", "task_id", id)
	}
	if res.RowsAffected == 0 {
		return conflictError("update_check", id, "expected_runs", expectedRuns)
	}
	return nil
}

// AppendCheckHistory records one continuous check run.
func (ds *DataStore) AppendCheckHistory(ctx context.Context, entry *model.CheckHistoryEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	entry.At = entry.At.UTC()
	if err := ds.db(ctx).Create(entry).Error; err != nil {
		return dbError(err, "append_check_history", "", "task_id", entry.TaskID)
	}
	return nil
}

// checkColumns maps a ContinuousCheck onto its embedded column names.
// Times are stored in UTC so SQLite text comparison orders them correctly.
func checkColumns(c model.ContinuousCheck) map[string]any {
	return map[string]any{
		"check_enabled":         c.Enabled,
		"check_status":          c.Status,
		"check_next_check_time": utcPtr(c.NextCheckTime),
		"check_last_check_time": utcPtr(c.LastCheckTime),
		"check_runs":            c.Runs,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
