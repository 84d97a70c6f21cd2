package datastore

import (
	"context"
	"maps"
	"time"

	"gorm.io/gorm"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
)

// CreateTask inserts a new review task.
func (ds *DataStore) CreateTask(ctx context.Context, task *model.ReviewTask) error {
	switch {
	case task.ID == "":
		return validationError("task id is required", "id", task.ID)
	case !task.ContentType.Valid():
		return validationError("unknown content type", "content_type", task.ContentType)
	case !task.Status.Valid():
		return validationError("unknown status", "status", task.Status)
	}

	task.SubmittedAt = task.SubmittedAt.UTC()
	if err := ds.db(ctx).Create(task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicateError(err, "review_task", task.ID)
		}
		return dbError(err, "create_task", "", "task_id", task.ID)
	}
	return nil
}

// GetTask loads a task with its audit and check histories in insertion order.
func (ds *DataStore) GetTask(ctx context.Context, id string) (*model.ReviewTask, error) {
	var task model.ReviewTask
	err := ds.db(ctx).
		Preload("AuditHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("CheckHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("review_task", id)
		}
		return nil, dbError(err, "get_task", "", "task_id", id)
	}
	return &task, nil
}

// UpdateStatus moves a task from one status to another together with the
// given columns. The update only applies while the task is still in from;
// otherwise an error wrapping ErrStatusConflict is returned.
func (ds *DataStore) UpdateStatus(ctx context.Context, id string, from, to model.Status, changes TaskChanges) error {
	if err := model.ValidateTransition(from, to); err != nil {
		return stateError(err, "update_status", "transition", "task_id", id)
	}

	updates := map[string]any{"status": to}
	if changes.Verification != nil {
		updates["verification"] = *changes.Verification
	}
	if changes.RejectionReason != nil {
		updates["rejection_reason"] = *changes.RejectionReason
	}
	if changes.ResolvedNickname != nil {
		updates["resolved_nickname"] = *changes.ResolvedNickname
	}
	if changes.Check != nil {
		maps.Copy(updates, checkColumns(*changes.Check))
	}

	res := ds.db(ctx).Model(&model.ReviewTask{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return dbError(res.Error, "update_status", "", "task_id", id, "from", from, "to", to)
	}
	if res.RowsAffected == 0 {
		return conflictError("update_status", id, "from", from, "to", to)
	}
	return nil
}

// IncrementAttempt bumps the attempt counter of a pending task whose counter
// still equals current and is below model.MaxAttempts.
func (ds *DataStore) IncrementAttempt(ctx context.Context, id string, current int) error {
	if current >= model.MaxAttempts {
		return validationError("attempt cap reached", "attempt_count", current)
	}

	res := ds.db(ctx).Model(&model.ReviewTask{}).
		Where("id = ? AND status = ? AND attempt_count = ?", id, model.StatusPending, current).
		Update("attempt_count", gorm.Expr("attempt_count + 1"))
	if res.Error != nil {
		return dbError(res.Error, "increment_attempt", "", "task_id", id)
	}
	if res.RowsAffected == 0 {
		return conflictError("increment_attempt", id, "attempt_count", current)
	}
	return nil
}

// AppendAudit records one decision on a task.
func (ds *DataStore) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	entry.At = entry.At.UTC()
	if err := ds.db(ctx).Create(entry).Error; err != nil {
		return dbError(err, "append_audit", "", "task_id", entry.TaskID, "action", entry.Action)
	}
	return nil
}

// ListTaskIDsByStatus returns task ids in submission order.
func (ds *DataStore) ListTaskIDsByStatus(ctx context.Context, status model.Status, limit int) ([]string, error) {
	var ids []string
	q := ds.db(ctx).Model(&model.ReviewTask{}).
		Where("status = ?", status).
		Order("submitted_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, dbError(err, "list_task_ids", "", "status", status)
	}
	return ids, nil
}

// CountTasksByStatus returns the number of tasks per status.
func (ds *DataStore) CountTasksByStatus(ctx context.Context) (map[model.Status]int64, error) {
	var rows []struct {
		Status model.Status
		Count  int64
	}
	err := ds.db(ctx).Model(&model.ReviewTask{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, "count_tasks_by_status", "")
	}

	counts := make(map[model.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
