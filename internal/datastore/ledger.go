package datastore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
)

// CreateUser inserts a user.
func (ds *DataStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return validationError("user id is required", "id", user.ID)
	}
	if err := ds.db(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicateError(err, "user", user.ID)
		}
		return dbError(err, "create_user", "", "user_id", user.ID)
	}
	return nil
}

// GetUser loads one user.
func (ds *DataStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := ds.db(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user", id)
		}
		return nil, dbError(err, "get_user", "", "user_id", id)
	}
	return &user, nil
}

// Credit adds points to a user and appends the matching ledger entry in
// the same transaction. Amounts must be positive.
func (ds *DataStore) Credit(ctx context.Context, c Credit) (*model.TransactionRecord, error) {
	if c.Amount <= 0 {
		return nil, validationError("credit amount must be positive", "amount", c.Amount)
	}

	var record *model.TransactionRecord
	err := ds.Transaction(ctx, func(txi Interface) error {
		tx := txi.(*DataStore).db(ctx)

		res := tx.Model(&model.User{}).
			Where("id = ?", c.UserID).
			Updates(map[string]any{
				"points":       gorm.Expr("points + ?", c.Amount),
				"total_earned": gorm.Expr("total_earned + ?", c.Amount),
			})
		if res.Error != nil {
			return dbError(res.Error, "credit", errors.PriorityCritical, "user_id", c.UserID, "kind", c.Kind)
		}
		if res.RowsAffected == 0 {
			return notFoundError("user", c.UserID)
		}

		var user model.User
		if err := tx.Select("points").First(&user, "id = ?", c.UserID).Error; err != nil {
			return dbError(err, "credit", errors.PriorityCritical, "user_id", c.UserID)
		}

		record = &model.TransactionRecord{
			ID:          uuid.NewString(),
			UserID:      c.UserID,
			TaskID:      c.TaskID,
			SourceUser:  c.SourceUser,
			Kind:        c.Kind,
			Amount:      c.Amount,
			PointsAfter: user.Points,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.Create(record).Error; err != nil {
			return dbError(err, "credit", errors.PriorityCritical, "user_id", c.UserID, "task_id", c.TaskID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListTransactions returns ledger entries matching filter in creation order.
func (ds *DataStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionRecord, error) {
	q := ds.db(ctx).Model(&model.TransactionRecord{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.TaskID != "" {
		q = q.Where("task_id = ?", filter.TaskID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}

	var records []model.TransactionRecord
	if err := q.Order("created_at, id").Find(&records).Error; err != nil {
		return nil, dbError(err, "list_transactions", "")
	}
	return records, nil
}
