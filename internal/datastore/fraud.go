package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
)

// GetCommentLimit returns the record for a (url, nickname) pair, or nil
// when nothing has been approved for the pair yet.
func (ds *DataStore) GetCommentLimit(ctx context.Context, normalizedURL, nickname string) (*model.CommentLimitRecord, error) {
	var rec model.CommentLimitRecord
	err := ds.db(ctx).
		Where("normalized_url = ? AND author_nickname = ?", normalizedURL, nickname).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err, "get_comment_limit", "", "url", normalizedURL)
	}
	return &rec, nil
}

// RecordApprovedComment appends an approved comment to the (url, nickname)
// record, creating it on first use. When the record already holds limit
// comments the call fails with ErrCommentLimitReached and nothing changes.
func (ds *DataStore) RecordApprovedComment(ctx context.Context, normalizedURL, nickname string, comment model.ApprovedComment, limit int) (*model.CommentLimitRecord, error) {
	var out *model.CommentLimitRecord
	err := ds.Transaction(ctx, func(txi Interface) error {
		tx := txi.(*DataStore).db(ctx)

		seed := model.CommentLimitRecord{
			NormalizedURL:    normalizedURL,
			AuthorNickname:   nickname,
			ApprovedComments: model.ApprovedComments{},
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "normalized_url"}, {Name: "author_nickname"}},
			DoNothing: true,
		}).Create(&seed).Error
		if err != nil {
			return dbError(err, "record_approved_comment", "", "url", normalizedURL)
		}

		var current model.CommentLimitRecord
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("normalized_url = ? AND author_nickname = ?", normalizedURL, nickname).
			First(&current).Error
		if err != nil {
			return dbError(err, "record_approved_comment", "", "url", normalizedURL)
		}

		if current.ApprovedCount >= limit {
			return errors.New(fmt.Errorf("%w: %d of %d", ErrCommentLimitReached, current.ApprovedCount, limit)).
				Component(componentName).
				Category(errors.CategoryGate).
				Context("url", normalizedURL).
				Context("nickname", nickname).
				Build()
		}

		comment.ApprovedAt = comment.ApprovedAt.UTC()
		comments := append(current.ApprovedComments, comment)
		res := tx.Model(&model.CommentLimitRecord{}).
			Where("id = ? AND approved_count = ?", current.ID, current.ApprovedCount).
			Updates(map[string]any{
				"approved_count":    current.ApprovedCount + 1,
				"approved_comments": comments,
				"last_approved_at":  comment.ApprovedAt,
			})
		if res.Error != nil {
			return dbError(res.Error, "record_approved_comment", "", "url", normalizedURL)
		}
		if res.RowsAffected == 0 {
			return conflictError("record_approved_comment", fmt.Sprint(current.ID))
		}

		current.ApprovedCount++
		current.ApprovedComments = comments
		current.LastApprovedAt = &comment.ApprovedAt
		out = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDevice registers a device for a user.
func (ds *DataStore) CreateDevice(ctx context.Context, device *model.Device) error {
	if device.ID == "" || device.UserID == "" {
		return validationError("device id and user id are required", "id", device.ID)
	}
	if err := ds.db(ctx).Create(device).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicateError(err, "device", device.ID)
		}
		return dbError(err, "create_device", "", "device_id", device.ID)
	}
	return nil
}

// DevicesForUser lists a user's devices in registration order.
func (ds *DataStore) DevicesForUser(ctx context.Context, userID string) ([]model.Device, error) {
	var devices []model.Device
	if err := ds.db(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&devices).Error; err != nil {
		return nil, dbError(err, "devices_for_user", "", "user_id", userID)
	}
	return devices, nil
}

// AppendDeviceNote records a post published from a device.
func (ds *DataStore) AppendDeviceNote(ctx context.Context, note *model.DeviceNoteHistory) error {
	if note.At.IsZero() {
		note.At = time.Now()
	}
	note.At = note.At.UTC()
	if err := ds.db(ctx).Create(note).Error; err != nil {
		return dbError(err, "append_device_note", "", "device_id", note.DeviceID)
	}
	return nil
}

// LatestDeviceNote returns the newest note for a device at or after since,
// or nil when there is none.
func (ds *DataStore) LatestDeviceNote(ctx context.Context, deviceID string, since time.Time) (*model.DeviceNoteHistory, error) {
	var note model.DeviceNoteHistory
	err := ds.db(ctx).
		Where("device_id = ? AND at >= ?", deviceID, since.UTC()).
		Order("at DESC, id DESC").
		First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err, "latest_device_note", "", "device_id", deviceID)
	}
	return &note, nil
}

// CountNicknameApprovals counts the submitter's approved tasks for a nickname
// submitted at or after since, excluding one task id when given.
func (ds *DataStore) CountNicknameApprovals(ctx context.Context, submitterID, nickname string, since time.Time, excludeTaskID string) (int64, error) {
	q := ds.db(ctx).Model(&model.ReviewTask{}).
		Where("submitter_id = ? AND resolved_nickname = ?", submitterID, nickname).
		Where("status IN ?", model.ApprovedStatuses()).
		Where("submitted_at >= ?", since.UTC())
	if excludeTaskID != "" {
		q = q.Where("id <> ?", excludeTaskID)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, dbError(err, "count_nickname_approvals", "", "submitter_id", submitterID)
	}
	return n, nil
}
