// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
)

// ErrStatusConflict is wrapped by every guarded update that matched no row
// because the task was no longer in the expected state.
var ErrStatusConflict = errors.NewStd("task state changed concurrently")

// ErrAlreadyExists is wrapped when an insert hits an existing primary key.
var ErrAlreadyExists = errors.NewStd("record already exists")

// ErrCommentLimitReached is returned when a (url, nickname) pair already
// holds the maximum number of approved comments.
var ErrCommentLimitReached = errors.NewStd("approved comment limit reached")

// Interface abstracts the underlying database implementation and defines the interface for database operations.
type Interface interface {
	// Transaction runs fn inside one database transaction. The store passed
	// to fn must be used for every call that belongs to the transaction.
	Transaction(ctx context.Context, fn func(tx Interface) error) error
	Close() error

	// review tasks
	CreateTask(ctx context.Context, task *model.ReviewTask) error
	GetTask(ctx context.Context, id string) (*model.ReviewTask, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status, changes TaskChanges) error
	IncrementAttempt(ctx context.Context, id string, current int) error
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	ListTaskIDsByStatus(ctx context.Context, status model.Status, limit int) ([]string, error)
	CountTasksByStatus(ctx context.Context) (map[model.Status]int64, error)

	// continuous checks
	ListDueChecks(ctx context.Context, now time.Time, limit int) ([]model.ReviewTask, error)
	UpdateCheck(ctx context.Context, id string, expectedRuns int, check model.ContinuousCheck) error
	AppendCheckHistory(ctx context.Context, entry *model.CheckHistoryEntry) error

	// ledger
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	Credit(ctx context.Context, credit Credit) (*model.TransactionRecord, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionRecord, error)

	// anti-fraud records
	GetCommentLimit(ctx context.Context, normalizedURL, nickname string) (*model.CommentLimitRecord, error)
	RecordApprovedComment(ctx context.Context, normalizedURL, nickname string, comment model.ApprovedComment, limit int) (*model.CommentLimitRecord, error)
	CreateDevice(ctx context.Context, device *model.Device) error
	DevicesForUser(ctx context.Context, userID string) ([]model.Device, error)
	AppendDeviceNote(ctx context.Context, note *model.DeviceNoteHistory) error
	LatestDeviceNote(ctx context.Context, deviceID string, since time.Time) (*model.DeviceNoteHistory, error)
	CountNicknameApprovals(ctx context.Context, submitterID, nickname string, since time.Time, excludeTaskID string) (int64, error)

	// pricing
	GetTaskConfig(ctx context.Context, contentType model.ContentType) (*model.TaskConfig, error)
	PutTaskConfig(ctx context.Context, cfg *model.TaskConfig) error
}

// TaskChanges are the optional columns written together with a status change.
type TaskChanges struct {
	Verification     *model.VerificationResult
	RejectionReason  *string
	ResolvedNickname *string
	Check            *model.ContinuousCheck
}

// Credit moves points to one user and records why.
type Credit struct {
	UserID     string
	TaskID     string
	SourceUser string
	Kind       model.TransactionKind
	Amount     int64
}

// TransactionFilter narrows ListTransactions. Empty fields match everything.
type TransactionFilter struct {
	UserID string
	TaskID string
	Kind   model.TransactionKind
}
