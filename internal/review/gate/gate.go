// Package gate holds the anti-fraud business rules applied after a task
// passes content verification: nickname reuse, per-post comment limits and
// device cooldown. A blocked gate overrides a passing verdict.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/review/textnorm"
)

// Gate names a rule.
type Gate string

const (
	GateNicknameReuse    Gate = "nickname_reuse"
	GateCommentLimit     Gate = "comment_limit"
	GateCommentDuplicate Gate = "comment_duplicate"
	GateDeviceCooldown   Gate = "device_cooldown"
)

// Store is the persistence the gates read and write.
type Store interface {
	GetCommentLimit(ctx context.Context, normalizedURL, nickname string) (*model.CommentLimitRecord, error)
	RecordApprovedComment(ctx context.Context, normalizedURL, nickname string, comment model.ApprovedComment, limit int) (*model.CommentLimitRecord, error)
	DevicesForUser(ctx context.Context, userID string) ([]model.Device, error)
	AppendDeviceNote(ctx context.Context, note *model.DeviceNoteHistory) error
	LatestDeviceNote(ctx context.Context, deviceID string, since time.Time) (*model.DeviceNoteHistory, error)
	CountNicknameApprovals(ctx context.Context, submitterID, nickname string, since time.Time, excludeTaskID string) (int64, error)
}

// Config holds the gate windows and limits.
type Config struct {
	NicknameWindow      time.Duration
	DeviceCooldown      time.Duration
	MaxApprovedComments int
}

// DefaultConfig returns a seven day nickname window and device cooldown and
// the standard comment cap.
func DefaultConfig() Config {
	return Config{
		NicknameWindow:      7 * 24 * time.Hour,
		DeviceCooldown:      7 * 24 * time.Hour,
		MaxApprovedComments: model.MaxApprovedComments,
	}
}

// ConfigFromSettings maps gate settings onto Config.
func ConfigFromSettings(s *conf.GateSettings) Config {
	return Config{
		NicknameWindow:      s.NicknameWindow,
		DeviceCooldown:      s.DeviceCooldown,
		MaxApprovedComments: s.MaxApprovedComments,
	}
}

// Decision is the result of running the gates for one task.
type Decision struct {
	Allowed bool
	Gate    Gate
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func block(g Gate, format string, args ...any) Decision {
	return Decision{Gate: g, Reason: fmt.Sprintf(format, args...)}
}

// Checker evaluates and records the anti-fraud gates. The store is passed
// per call so checks and records join the caller's transaction.
type Checker struct {
	cfg Config
	now func() time.Time
	log logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates a Checker.
func NewChecker(cfg Config, opts ...Option) *Checker {
	c := &Checker{cfg: cfg, now: time.Now, log: GetLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the gates that apply to task for the resolved nickname. An
// error means the gates could not be evaluated, not that they blocked.
func (c *Checker) Check(ctx context.Context, st Store, task *model.ReviewTask, nickname string) (Decision, error) {
	nick := textnorm.Fold(nickname)
	var (
		d   Decision
		err error
	)
	switch task.ContentType {
	case model.ContentPost:
		d, err = c.checkNickname(ctx, st, task, nick)
		if err == nil && d.Allowed {
			d, err = c.checkDevice(ctx, st, task, nick)
		}
	case model.ContentComment:
		d, err = c.checkComment(ctx, st, task, nick)
	default:
		d = allow()
	}
	if err != nil {
		return Decision{}, err
	}
	if !d.Allowed {
		c.log.Info("gate blocked task",
			logger.String("task_id", task.ID),
			logger.String("gate", string(d.Gate)),
			logger.String("nickname", nick))
	}
	return d, nil
}

func (c *Checker) checkNickname(ctx context.Context, st Store, task *model.ReviewTask, nick string) (Decision, error) {
	if nick == "" {
		return allow(), nil
	}
	since := c.now().Add(-c.cfg.NicknameWindow)
	n, err := st.CountNicknameApprovals(ctx, task.SubmitterID, nick, since, task.ID)
	if err != nil {
		return Decision{}, err
	}
	if n > 0 {
		return block(GateNicknameReuse, "nickname reused: %q was already approved for this account within %s",
			nick, humanDays(c.cfg.NicknameWindow)), nil
	}
	return allow(), nil
}

func (c *Checker) checkDevice(ctx context.Context, st Store, task *model.ReviewTask, nick string) (Decision, error) {
	device, err := c.deviceFor(ctx, st, task.SubmitterID, nick)
	if err != nil || device == nil {
		return allow(), err
	}
	note, err := st.LatestDeviceNote(ctx, device.ID, c.now().Add(-c.cfg.DeviceCooldown))
	if err != nil {
		return Decision{}, err
	}
	if note != nil && note.TaskID != task.ID {
		return block(GateDeviceCooldown, "device cooldown: device %q (%s) published %s on %s, wait %s between posts",
			device.ID, nick, note.URL, note.At.UTC().Format(time.DateOnly), humanDays(c.cfg.DeviceCooldown)), nil
	}
	return allow(), nil
}

func (c *Checker) checkComment(ctx context.Context, st Store, task *model.ReviewTask, nick string) (Decision, error) {
	key := NormalizeURL(task.ExternalURL)
	rec, err := st.GetCommentLimit(ctx, key, nick)
	if err != nil || rec == nil {
		return allow(), err
	}
	if rec.ApprovedCount >= c.cfg.MaxApprovedComments {
		return block(GateCommentLimit, "comment limit reached: %q already has %d approved comments on %s",
			nick, rec.ApprovedCount, task.ExternalURL), nil
	}
	fp := Fingerprint(task.Declared.CommentText)
	norm := NormalizeComment(task.Declared.CommentText)
	for _, prev := range rec.ApprovedComments {
		if prev.Fingerprint == fp || NormalizeComment(prev.Content) == norm {
			return block(GateCommentDuplicate, "duplicate comment: %q already posted this comment on %s (task %s)",
				nick, task.ExternalURL, prev.TaskID), nil
		}
	}
	return allow(), nil
}

// deviceFor returns the submitter's device registered under nick, if any.
func (c *Checker) deviceFor(ctx context.Context, st Store, userID, nick string) (*model.Device, error) {
	if nick == "" {
		return nil, nil
	}
	devices, err := st.DevicesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if textnorm.Fold(devices[i].Nickname) == nick {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// Record writes the anti-fraud bookkeeping for an approved task: the
// comment against its (url, nickname) pair, or a device note for a post
// published from one of the submitter's devices.
func (c *Checker) Record(ctx context.Context, st Store, task *model.ReviewTask, nickname string) error {
	nick := textnorm.Fold(nickname)
	now := c.now().UTC()

	switch task.ContentType {
	case model.ContentComment:
		_, err := st.RecordApprovedComment(ctx, NormalizeURL(task.ExternalURL), nick, model.ApprovedComment{
			TaskID:      task.ID,
			Content:     task.Declared.CommentText,
			Fingerprint: Fingerprint(task.Declared.CommentText),
			ApprovedAt:  now,
		}, c.cfg.MaxApprovedComments)
		return err

	case model.ContentPost:
		device, err := c.deviceFor(ctx, st, task.SubmitterID, nick)
		if err != nil || device == nil {
			return err
		}
		return st.AppendDeviceNote(ctx, &model.DeviceNoteHistory{
			DeviceID: device.ID,
			UserID:   task.SubmitterID,
			TaskID:   task.ID,
			URL:      task.ExternalURL,
			At:       now,
		})
	}
	return nil
}

func humanDays(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	if days == 1 {
		return "1 day"
	}
	if days > 1 {
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
