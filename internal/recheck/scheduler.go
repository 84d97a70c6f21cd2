// Package recheck runs the continuous check of approved posts: once a day a
// post is confirmed to still exist and its submitter earns the daily reward,
// until the check window closes or the post disappears.
package recheck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gigshield/reviewcore/internal/commission"
	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/events"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/observability/metrics"
)

const (
	componentName = "recheck"
	day           = 24 * time.Hour
)

// ExistenceChecker confirms a published post is still online.
type ExistenceChecker interface {
	CheckExists(ctx context.Context, rawURL string) (bool, error)
}

// Publisher receives check events.
type Publisher interface {
	Publish(event events.Event) bool
}

// Config configures a Scheduler.
type Config struct {
	Interval    time.Duration
	CallTimeout time.Duration
	Parallelism int
	BatchSize   int
}

// DefaultConfig ticks every minute, bounds each existence check to 15
// seconds and checks four posts at a time.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		CallTimeout: 15 * time.Second,
		Parallelism: 4,
		BatchSize:   200,
	}
}

// ConfigFromSettings maps recheck settings onto Config.
func ConfigFromSettings(s *conf.RecheckSettings) Config {
	return Config{
		Interval:    s.Interval,
		CallTimeout: s.CallTimeout,
		Parallelism: s.Parallelism,
		BatchSize:   s.BatchSize,
	}
}

// Summary counts the outcomes of one tick.
type Summary struct {
	Due     int
	Paid    int
	Expired int
	Deleted int
	Errors  int
}

func (s *Summary) add(r model.CheckResult) {
	switch r {
	case model.CheckResultExists:
		s.Paid++
	case model.CheckResultExpired:
		s.Expired++
	case model.CheckResultDeleted:
		s.Deleted++
	default:
		s.Errors++
	}
}

// Scheduler is the continuous check scheduler.
type Scheduler struct {
	store     datastore.Interface
	checker   ExistenceChecker
	payouts   *commission.Calculator
	publisher Publisher
	metrics   *metrics.ReviewMetrics
	cfg       Config
	now       func() time.Time
	log       logger.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPublisher sends check events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithMetrics records recheck metrics.
func WithMetrics(m *metrics.ReviewMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a stopped scheduler. Zero config fields take defaults.
func NewScheduler(store datastore.Interface, checker ExistenceChecker, payouts *commission.Calculator, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	s := &Scheduler{
		store:   store,
		checker: checker,
		payouts: payouts,
		cfg:     cfg,
		now:     time.Now,
		log:     GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a tick immediately and then every interval until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	go s.run(runCtx)
	s.log.Info("continuous check scheduler started", logger.Duration("interval", s.cfg.Interval))
}

// Stop cancels the loop and waits up to timeout for the current tick.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		s.log.Info("continuous check scheduler stopped")
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out waiting for continuous check tick after %v", timeout)
	}
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("continuous check tick failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes every check due now. Failures of single items are
// logged and counted; only a failing scan returns an error.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	now := s.now().UTC()
	due, err := s.store.ListDueChecks(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return Summary{}, errors.New(err).
			Component(componentName).
			Category(errors.CategoryScheduler).
			Context("operation", "list_due_checks").
			Build()
	}

	summary := Summary{Due: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i := range due {
		task := &due[i]
		g.Go(func() error {
			result := s.process(gctx, task, now)
			mu.Lock()
			summary.add(result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("continuous check tick completed",
		logger.Int("due", summary.Due),
		logger.Int("paid", summary.Paid),
		logger.Int("expired", summary.Expired),
		logger.Int("deleted", summary.Deleted),
		logger.Int("errors", summary.Errors))
	return summary, nil
}

// process runs one check and reports its result.
func (s *Scheduler) process(ctx context.Context, task *model.ReviewTask, now time.Time) model.CheckResult {
	log := s.log.With(logger.String("task_id", task.ID))

	cfg, err := s.store.GetTaskConfig(ctx, task.ContentType)
	if err != nil {
		log.Error("no pricing for continuous check", logger.Error(err))
		return s.recordError(ctx, task, now, err)
	}

	if task.Check.Runs >= cfg.ContinuousCheckDays {
		return s.finish(ctx, task, now, model.CheckExpired, model.CheckResultExpired,
			fmt.Sprintf("check window of %d days closed", cfg.ContinuousCheckDays))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	exists, err := s.checker.CheckExists(callCtx, task.ExternalURL)
	cancel()
	if err != nil {
		log.Warn("existence check failed, task stays due", logger.Error(err))
		return s.recordError(ctx, task, now, err)
	}
	if !exists {
		return s.finish(ctx, task, now, model.CheckDeleted, model.CheckResultDeleted,
			fmt.Sprintf("post %s is no longer available", task.ExternalURL))
	}
	return s.pay(ctx, task, cfg, now)
}

// pay credits the daily reward and moves the next check one day on.
func (s *Scheduler) pay(ctx context.Context, task *model.ReviewTask, cfg *model.TaskConfig, now time.Time) model.CheckResult {
	next := now.Add(day)
	if task.Check.NextCheckTime != nil {
		if n := task.Check.NextCheckTime.UTC().Add(day); n.After(now) {
			next = n
		}
	}
	check := model.ContinuousCheck{
		Enabled:       true,
		Status:        model.CheckActive,
		NextCheckTime: &next,
		LastCheckTime: &now,
		Runs:          task.Check.Runs + 1,
	}

	var (
		records []model.TransactionRecord
		reward  int64
	)
	err := s.store.Transaction(ctx, func(tx datastore.Interface) error {
		if err := tx.UpdateCheck(ctx, task.ID, task.Check.Runs, check); err != nil {
			return err
		}
		var err error
		records, err = s.payouts.PayDaily(ctx, tx, task, cfg)
		if err != nil {
			return err
		}
		reward = 0
		for i := range records {
			if records[i].UserID == task.SubmitterID {
				reward += records[i].Amount
			}
		}
		return tx.AppendCheckHistory(ctx, &model.CheckHistoryEntry{
			TaskID: task.ID,
			Result: model.CheckResultExists,
			Reward: reward,
			Detail: fmt.Sprintf("run %d", check.Runs),
			At:     now,
		})
	})
	if err != nil {
		return s.writeFailed(task, err)
	}

	if s.metrics != nil {
		for i := range records {
			s.metrics.AddPoints(string(records[i].Kind), records[i].Amount)
		}
	}
	s.emit(task, model.CheckResultExists, model.CheckActive, reward, "", now)
	return model.CheckResultExists
}

// finish ends the check with a terminal status.
func (s *Scheduler) finish(ctx context.Context, task *model.ReviewTask, now time.Time, status model.CheckStatus, result model.CheckResult, detail string) model.CheckResult {
	check := model.ContinuousCheck{
		Enabled:       false,
		Status:        status,
		LastCheckTime: &now,
		Runs:          task.Check.Runs + 1,
	}
	err := s.store.Transaction(ctx, func(tx datastore.Interface) error {
		if err := tx.UpdateCheck(ctx, task.ID, task.Check.Runs, check); err != nil {
			return err
		}
		return tx.AppendCheckHistory(ctx, &model.CheckHistoryEntry{
			TaskID: task.ID,
			Result: result,
			Detail: detail,
			At:     now,
		})
	})
	if err != nil {
		return s.writeFailed(task, err)
	}

	s.log.Info("continuous check ended",
		logger.String("task_id", task.ID),
		logger.String("status", string(status)),
		logger.String("detail", detail))
	s.emit(task, result, status, 0, detail, now)
	return result
}

// recordError appends an error entry without touching the schedule, so the
// task is picked up again on the next tick.
func (s *Scheduler) recordError(ctx context.Context, task *model.ReviewTask, now time.Time, cause error) model.CheckResult {
	detail := cause.Error()
	if len(detail) > 500 {
		detail = detail[:500]
	}
	if err := s.store.AppendCheckHistory(ctx, &model.CheckHistoryEntry{
		TaskID: task.ID,
		Result: model.CheckResultError,
		Detail: detail,
		At:     now,
	}); err != nil {
		s.log.Error("failed to record continuous check error",
			logger.String("task_id", task.ID),
			logger.Error(err))
	}
	s.emit(task, model.CheckResultError, model.CheckActive, 0, detail, now)
	return model.CheckResultError
}

func (s *Scheduler) writeFailed(task *model.ReviewTask, err error) model.CheckResult {
	if errors.Is(err, datastore.ErrStatusConflict) {
		s.log.Info("continuous check already handled elsewhere", logger.String("task_id", task.ID))
	} else {
		s.log.Error("failed to persist continuous check",
			logger.String("task_id", task.ID),
			logger.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordRecheck(string(model.CheckResultError))
	}
	return model.CheckResultError
}

func (s *Scheduler) emit(task *model.ReviewTask, result model.CheckResult, status model.CheckStatus, reward int64, detail string, at time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRecheck(string(result))
	}
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.CheckEvent{
		TaskID: task.ID,
		Result: string(result),
		Status: string(status),
		Reward: reward,
		Detail: detail,
		At:     at,
	})
}
