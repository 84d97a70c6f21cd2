// Package review wires the review queue, the decision engine, the
// anti-fraud gates and the commission calculator into the review lifecycle
// of a submitted task.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigshield/reviewcore/internal/commission"
	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/events"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/observability/metrics"
	"github.com/gigshield/reviewcore/internal/review/engine"
	"github.com/gigshield/reviewcore/internal/review/gate"
	"github.com/gigshield/reviewcore/internal/review/queue"
	"github.com/gigshield/reviewcore/internal/review/textnorm"
)

const componentName = "review"

// Audit actors.
const (
	ActorSubmitter  = "submitter"
	ActorEngine     = "system:review-engine"
	ActorGate       = "system:gate"
	ActorCommission = "system:commission"
)

// SystemErrorReason is the rejection reason of a task whose transient
// failures exhausted its attempts.
const SystemErrorReason = "system error, please contact support"

const (
	defaultPersistTimeout = 30 * time.Second
	defaultCheckInterval  = 24 * time.Hour
)

// Publisher receives domain events. *events.Bus satisfies it.
type Publisher interface {
	Publish(event events.Event) bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) bool { return false }

// Submission is a task handed in by a worker.
type Submission struct {
	SubmitterID string
	ContentType model.ContentType
	ExternalURL string
	Declared    model.DeclaredMetadata
}

// QueueMetrics is the externally visible queue snapshot.
type QueueMetrics struct {
	QueueLength        int    `json:"queueLength"`
	ActiveWorkers      int    `json:"activeWorkers"`
	CircuitBreakerOpen bool   `json:"circuitBreakerOpen"`
	BreakerState       string `json:"breakerState"`
	Processed          int64  `json:"processed"`
	Retried            int64  `json:"retried"`
}

// Service runs the review lifecycle. Create it with NewService.
type Service struct {
	store     datastore.Interface
	engine    *engine.Engine
	gates     *gate.Checker
	payouts   *commission.Calculator
	queue     *queue.Manager
	publisher Publisher
	metrics   *metrics.ReviewMetrics

	now            func() time.Time
	persistTimeout time.Duration
	checkInterval  time.Duration
	log            logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends decision and breaker events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics records review metrics.
func WithMetrics(m *metrics.ReviewMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPersistTimeout bounds the writes that follow an attempt.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) { s.persistTimeout = d }
}

// NewService creates a service and its queue. The queue is not started.
func NewService(store datastore.Interface, eng *engine.Engine, gates *gate.Checker, payouts *commission.Calculator, qcfg queue.Config, opts ...Option) *Service {
	s := &Service{
		store:          store,
		engine:         eng,
		gates:          gates,
		payouts:        payouts,
		publisher:      nopPublisher{},
		now:            time.Now,
		persistTimeout: defaultPersistTimeout,
		checkInterval:  defaultCheckInterval,
		log:            GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = queue.NewManager(qcfg, s.Handle)
	s.queue.Breaker().OnStateChange(s.onBreakerChange)
	return s
}

// Queue exposes the underlying queue manager.
func (s *Service) Queue() *queue.Manager {
	return s.queue
}

// Start starts the review queue.
func (s *Service) Start(ctx context.Context) error {
	return s.queue.Start(ctx)
}

// Stop stops the review queue, waiting up to timeout for running attempts.
func (s *Service) Stop(timeout time.Duration) error {
	return s.queue.Stop(timeout)
}

// SubmitForReview validates and stores a new pending task on its first
// attempt. The caller enqueues the returned id.
func (s *Service) SubmitForReview(ctx context.Context, sub Submission) (string, error) {
	if err := validateSubmission(&sub); err != nil {
		return "", err
	}
	if _, err := s.store.GetUser(ctx, sub.SubmitterID); err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return "", validationError("unknown submitter", "submitter_id", sub.SubmitterID)
		}
		return "", err
	}

	now := s.now().UTC()
	task := &model.ReviewTask{
		ID:           uuid.NewString(),
		SubmitterID:  sub.SubmitterID,
		ContentType:  sub.ContentType,
		ExternalURL:  sub.ExternalURL,
		Declared:     sub.Declared,
		SubmittedAt:  now,
		Status:       model.StatusPending,
		AttemptCount: 1,
	}
	err := s.store.Transaction(ctx, func(tx datastore.Interface) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditEntry{
			TaskID: task.ID,
			Actor:  ActorSubmitter,
			Action: "submitted",
			At:     now,
		})
	})
	if err != nil {
		return "", err
	}

	s.log.Info("task submitted for review",
		logger.String("task_id", task.ID),
		logger.String("submitter_id", task.SubmitterID),
		logger.String("content_type", string(task.ContentType)))
	return task.ID, nil
}

func validateSubmission(sub *Submission) error {
	sub.SubmitterID = strings.TrimSpace(sub.SubmitterID)
	sub.ExternalURL = strings.TrimSpace(sub.ExternalURL)
	switch {
	case sub.SubmitterID == "":
		return validationError("submitter id is required", "submitter_id", "")
	case !sub.ContentType.Valid():
		return validationError("unknown content type", "content_type", string(sub.ContentType))
	case sub.ExternalURL == "":
		return validationError("external url is required", "external_url", "")
	}
	d := sub.Declared
	switch sub.ContentType {
	case model.ContentPost:
		if strings.TrimSpace(d.Author) == "" && strings.TrimSpace(d.Title) == "" {
			return validationError("post needs a declared author or title", "declared", "")
		}
	case model.ContentComment:
		if strings.TrimSpace(d.CommentText) == "" {
			return validationError("comment text is required", "declared.comment_text", "")
		}
		if strings.TrimSpace(d.CommentAuthor) == "" {
			return validationError("comment author is required", "declared.comment_author", "")
		}
	}
	return nil
}

func validationError(msg, field, value string) error {
	return errors.Newf("%s", msg).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

// Enqueue schedules a pending task. It reports false when the task is
// already queued or under review.
func (s *Service) Enqueue(taskID string) bool {
	ok := s.queue.Enqueue(taskID)
	s.refreshQueueGauges()
	return ok
}

// GetStatus returns the task with its audit and continuous check history.
func (s *Service) GetStatus(ctx context.Context, taskID string) (*model.ReviewTask, error) {
	return s.store.GetTask(ctx, taskID)
}

// GetQueueMetrics returns the queue snapshot.
func (s *Service) GetQueueMetrics() QueueMetrics {
	m := s.queue.Metrics()
	return QueueMetrics{
		QueueLength:        m.QueueLength,
		ActiveWorkers:      m.ActiveWorkers,
		CircuitBreakerOpen: m.CircuitBreakerOpen,
		BreakerState:       m.BreakerState,
		Processed:          m.Processed,
		Retried:            m.Retried,
	}
}

// RequeuePending enqueues every pending task, oldest first. It is run at
// startup since the queue itself is not persisted.
func (s *Service) RequeuePending(ctx context.Context) (int, error) {
	ids, err := s.store.ListTaskIDsByStatus(ctx, model.StatusPending, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if s.Enqueue(id) {
			n++
		}
	}
	if n > 0 {
		s.log.Info("requeued pending tasks", logger.Int("count", n))
	}
	return n, nil
}

// Handle runs one review attempt. It is the queue handler.
func (s *Service) Handle(ctx context.Context, taskID string) queue.Result {
	defer s.refreshQueueGauges()
	start := s.now()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			s.log.Warn("queued task no longer exists", logger.String("task_id", taskID))
			return queue.Result{}
		}
		return s.storeFailure(taskID, err)
	}
	if task.Status != model.StatusPending {
		s.log.Debug("skipping task that is not pending",
			logger.String("task_id", taskID),
			logger.String("status", string(task.Status)))
		return queue.Result{}
	}

	var candidates []string
	if task.ContentType == model.ContentComment {
		devices, err := s.store.DevicesForUser(ctx, task.SubmitterID)
		if err != nil {
			return s.storeFailure(taskID, err)
		}
		for i := range devices {
			candidates = append(candidates, devices[i].Nickname)
		}
	}

	out := s.engine.Evaluate(ctx, task, candidates)
	if !out.Passed() && errors.Is(ctx.Err(), context.Canceled) {
		// Shutdown: the task stays pending on its current attempt.
		s.log.Info("review attempt abandoned on shutdown", logger.String("task_id", taskID))
		return queue.Result{}
	}
	if s.metrics != nil {
		s.metrics.RecordAttempt(out.Passed(), out.Result.FailureKind, s.now().Sub(start))
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	if out.Passed() {
		return s.approve(pctx, task, out)
	}
	return s.handleFailure(pctx, task, out)
}

func (s *Service) handleFailure(ctx context.Context, task *model.ReviewTask, out engine.Outcome) queue.Result {
	f := out.Failure
	now := s.now().UTC()
	log := s.log.With(
		logger.String("task_id", task.ID),
		logger.Int("attempt", task.AttemptCount),
		logger.String("failure_kind", string(f.Kind)))

	if engine.ShouldRetry(task, f.Kind) {
		err := s.store.Transaction(ctx, func(tx datastore.Interface) error {
			if err := tx.IncrementAttempt(ctx, task.ID, task.AttemptCount); err != nil {
				return err
			}
			return tx.AppendAudit(ctx, &model.AuditEntry{
				TaskID:  task.ID,
				Actor:   ActorEngine,
				Action:  "retry_scheduled",
				Comment: truncate(f.Reason),
				At:      now,
			})
		})
		if err != nil {
			return s.storeFailure(task.ID, err)
		}
		log.Info("review attempt failed, retry scheduled", logger.String("reason", f.Reason))
		s.publishDecision(task, model.StatusPending, task.AttemptCount+1, out.Result, "", f.Reason, 0, now)
		return queue.Result{Retry: true, Critical: f.Class.Critical(), Err: f}
	}

	reason := f.Reason
	if f.Kind.Retryable() {
		reason = SystemErrorReason
	}
	res := out.Result
	err := s.store.Transaction(ctx, func(tx datastore.Interface) error {
		if err := tx.UpdateStatus(ctx, task.ID, model.StatusPending, model.StatusRejected, datastore.TaskChanges{
			Verification:    &res,
			RejectionReason: &reason,
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditEntry{
			TaskID:  task.ID,
			Actor:   ActorEngine,
			Action:  string(model.StatusRejected),
			Comment: truncate(f.Reason),
			At:      now,
		})
	})
	if err != nil {
		return s.storeFailure(task.ID, err)
	}

	log.Info("task rejected", logger.String("reason", reason))
	if s.metrics != nil {
		s.metrics.RecordDecision(string(model.StatusRejected))
	}
	s.publishDecision(task, model.StatusRejected, task.AttemptCount, res, "", reason, 0, now)
	return queue.Result{Critical: f.Class.Critical()}
}

// approve moves a passing task through the gates and the payout in one
// transaction: mentor_approved, then manager_rejected on a gate block, or
// manager_approved and completed once the credits are written.
func (s *Service) approve(ctx context.Context, task *model.ReviewTask, out engine.Outcome) queue.Result {
	now := s.now().UTC()
	nick := textnorm.Fold(out.ResolvedNickname)
	res := out.Result

	var (
		decision gate.Decision
		records  []model.TransactionRecord
		final    model.Status
	)
	err := s.store.Transaction(ctx, func(tx datastore.Interface) error {
		if err := tx.UpdateStatus(ctx, task.ID, model.StatusPending, model.StatusMentorApproved, datastore.TaskChanges{
			Verification:     &res,
			ResolvedNickname: &nick,
		}); err != nil {
			return err
		}
		if err := s.audit(ctx, tx, task.ID, ActorEngine, model.StatusMentorApproved,
			fmt.Sprintf("confidence %.2f, risk %s", res.Confidence, res.RiskLevel), now); err != nil {
			return err
		}

		d, err := s.gates.Check(ctx, tx, task, nick)
		if err != nil {
			return err
		}
		if d.Allowed {
			if err := s.gates.Record(ctx, tx, task, nick); err != nil {
				if !errors.Is(err, datastore.ErrCommentLimitReached) {
					return err
				}
				d = gate.Decision{
					Gate:   gate.GateCommentLimit,
					Reason: fmt.Sprintf("comment limit reached: %q already has the maximum approved comments on %s", nick, task.ExternalURL),
				}
			}
		}
		decision = d

		if !d.Allowed {
			reason := d.Reason
			if err := tx.UpdateStatus(ctx, task.ID, model.StatusMentorApproved, model.StatusManagerRejected, datastore.TaskChanges{
				RejectionReason: &reason,
			}); err != nil {
				return err
			}
			final = model.StatusManagerRejected
			return s.audit(ctx, tx, task.ID, ActorGate, model.StatusManagerRejected, reason, now)
		}

		if err := tx.UpdateStatus(ctx, task.ID, model.StatusMentorApproved, model.StatusManagerApproved, datastore.TaskChanges{}); err != nil {
			return err
		}
		if err := s.audit(ctx, tx, task.ID, ActorGate, model.StatusManagerApproved, "", now); err != nil {
			return err
		}

		cfg, err := tx.GetTaskConfig(ctx, task.ContentType)
		if err != nil {
			return err
		}
		records, err = s.payouts.PayApproval(ctx, tx, task, cfg)
		if err != nil {
			return err
		}

		var changes datastore.TaskChanges
		if task.ContentType == model.ContentPost {
			next := now.Add(s.checkInterval)
			changes.Check = &model.ContinuousCheck{
				Enabled:       true,
				Status:        model.CheckActive,
				NextCheckTime: &next,
			}
		}
		if err := tx.UpdateStatus(ctx, task.ID, model.StatusManagerApproved, model.StatusCompleted, changes); err != nil {
			return err
		}
		final = model.StatusCompleted
		return s.audit(ctx, tx, task.ID, ActorCommission, model.StatusCompleted,
			fmt.Sprintf("credited %d points in %d transactions", totalPoints(records), len(records)), now)
	})
	if err != nil {
		return s.storeFailure(task.ID, err)
	}

	s.log.Info("review decided",
		logger.String("task_id", task.ID),
		logger.String("status", string(final)),
		logger.String("nickname", nick),
		logger.Float64("confidence", res.Confidence))

	if s.metrics != nil {
		s.metrics.RecordDecision(string(final))
		if !decision.Allowed {
			s.metrics.RecordGateBlock(string(decision.Gate))
		}
		for i := range records {
			s.metrics.AddPoints(string(records[i].Kind), records[i].Amount)
		}
	}
	s.publishDecision(task, final, task.AttemptCount, res, string(decision.Gate), decision.Reason, submitterPoints(records, task.SubmitterID), now)
	return queue.Result{}
}

func (s *Service) audit(ctx context.Context, tx datastore.Interface, taskID, actor string, status model.Status, comment string, at time.Time) error {
	return tx.AppendAudit(ctx, &model.AuditEntry{
		TaskID:  taskID,
		Actor:   actor,
		Action:  string(status),
		Comment: truncate(comment),
		At:      at,
	})
}

// storeFailure turns a persistence error into a queue result. Lost races
// are not errors; other failures are never retried and feed the breaker
// when critical.
func (s *Service) storeFailure(taskID string, err error) queue.Result {
	if errors.Is(err, datastore.ErrStatusConflict) {
		s.log.Info("task changed concurrently, dropping attempt", logger.String("task_id", taskID))
		return queue.Result{}
	}
	class := engine.Classify(err)
	s.log.Error("failed to persist review attempt",
		logger.String("task_id", taskID),
		logger.String("error_class", class.String()),
		logger.Error(err))
	return queue.Result{Critical: class.Critical(), Err: err}
}

func (s *Service) publishDecision(task *model.ReviewTask, status model.Status, attempt int, res model.VerificationResult, gateName, reason string, points int64, at time.Time) {
	s.publisher.Publish(events.DecisionEvent{
		TaskID:      task.ID,
		SubmitterID: task.SubmitterID,
		ContentType: string(task.ContentType),
		Status:      string(status),
		Attempt:     attempt,
		Confidence:  res.Confidence,
		RiskLevel:   string(res.RiskLevel),
		FailureKind: res.FailureKind,
		Gate:        gateName,
		Reason:      reason,
		Points:      points,
		At:          at,
	})
}

func (s *Service) onBreakerChange(from, to queue.BreakerState, consecutive int) {
	s.log.Warn("review queue circuit breaker changed state",
		logger.String("from", from.String()),
		logger.String("to", to.String()),
		logger.Int("consecutive_failures", consecutive))
	if s.metrics != nil {
		s.metrics.CircuitBreakerOpen.Set(boolGauge(to == queue.BreakerOpen))
	}
	s.publisher.Publish(events.BreakerEvent{
		From:                from.String(),
		To:                  to.String(),
		ConsecutiveFailures: consecutive,
		At:                  s.now().UTC(),
	})
}

func (s *Service) refreshQueueGauges() {
	if s.metrics == nil {
		return
	}
	m := s.queue.Metrics()
	s.metrics.SetQueue(m.QueueLength, m.ActiveWorkers, m.CircuitBreakerOpen)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func totalPoints(records []model.TransactionRecord) int64 {
	var total int64
	for i := range records {
		total += records[i].Amount
	}
	return total
}

func submitterPoints(records []model.TransactionRecord, submitterID string) int64 {
	var total int64
	for i := range records {
		if records[i].UserID == submitterID {
			total += records[i].Amount
		}
	}
	return total
}

// truncate keeps audit comments within their column.
func truncate(s string) string {
	const limit = 1024
	if len(s) <= limit {
		return s
	}
	r := []rune(s[:limit])
	return string(r[:len(r)-1])
}
