// Package queue runs review attempts on a bounded worker pool. It keeps a
// FIFO of task ids, never runs two workers for one id, re-queues retries at
// the back and halts dispatch while the circuit breaker is open.
package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/logger"
)

// ErrQueueStopped is returned by Start on a manager that was stopped.
var ErrQueueStopped = errors.NewStd("review queue stopped")

// Result is what a handler reports for one attempt.
type Result struct {
	// Retry re-queues the task at the back.
	Retry bool
	// Critical counts the outcome toward the circuit breaker.
	Critical bool
	Err      error
}

// Handler processes one attempt of a task. The context carries the worker
// timeout.
type Handler func(ctx context.Context, taskID string) Result

// Config configures a Manager.
type Config struct {
	MaxConcurrency   int
	WorkerTimeout    time.Duration
	DispatchInterval time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns five workers, a two minute worker timeout, a one
// second tick and a breaker opening for five minutes after five critical
// outcomes in a row.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:   5,
		WorkerTimeout:    2 * time.Minute,
		DispatchInterval: time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  5 * time.Minute,
	}
}

// ConfigFromSettings maps queue settings onto Config.
func ConfigFromSettings(s *conf.QueueSettings) Config {
	return Config{
		MaxConcurrency:   s.MaxConcurrency,
		WorkerTimeout:    s.WorkerTimeout,
		DispatchInterval: s.DispatchInterval,
		BreakerThreshold: s.Breaker.Threshold,
		BreakerCooldown:  s.Breaker.Cooldown,
	}
}

// Metrics is a snapshot of the manager.
type Metrics struct {
	QueueLength        int
	ActiveWorkers      int
	CircuitBreakerOpen bool
	BreakerState       string
	Processed          int64
	Retried            int64
	Failed             int64
	Panics             int64
}

// Manager is the review queue.
type Manager struct {
	cfg     Config
	handler Handler
	sem     *semaphore.Weighted
	breaker *Breaker
	log     logger.Logger

	mu        sync.Mutex
	pending   []string
	queued    map[string]bool
	running   map[string]bool
	isRunning bool
	stopped   bool
	cancel    context.CancelFunc
	stats     Metrics

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a stopped manager. Zero config fields take defaults.
func NewManager(cfg Config, handler Handler) *Manager {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = def.WorkerTimeout
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = def.DispatchInterval
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	return &Manager{
		cfg:     cfg,
		handler: handler,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		log:     GetLogger(),
		queued:  make(map[string]bool),
		running: make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}
}

// Breaker exposes the dispatch breaker, mainly to subscribe to transitions.
func (m *Manager) Breaker() *Breaker {
	return m.breaker
}

// Start launches the dispatch loop. Tasks enqueued before Start are kept.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrQueueStopped
	}
	if m.isRunning {
		return nil
	}
	m.isRunning = true

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(loopCtx)

	m.log.Info("review queue started",
		logger.Int("max_concurrency", m.cfg.MaxConcurrency),
		logger.Int("queued", len(m.pending)))
	return nil
}

// Stop halts dispatch and waits for running workers, up to timeout.
// Tasks still queued stay pending in the store and are picked up again by
// the next rehydration.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if !m.isRunning {
		m.stopped = true
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.stopped = true
	m.cancel()
	done := m.done
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		<-done
		m.wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-finished:
		m.log.Info("review queue stopped")
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out waiting for review workers after %v", timeout)
	}
}

// Enqueue adds taskID at the back of the queue. It reports false, and
// changes nothing, when the id is already queued or being processed.
func (m *Manager) Enqueue(taskID string) bool {
	m.mu.Lock()
	if m.queued[taskID] || m.running[taskID] {
		m.mu.Unlock()
		return false
	}
	m.pending = append(m.pending, taskID)
	m.queued[taskID] = true
	m.mu.Unlock()

	m.signal()
	return true
}

// Metrics returns a snapshot of queue length, workers and breaker state.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	snap := m.stats
	snap.QueueLength = len(m.pending)
	snap.ActiveWorkers = len(m.running)
	m.mu.Unlock()

	state := m.breaker.State()
	snap.CircuitBreakerOpen = state == BreakerOpen
	snap.BreakerState = state.String()
	return snap
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		m.dispatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		case <-ticker.C:
		}
	}
}

// dispatch starts workers while slots and queued tasks are available.
func (m *Manager) dispatch(ctx context.Context) {
	for ctx.Err() == nil {
		if !m.breaker.Allow() {
			return
		}
		if !m.sem.TryAcquire(1) {
			return
		}

		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			m.sem.Release(1)
			return
		}
		id := m.pending[0]
		m.pending[0] = ""
		m.pending = m.pending[1:]
		delete(m.queued, id)
		m.running[id] = true
		m.wg.Add(1)
		m.mu.Unlock()

		go m.work(ctx, id)
	}
}

func (m *Manager) work(ctx context.Context, id string) {
	var res Result
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("review worker panic: %v", r)}
			m.log.Error("review worker panicked",
				logger.String("task_id", id),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			m.mu.Lock()
			m.stats.Panics++
			m.mu.Unlock()
		}
		// The breaker sees the outcome before the slot frees up.
		m.breaker.Record(res.Critical)
		m.sem.Release(1)
		m.finish(ctx, id, res)
		m.wg.Done()
	}()

	workerCtx, cancel := context.WithTimeout(ctx, m.cfg.WorkerTimeout)
	defer cancel()
	res = m.handler(workerCtx, id)
}

func (m *Manager) finish(ctx context.Context, id string, res Result) {
	m.mu.Lock()
	delete(m.running, id)
	m.stats.Processed++
	if res.Err != nil {
		m.stats.Failed++
	}
	requeue := res.Retry && ctx.Err() == nil && !m.queued[id]
	if requeue {
		m.stats.Retried++
		m.pending = append(m.pending, id)
		m.queued[id] = true
	}
	m.mu.Unlock()

	if res.Err != nil {
		m.log.Warn("review attempt ended with error",
			logger.String("task_id", id),
			logger.Bool("retry", requeue),
			logger.Bool("critical", res.Critical),
			logger.Error(res.Err))
	}
	m.signal()
}
