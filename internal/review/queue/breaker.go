package queue

import (
	"sync"
	"time"

	"github.com/gigshield/reviewcore/internal/logger"
)

// BreakerState is the state of the dispatch circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets dispatch run normally.
	BreakerClosed BreakerState = iota
	// BreakerHalfOpen lets dispatch run after a cooldown; one more critical
	// outcome reopens the breaker.
	BreakerHalfOpen
	// BreakerOpen halts dispatch.
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half_open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerListener is told about every state transition.
type BreakerListener func(from, to BreakerState, consecutive int)

// Breaker halts dispatch after a run of consecutive critical outcomes.
// Any non-critical outcome resets the run, but an open breaker stays open
// until its cooldown has elapsed.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	listeners []BreakerListener
	log       logger.Logger
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		log:       GetLogger(),
	}
}

// OnStateChange registers fn for state transitions. Listeners run outside
// the breaker lock, on the goroutine that caused the transition.
func (b *Breaker) OnStateChange(fn BreakerListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Allow reports whether dispatch may proceed. An open breaker whose
// cooldown has elapsed moves to half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var notify func()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		notify = b.setStateLocked(BreakerHalfOpen)
	}
	allowed := b.state != BreakerOpen
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	return allowed
}

// Record feeds one task outcome into the breaker.
func (b *Breaker) Record(critical bool) {
	b.mu.Lock()
	var notify func()
	if critical {
		b.failures++
		switch {
		case b.state == BreakerHalfOpen,
			b.state == BreakerClosed && b.failures >= b.threshold:
			b.openedAt = b.now()
			notify = b.setStateLocked(BreakerOpen)
		}
	} else {
		b.failures = 0
		// An open breaker keeps its cooldown; only a half-open trial closes it.
		if b.state == BreakerHalfOpen {
			notify = b.setStateLocked(BreakerClosed)
		}
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// State returns the current state without advancing it.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current run of consecutive critical outcomes.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// OpenUntil returns when an open breaker may next allow dispatch, or the
// zero time when it is not open.
func (b *Breaker) OpenUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return time.Time{}
	}
	return b.openedAt.Add(b.cooldown)
}

// setStateLocked changes state and returns the listener notification to run
// once the lock is released.
func (b *Breaker) setStateLocked(to BreakerState) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	failures := b.failures
	listeners := append([]BreakerListener(nil), b.listeners...)

	b.log.Info("circuit breaker state transition",
		logger.String("old_state", from.String()),
		logger.String("new_state", to.String()),
		logger.Int("consecutive_failures", failures))

	return func() {
		for _, fn := range listeners {
			fn(from, to, failures)
		}
	}
}
