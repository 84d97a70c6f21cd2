package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gigshield/reviewcore/internal/logger"
)

// Config holds event bus configuration.
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 1000, Workers: 2}
}

// Bus delivers events to every registered consumer on a small worker pool.
type Bus struct {
	eventChan chan Event
	workers   int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	mu        sync.Mutex
	consumers []Consumer

	stats Stats
	log   logger.Logger
}

// New creates a stopped bus. Zero config fields take defaults.
func New(cfg Config) *Bus {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		eventChan: make(chan Event, cfg.BufferSize),
		workers:   cfg.Workers,
		ctx:       ctx,
		cancel:    cancel,
		log:       GetLogger(),
	}
}

// Subscribe adds a consumer. Names must be unique.
func (b *Bus) Subscribe(c Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == c.Name() {
			return fmt.Errorf("consumer %s already registered", c.Name())
		}
	}
	b.consumers = append(b.consumers, c)
	b.log.Info("registered event consumer", logger.String("consumer", c.Name()))
	return nil
}

// Start launches the workers.
func (b *Bus) Start() {
	if b.running.Swap(true) {
		return
	}
	for i := range b.workers {
		b.wg.Add(1)
		go b.worker(i)
	}
}

// Publish hands event to the workers without blocking. It reports false
// when the bus is not running, has no consumers, or its buffer is full.
func (b *Bus) Publish(event Event) bool {
	if b == nil || !b.running.Load() {
		return false
	}

	b.mu.Lock()
	hasConsumers := len(b.consumers) > 0
	b.mu.Unlock()
	if !hasConsumers {
		return false
	}

	select {
	case b.eventChan <- event:
		atomic.AddUint64(&b.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&b.stats.EventsDropped, 1)
		b.log.Debug("event dropped due to full buffer", logger.String("kind", string(event.Kind())))
		return false
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			b.drain()
			return
		case event := <-b.eventChan:
			b.deliver(event, id)
		}
	}
}

// drain delivers whatever is still buffered once shutdown has begun.
func (b *Bus) drain() {
	for {
		select {
		case event := <-b.eventChan:
			b.deliver(event, -1)
		default:
			return
		}
	}
}

func (b *Bus) deliver(event Event, worker int) {
	b.mu.Lock()
	consumers := append([]Consumer(nil), b.consumers...)
	b.mu.Unlock()

	for _, c := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ConsumerErrors, 1)
					b.log.Error("consumer panicked",
						logger.String("consumer", c.Name()),
						logger.Int("worker_id", worker),
						logger.Any("panic", r))
				}
			}()

			if err := c.Consume(context.WithoutCancel(b.ctx), event); err != nil {
				atomic.AddUint64(&b.stats.ConsumerErrors, 1)
				b.log.Warn("consumer error",
					logger.String("consumer", c.Name()),
					logger.String("kind", string(event.Kind())),
					logger.Error(err))
				return
			}
			atomic.AddUint64(&b.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting events, delivers what is buffered and waits for
// the workers up to timeout.
func (b *Bus) Shutdown(timeout time.Duration) error {
	if !b.running.Swap(false) {
		b.cancel()
		return nil
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		b.log.Info("event bus shutdown complete")
		return nil
	case <-timer.C:
		return fmt.Errorf("event bus shutdown timeout exceeded after %v", timeout)
	}
}

// Stats returns current event bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		EventsReceived:  atomic.LoadUint64(&b.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&b.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&b.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}
