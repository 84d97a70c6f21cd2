package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingConsumer struct {
	name string
	err  error
	fail bool

	mu     sync.Mutex
	events []Event
}

func (c *recordingConsumer) Name() string { return c.name }

func (c *recordingConsumer) Consume(_ context.Context, e Event) error {
	if c.fail {
		panic("consumer bug")
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	return c.err
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBus_DeliversToAllConsumers(t *testing.T) {
	bus := New(Config{BufferSize: 10, Workers: 2})
	a := &recordingConsumer{name: "a"}
	b := &recordingConsumer{name: "b"}
	require.NoError(t, bus.Subscribe(a))
	require.NoError(t, bus.Subscribe(b))
	bus.Start()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, bus.Publish(DecisionEvent{TaskID: "t1", Status: "completed", At: at}))
	assert.True(t, bus.Publish(BreakerEvent{From: "closed", To: "open", At: at}))

	require.NoError(t, bus.Shutdown(time.Second))
	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())

	stats := bus.Stats()
	assert.Equal(t, uint64(2), stats.EventsReceived)
	assert.Equal(t, uint64(4), stats.EventsProcessed)
}

func TestBus_RejectsDuplicateConsumer(t *testing.T) {
	bus := New(DefaultConfig())
	require.NoError(t, bus.Subscribe(&recordingConsumer{name: "mqtt"}))
	require.Error(t, bus.Subscribe(&recordingConsumer{name: "mqtt"}))
	require.NoError(t, bus.Shutdown(time.Second))
}

func TestBus_PublishWithoutRunningOrConsumers(t *testing.T) {
	bus := New(DefaultConfig())
	assert.False(t, bus.Publish(CheckEvent{TaskID: "t1"}), "not started")

	bus.Start()
	assert.False(t, bus.Publish(CheckEvent{TaskID: "t1"}), "no consumers")
	require.NoError(t, bus.Shutdown(time.Second))

	var nilBus *Bus
	assert.False(t, nilBus.Publish(CheckEvent{}))
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := New(Config{BufferSize: 1, Workers: 1})
	require.NoError(t, bus.Subscribe(&recordingConsumer{name: "a"}))
	// Not started: the running flag is set manually so nothing drains.
	bus.running.Store(true)

	assert.True(t, bus.Publish(CheckEvent{TaskID: "t1"}))
	assert.False(t, bus.Publish(CheckEvent{TaskID: "t2"}))
	assert.Equal(t, uint64(1), bus.Stats().EventsDropped)

	bus.running.Store(false)
	bus.cancel()
}

func TestBus_ConsumerFailuresAreIsolated(t *testing.T) {
	bus := New(Config{BufferSize: 10, Workers: 1})
	broken := &recordingConsumer{name: "broken", fail: true}
	erring := &recordingConsumer{name: "erring", err: errors.New("broker down")}
	healthy := &recordingConsumer{name: "healthy"}
	for _, c := range []Consumer{broken, erring, healthy} {
		require.NoError(t, bus.Subscribe(c))
	}
	bus.Start()

	bus.Publish(DecisionEvent{TaskID: "t1"})
	require.NoError(t, bus.Shutdown(time.Second))

	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, uint64(2), bus.Stats().ConsumerErrors)
}

func TestEventKinds(t *testing.T) {
	at := time.Now()
	assert.Equal(t, KindDecision, DecisionEvent{At: at}.Kind())
	assert.Equal(t, KindCheck, CheckEvent{At: at}.Kind())
	assert.Equal(t, KindBreaker, BreakerEvent{At: at}.Kind())
	assert.Equal(t, at, CheckEvent{At: at}.Timestamp())
}
