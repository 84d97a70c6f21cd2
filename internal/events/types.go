// Package events provides an asynchronous event bus that decouples review
// decisions from their side channels (MQTT, alerts). Publishing never
// blocks the caller; a full buffer drops the event.
package events

import (
	"context"
	"time"
)

// Kind identifies an event type.
type Kind string

const (
	KindDecision Kind = "review.decision"
	KindCheck    Kind = "recheck.result"
	KindBreaker  Kind = "queue.breaker"
)

// Event is anything published on the bus.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Consumer processes events delivered by the bus.
type Consumer interface {
	// Name identifies the consumer; it must be unique on a bus.
	Name() string
	// Consume handles one event. Errors are counted and logged only.
	Consume(ctx context.Context, event Event) error
}

// DecisionEvent reports a task reaching a final review status or being
// scheduled for another attempt.
type DecisionEvent struct {
	TaskID      string    `json:"taskId"`
	SubmitterID string    `json:"submitterId"`
	ContentType string    `json:"contentType"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	Confidence  float64   `json:"confidence"`
	RiskLevel   string    `json:"riskLevel,omitempty"`
	FailureKind string    `json:"failureKind,omitempty"`
	Gate        string    `json:"gate,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Points      int64     `json:"points,omitempty"`
	At          time.Time `json:"at"`
}

func (e DecisionEvent) Kind() Kind           { return KindDecision }
func (e DecisionEvent) Timestamp() time.Time { return e.At }

// CheckEvent reports one continuous check run.
type CheckEvent struct {
	TaskID string    `json:"taskId"`
	Result string    `json:"result"`
	Status string    `json:"status"`
	Reward int64     `json:"reward,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func (e CheckEvent) Kind() Kind           { return KindCheck }
func (e CheckEvent) Timestamp() time.Time { return e.At }

// BreakerEvent reports a review queue circuit breaker transition.
type BreakerEvent struct {
	From                string    `json:"from"`
	To                  string    `json:"to"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	At                  time.Time `json:"at"`
}

func (e BreakerEvent) Kind() Kind           { return KindBreaker }
func (e BreakerEvent) Timestamp() time.Time { return e.At }

// Stats contains runtime statistics for monitoring.
type Stats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
