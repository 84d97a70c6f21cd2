// Package notification sends operator alerts through shoutrrr service URLs
// (Slack, Telegram, e-mail and others) when the review queue needs
// attention.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/events"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/observability/metrics"
	"github.com/gigshield/reviewcore/internal/privacy"
)

const componentName = "notification"

// Sender delivers one message to every configured service.
// *router.ServiceRouter satisfies it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Alerter is an events.Consumer that turns breaker transitions into alerts.
type Alerter struct {
	sender  Sender
	limiter *rate.Limiter
	metrics *metrics.PublisherMetrics
	log     logger.Logger
}

// NewAlerter builds a shoutrrr sender for urls. m may be nil.
func NewAlerter(urls []string, timeout time.Duration, m *metrics.PublisherMetrics) (*Alerter, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(privacy.WrapError(err)).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return newAlerter(sender, m), nil
}

func newAlerter(sender Sender, m *metrics.PublisherMetrics) *Alerter {
	return &Alerter{
		sender: sender,
		// A flapping breaker alerts at most five times in a burst, then once a minute.
		limiter: rate.NewLimiter(rate.Every(time.Minute), 5),
		metrics: m,
		log:     logger.Global().Module("notification"),
	}
}

// Name implements events.Consumer.
func (a *Alerter) Name() string { return "alerts" }

// Consume implements events.Consumer. Events other than breaker open and
// close transitions are ignored.
func (a *Alerter) Consume(_ context.Context, event events.Event) error {
	e, ok := event.(events.BreakerEvent)
	if !ok {
		return nil
	}
	title, body, ok := breakerAlert(e)
	if !ok {
		return nil
	}
	if !a.limiter.Allow() {
		a.log.Warn("alert suppressed by rate limit", logger.String("title", title))
		return nil
	}

	err := a.send(title, body)
	if a.metrics != nil {
		a.metrics.RecordAlert(string(e.Kind()), err)
	}
	if err != nil {
		a.log.Error("failed to send alert", logger.String("title", title), logger.Error(err))
		return err
	}
	a.log.Info("alert sent", logger.String("title", title))
	return nil
}

func breakerAlert(e events.BreakerEvent) (title, body string, ok bool) {
	switch e.To {
	case "open":
		return "Review queue halted",
			fmt.Sprintf("Circuit breaker opened at %s after %d consecutive critical failures. Dispatch resumes after the cooldown.",
				e.At.UTC().Format(time.RFC3339), e.ConsecutiveFailures), true
	case "closed":
		return "Review queue resumed",
			fmt.Sprintf("Circuit breaker closed at %s (was %s).", e.At.UTC().Format(time.RFC3339), e.From), true
	default:
		return "", "", false
	}
}

func (a *Alerter) send(title, body string) error {
	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range a.sender.Send(body, &params) {
		if err != nil {
			return errors.New(privacy.WrapError(err)).
				Component(componentName).
				Category(errors.CategoryNotification).
				Build()
		}
	}
	return nil
}
