package app

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gigshield/reviewcore/internal/buildinfo"
	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/privacy"
)

// initSentry initializes the Sentry SDK and routes high priority enhanced
// errors to it. It returns the flush function to call on shutdown.
func initSentry(s *conf.SentrySettings, build *buildinfo.Context) (func(time.Duration) bool, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      s.Environment,
		ServerName:       "",
		Release:          build.Release(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, errors.New(privacy.WrapError(err)).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("stage", "sentry").
			Build()
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return sentry.Flush, nil
}

// applyPrivacyFilters drops host identity and scrubs URLs from messages;
// submitted URLs identify workers.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	if event.Request != nil {
		event.Request.URL = privacy.ScrubMessage(event.Request.URL)
		event.Request.QueryString = ""
		event.Request.Cookies = ""
	}
	return event
}
