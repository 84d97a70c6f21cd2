// Package app assembles the review core from settings and runs it.
package app

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gigshield/reviewcore/internal/api"
	"github.com/gigshield/reviewcore/internal/buildinfo"
	"github.com/gigshield/reviewcore/internal/commission"
	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/events"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/mqtt"
	"github.com/gigshield/reviewcore/internal/notification"
	"github.com/gigshield/reviewcore/internal/observability"
	"github.com/gigshield/reviewcore/internal/recheck"
	"github.com/gigshield/reviewcore/internal/review"
	"github.com/gigshield/reviewcore/internal/review/engine"
	"github.com/gigshield/reviewcore/internal/review/gate"
	"github.com/gigshield/reviewcore/internal/review/queue"
	"github.com/gigshield/reviewcore/internal/verifier"
)

const (
	componentName = "app"

	alertTimeout    = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

// App holds every long-lived component of the review core.
type App struct {
	settings *conf.Settings
	build    *buildinfo.Context
	log      logger.Logger

	store     *datastore.DataStore
	metrics   *observability.Metrics
	bus       *events.Bus
	mqtt      mqtt.Client
	verifier  *verifier.HTTPVerifier
	service   *review.Service
	scheduler *recheck.Scheduler
	server    *api.Server

	flushTelemetry func(time.Duration) bool
}

// New opens the store and wires the components. Nothing is started.
func New(settings *conf.Settings, build *buildinfo.Context) (*App, error) {
	a := &App{
		settings: settings,
		build:    build,
		log:      logger.Global().Module(componentName),
	}

	if settings.Sentry.Enabled {
		flush, err := initSentry(&settings.Sentry, build)
		if err != nil {
			return nil, err
		}
		a.flushTelemetry = flush
	}

	var err error
	if a.metrics, err = observability.NewMetrics(); err != nil {
		return nil, wrap(err, "metrics")
	}
	if a.store, err = datastore.Open(settings); err != nil {
		return nil, err
	}

	if err := a.wire(); err != nil {
		_ = a.store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	s := a.settings

	a.bus = events.New(events.DefaultConfig())
	if err := a.metrics.RegisterEventBus(a.bus.Stats); err != nil {
		return wrap(err, "metrics")
	}
	if err := a.wireConsumers(); err != nil {
		return err
	}

	a.verifier = verifier.NewHTTPVerifier(&s.Verifier)
	a.verifier.Client().SetAfterResponseHook(func(_ *http.Request, resp *http.Response, _ error, d time.Duration) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		a.metrics.Review.RecordVerifierRequest(status, d)
	})

	keywords, err := engine.LoadKeywordMatcher(s.Engine.KeywordFile)
	if err != nil {
		return err
	}
	eng := engine.New(a.verifier, keywords, engine.ConfigFromSettings(&s.Engine))
	payouts := commission.NewCalculator()

	a.service = review.NewService(a.store, eng,
		gate.NewChecker(gate.ConfigFromSettings(&s.Gates)),
		payouts,
		queue.ConfigFromSettings(&s.Queue),
		review.WithPublisher(a.bus),
		review.WithMetrics(a.metrics.Review))

	a.scheduler = recheck.NewScheduler(a.store, a.verifier, payouts,
		recheck.ConfigFromSettings(&s.Recheck),
		recheck.WithPublisher(a.bus),
		recheck.WithMetrics(a.metrics.Review))

	if s.API.Enabled {
		opts := []api.ServerOption{api.WithHealthCheck(a.store.Ping)}
		if s.Metrics.Enabled {
			opts = append(opts, api.WithMetricsHandler(a.metrics.Handler()))
		}
		cfg := api.DefaultConfig()
		cfg.Listen = s.API.Listen
		if s.Metrics.Path != "" {
			cfg.MetricsPath = s.Metrics.Path
		}
		a.server = api.New(cfg, a.service, opts...)
	}
	return nil
}

// wireConsumers subscribes the optional outbound channels to the bus.
func (a *App) wireConsumers() error {
	s := a.settings
	if s.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(&s.MQTT)
		a.mqtt = mqtt.NewClient(cfg, a.metrics.Publisher)
		if err := a.bus.Subscribe(mqtt.NewEventConsumer(a.mqtt, cfg.TopicPrefix)); err != nil {
			return wrap(err, "mqtt")
		}
	}
	if s.Notification.Enabled {
		alerter, err := notification.NewAlerter(s.Notification.URLs, alertTimeout, a.metrics.Publisher)
		if err != nil {
			return err
		}
		if err := a.bus.Subscribe(alerter); err != nil {
			return wrap(err, "notification")
		}
	}
	return nil
}

// Service returns the review service.
func (a *App) Service() *review.Service {
	return a.service
}

// Store returns the datastore.
func (a *App) Store() *datastore.DataStore {
	return a.store
}

// Run starts the queue, the scheduler and the API and blocks until ctx is
// cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting reviewcore",
		logger.String("version", a.build.GetVersion()),
		logger.String("database", a.settings.Database.Driver))

	a.bus.Start()
	if a.mqtt != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			// Decisions still complete; only their events are lost until the broker is back.
			a.log.Warn("MQTT broker unavailable, events will not be published", logger.Error(err))
		}
	}

	n, err := a.service.RequeuePending(ctx)
	if err != nil {
		return stderrors.Join(err, a.Close())
	}
	a.log.Info("pending tasks requeued", logger.Int("count", n))

	if err := a.service.Start(ctx); err != nil {
		return stderrors.Join(err, a.Close())
	}
	if a.settings.Recheck.Enabled {
		a.scheduler.Start(ctx)
	}
	if a.server != nil {
		a.server.Start()
	}

	<-ctx.Done()
	a.log.Info("shutdown requested")
	return a.Close()
}

// RecheckOnce runs a single continuous check tick.
func (a *App) RecheckOnce(ctx context.Context) (recheck.Summary, error) {
	return a.scheduler.RunOnce(ctx)
}

// Close stops every started component and closes the store. It is safe on
// components that were never started.
func (a *App) Close() error {
	var errs []error

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
	}
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Stop(shutdownTimeout))
	}
	if a.service != nil {
		errs = append(errs, a.service.Stop(shutdownTimeout))
	}
	if a.bus != nil {
		errs = append(errs, a.bus.Shutdown(shutdownTimeout))
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.flushTelemetry != nil {
		a.flushTelemetry(2 * time.Second)
	}

	err := stderrors.Join(errs...)
	if err != nil {
		a.log.Error("shutdown completed with errors", logger.Error(err))
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}

func wrap(err error, stage string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryConfiguration).
		Context("stage", stage).
		Build()
}
