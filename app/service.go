// Package app wires the allocation engine and its adapters from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/kilianp07/fuelq/api/journal"
	"github.com/kilianp07/fuelq/api/queues"
	"github.com/kilianp07/fuelq/config"
	"github.com/kilianp07/fuelq/core/allocation"
	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/events"
	coremetrics "github.com/kilianp07/fuelq/core/metrics"
	coremon "github.com/kilianp07/fuelq/core/monitoring"
	"github.com/kilianp07/fuelq/core/notify"
	corestore "github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/infra/logger"
	"github.com/kilianp07/fuelq/infra/metrics"
	"github.com/kilianp07/fuelq/infra/monitoring"
	"github.com/kilianp07/fuelq/infra/mqtt"
	"github.com/kilianp07/fuelq/infra/store"
	"github.com/kilianp07/fuelq/internal/eventbus"
)

// busBuffer is the per-subscriber capacity of the event bus.
const busBuffer = 256

// Service owns the engine and every resource it was built from.
type Service struct {
	Engine   *allocation.Engine
	Store    corestore.Store
	Journal  logging.LogStore
	Notifier *notify.Dispatcher

	cfg  *config.Config
	bus  *eventbus.TypedBus[events.Event]
	sink coremetrics.MetricsSink
	mqtt *mqtt.PahoClient
	log  logger.Logger
}

// New creates a Service from the configuration. Resources opened before a
// failure are released.
func New(cfg *config.Config) (_ *Service, err error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{cfg: cfg, log: logg, bus: eventbus.NewTypedBuffered[events.Event](busBuffer)}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Store, err = store.Open(cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if s.sink, err = cfg.Metrics.NewSink(); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if s.Journal, err = logging.Open(cfg.Logging.Options()); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	var channels []notify.Notifier
	if cfg.Notifications.InboxEnabled() {
		channels = append(channels, notify.NewInbox(s.Store))
	}
	if cfg.Notifications.MQTT {
		if s.mqtt, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		channels = append(channels, mqtt.NewNotifier(s.mqtt, cfg.Notifications.TopicPrefix))
	}
	s.Notifier = notify.NewDispatcher(notify.Options{
		Timeout: cfg.Notifications.Timeout(),
		Logger:  logger.New("notify"),
		Sink:    s.sink,
	}, channels...)
	s.Notifier.OnFailure(allocation.RecordNotificationFailure)

	if s.Engine, err = allocation.NewEngine(s.Store, cfg.Allocation, s.sink, s.bus, logger.New("allocation")); err != nil {
		return nil, fmt.Errorf("allocation engine: %w", err)
	}
	s.Engine.SetLogStore(s.Journal)
	s.Engine.SetNotifier(s.Notifier)
	return s, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/journal", journal.NewHandler(s.Journal, s.cfg.HTTP.Token))
	mux.Handle("/api/", queues.NewHandler(s.Engine))
	return mux
}

// Run serves the HTTP API and the metrics endpoint and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	collected := metrics.StartEventCollector(ctx, s.bus, s.sink)
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("http api listening on %s", s.cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		s.log.Errorf("http server: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	s.bus.Close()
	<-collected
	return err
}

// Close releases resources held by the service. Pending notifications are
// delivered first.
func (s *Service) Close() error {
	var err error
	if s.Notifier != nil {
		err = multierr.Append(err, s.Notifier.Close())
	}
	s.bus.Close()
	if s.Journal != nil {
		err = multierr.Append(err, s.Journal.Close())
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.Store != nil {
		err = multierr.Append(err, s.Store.Close())
	}
	coremon.Flush(2 * time.Second)
	return err
}
