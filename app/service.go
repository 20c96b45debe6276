// Package app wires the airport, controllers, generator and observability
// exporters into a runnable service.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skyops/aerodrome/config"
	"github.com/skyops/aerodrome/core/airport"
	"github.com/skyops/aerodrome/core/controller"
	coremetrics "github.com/skyops/aerodrome/core/metrics"
	"github.com/skyops/aerodrome/infra/logger"
	"github.com/skyops/aerodrome/infra/metrics"
	"github.com/skyops/aerodrome/infra/mqtt"
	"github.com/skyops/aerodrome/internal/eventbus"
	"github.com/skyops/aerodrome/simulator"
)

// Service orchestrates the airport simulation.
type Service struct {
	Airport     *airport.Airport
	Controllers []*controller.Controller
	Generator   *simulator.Generator

	bus       *eventbus.Bus
	flightLog *logger.FlightLog
	publisher mqtt.Publisher
	log       logger.Logger

	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	zerolog.SetGlobalLevel(cfg.Logging.ZerologLevel())
	logg := logger.New("service")
	bus := eventbus.New()

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	apt, err := airport.New(cfg.Airport.Core(cfg.Lanes.Timings()), bus, logger.New("airport"), sink)
	if err != nil {
		return nil, fmt.Errorf("airport: %w", err)
	}

	var controllers []*controller.Controller
	for i := 1; i <= cfg.Controllers.Count; i++ {
		name := fmt.Sprintf("CTRL-%d", i)
		c, err := controller.New(name, apt, cfg.Controllers.Core(), bus, logger.New("controller"))
		if err != nil {
			return nil, fmt.Errorf("controller %s: %w", name, err)
		}
		apt.RegisterController(c)
		controllers = append(controllers, c)
	}

	svc := &Service{
		Airport:     apt,
		Controllers: controllers,
		bus:         bus,
		flightLog:   logger.NewFlightLog(),
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}

	if cfg.Generator.Enabled {
		targets := make([]simulator.Target, len(controllers))
		for i, c := range controllers {
			targets[i] = c
		}
		gen, err := simulator.New(cfg.Generator.Core(), targets, apt, bus, logger.New("simulator"))
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		svc.Generator = gen
	}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}
	return svc, nil
}

// Run starts the simulation and blocks until the context is cancelled,
// then performs the ordered shutdown: controllers drain, the airport waits
// for follow-ups and maintenance timers, exporters close last.
func (s *Service) Run(ctx context.Context) error {
	events := s.bus.Subscribe()
	var pumpWg sync.WaitGroup
	pumpWg.Add(1)
	go func() {
		defer pumpWg.Done()
		for e := range events {
			s.flightLog.Record(e)
			if s.publisher != nil {
				if err := s.publisher.PublishEvent(e); err != nil {
					s.log.Errorf("event publish: %v", err)
				}
			}
		}
	}()

	s.Airport.Start(ctx)

	var workerWg sync.WaitGroup
	for _, c := range s.Controllers {
		workerWg.Add(1)
		go func(c *controller.Controller) {
			defer workerWg.Done()
			c.Run(ctx)
		}(c)
	}
	if s.Generator != nil {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			s.Generator.Run(ctx)
		}()
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	<-ctx.Done()
	workerWg.Wait()
	s.Airport.Shutdown()
	s.bus.Close()
	pumpWg.Wait()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	return nil
}
