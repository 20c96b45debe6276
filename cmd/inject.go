package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skyops/aerodrome/config"
	"github.com/skyops/aerodrome/core/airport"
	"github.com/skyops/aerodrome/core/controller"
	"github.com/skyops/aerodrome/core/model"
	"github.com/skyops/aerodrome/infra/logger"
	"github.com/skyops/aerodrome/internal/eventbus"
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Push a single test airplane through a minimal airport",
	RunE:  injectAirplane,
}

func init() {
	rootCmd.AddCommand(injectCmd)
}

func injectAirplane(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("inject-command")
	bus := eventbus.New()
	flightLog := logger.NewFlightLog()
	events := bus.Subscribe()
	go func() {
		for e := range events {
			flightLog.Record(e)
		}
	}()

	apt, err := airport.New(cfg.Airport.Core(cfg.Lanes.Timings()), bus, logg, nil)
	if err != nil {
		return fmt.Errorf("airport: %w", err)
	}
	ctrl, err := controller.New("CTRL-TEST", apt, cfg.Controllers.Core(), bus, logg)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	apt.RegisterController(ctrl)

	runCtx, stopCtrl := context.WithCancel(ctx)
	go ctrl.Run(runCtx)

	plane := model.Airplane{
		ID:         "TEST-1",
		Operation:  model.OperationLanding,
		Priority:   model.PriorityEmergency,
		Model:      "Boeing 737",
		Purpose:    model.PurposePassengers,
		Passengers: 150,
	}
	ctrl.Assign(plane)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			stopCtrl()
			apt.Shutdown()
			bus.Close()
			return fmt.Errorf("test airplane did not resolve in time")
		case <-ticker.C:
		}
		status, known := apt.FlightStatus(plane.ID)
		if !known || status == model.StatusAtGate {
			if known {
				logg.Infof("test airplane resolved with status %s", status)
			} else {
				logg.Infof("test airplane resolved and left the airspace")
			}
			stopCtrl()
			apt.Shutdown()
			bus.Close()
			return nil
		}
	}
}
