package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/aerodrome/config"
	"github.com/skyops/aerodrome/core/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Airport: config.AirportConfig{
			Name:  "Test Field",
			Lanes: 2,
			// keep background processes out of the test window
			MaintenanceIntervalSeconds: 3600,
			WeatherIntervalSeconds:     3600,
		},
		Controllers: config.ControllersConfig{Count: 2, PollIntervalMS: 5},
		Lanes: config.LanesConfig{
			LandingMS: 10, TakeoffMS: 10, CooldownMS: 5, JitterMS: 1,
		},
		Logging: config.LoggingConfig{Level: "error"},
	}
}

func TestNew_BuildsControllers(t *testing.T) {
	svc, err := New(testConfig())
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	assert.Len(t, svc.Controllers, 2)
	assert.NotNil(t, svc.Airport)
	assert.Nil(t, svc.Generator)
}

func TestNew_GeneratorEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Generator = config.GeneratorConfig{Enabled: true, SpawnIntervalSeconds: 3600}
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()
	assert.NotNil(t, svc.Generator)
}

func TestRun_DispatchesAndShutsDown(t *testing.T) {
	svc, err := New(testConfig())
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	plane := model.Airplane{ID: "TST1001", Operation: model.OperationLanding}
	svc.Controllers[0].Assign(plane)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := svc.Airport.FlightStatus(plane.ID); ok && st == model.StatusAtGate {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, ok := svc.Airport.FlightStatus(plane.ID)
	require.True(t, ok, "airplane not registered")
	assert.Equal(t, model.StatusAtGate, st)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not shut down")
	}
}
