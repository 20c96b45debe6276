// Package simulator generates random air traffic and feeds it to the
// controllers. It holds no coordination logic: it only produces airplanes
// and occasionally declares an airport-wide emergency, exactly like any
// external client.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/skyops/aerodrome/core/events"
	"github.com/skyops/aerodrome/core/logger"
	"github.com/skyops/aerodrome/core/model"
)

var airplaneModels = []string{
	"Boeing 737", "Boeing 747", "Boeing 777", "Boeing 787",
	"Airbus A320", "Airbus A330", "Airbus A350", "Airbus A380",
	"Embraer E190", "Bombardier CRJ900",
}

var airlineCodes = []string{"AA", "BA", "DL", "UA", "LH", "AF", "EK", "SQ", "CX"}

var emergencyReasons = []string{
	"security breach", "weather conditions", "runway intrusion",
	"equipment failure", "wildlife on runway",
}

// Config defines the traffic generation parameters.
type Config struct {
	Enabled         bool          `json:"enabled"`
	SpawnInterval   time.Duration `json:"-"`
	MeanSpawn       float64       `json:"mean_spawn"`
	MaxSpawn        int           `json:"max_spawn"`
	EmergencyChance float64       `json:"emergency_chance"`

	AirportEmergencyInterval time.Duration `json:"-"`
	AirportEmergencyChance   float64       `json:"airport_emergency_chance"`
}

// SetDefaults fills unset fields with the simulation defaults.
func (c *Config) SetDefaults() {
	if c.SpawnInterval <= 0 {
		c.SpawnInterval = 5 * time.Second
	}
	if c.MeanSpawn <= 0 {
		c.MeanSpawn = 2
	}
	if c.MaxSpawn <= 0 {
		c.MaxSpawn = 3
	}
	if c.EmergencyChance <= 0 {
		c.EmergencyChance = 0.2
	}
	if c.AirportEmergencyInterval <= 0 {
		c.AirportEmergencyInterval = 30 * time.Second
	}
	if c.AirportEmergencyChance <= 0 {
		c.AirportEmergencyChance = 0.2
	}
}

// Target is the controller surface the generator assigns airplanes to.
type Target interface {
	Name() string
	Load() int
	CanAccept() bool
	Assign(plane model.Airplane)
}

// EmergencyDeclarer lets the generator trigger airport-wide emergencies.
type EmergencyDeclarer interface {
	DeclareEmergency(ctx context.Context, reason string)
}

// Generator spawns random airplanes on a fixed period and assigns each to
// the least-loaded controller.
type Generator struct {
	cfg         Config
	controllers []Target
	airport     EmergencyDeclarer

	rec events.Recorder
	log logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator. At least one controller target is required.
func New(cfg Config, controllers []Target, airport EmergencyDeclarer, rec events.Recorder, log logger.Logger) (*Generator, error) {
	if len(controllers) == 0 {
		return nil, fmt.Errorf("simulator: no controllers to assign airplanes to")
	}
	cfg.SetDefaults()
	return &Generator{
		cfg:         cfg,
		controllers: controllers,
		airport:     airport,
		rec:         rec,
		log:         log,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run spawns traffic until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.spawnLoop(ctx)
	}()
	if g.airport != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.emergencyLoop(ctx)
		}()
	}
	wg.Wait()
}

func (g *Generator) spawnLoop(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.SpawnInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		g.spawnBatch()
	}
}

// spawnBatch spawns one tick's worth of airplanes. The count is drawn once
// so the per-tick total follows the configured distribution.
func (g *Generator) spawnBatch() {
	n := g.spawnCount()
	for i := 0; i < n; i++ {
		plane := g.NextAirplane()
		target := g.selectController()
		g.describe(plane)
		target.Assign(plane)
	}
}

// emergencyLoop occasionally declares an airport-wide emergency, separate
// from per-airplane emergencies.
func (g *Generator) emergencyLoop(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.AirportEmergencyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		g.mu.Lock()
		hit := g.rng.Float64() < g.cfg.AirportEmergencyChance
		reason := emergencyReasons[g.rng.Intn(len(emergencyReasons))]
		g.mu.Unlock()
		if hit {
			g.airport.DeclareEmergency(ctx, reason)
		}
	}
}

// spawnCount draws the number of airplanes for one tick from a Poisson
// distribution, clamped to [1, MaxSpawn].
func (g *Generator) spawnCount() int {
	p := distuv.Poisson{Lambda: g.cfg.MeanSpawn}
	n := int(p.Rand())
	if n < 1 {
		n = 1
	}
	if n > g.cfg.MaxSpawn {
		n = g.cfg.MaxSpawn
	}
	return n
}

// NextAirplane produces one random airplane. Emergencies apply to landings
// only.
func (g *Generator) NextAirplane() model.Airplane {
	g.mu.Lock()
	defer g.mu.Unlock()
	op := model.OperationLanding
	if g.rng.Intn(2) == 1 {
		op = model.OperationDeparture
	}
	priority := model.PriorityNormal
	if op == model.OperationLanding && g.rng.Float64() < g.cfg.EmergencyChance {
		priority = model.PriorityEmergency
	}
	return model.Airplane{
		ID:         g.airplaneID(),
		Operation:  op,
		Priority:   priority,
		Model:      airplaneModels[g.rng.Intn(len(airplaneModels))],
		Purpose:    model.Purpose(g.rng.Intn(3)),
		Passengers: 100 + g.rng.Intn(400),
		CargoTons:  1.0 + g.rng.Float64()*50.0,
	}
}

// airplaneID builds an airline code plus four digit flight number; callers
// hold g.mu.
func (g *Generator) airplaneID() string {
	code := airlineCodes[g.rng.Intn(len(airlineCodes))]
	return fmt.Sprintf("%s%d", code, 1000+g.rng.Intn(9000))
}

// selectController returns the least-loaded controller that can accept a
// new airplane, ties broken by registration order. When every controller is
// saturated or off duty the airplane still has to go somewhere; it falls
// back to the least-loaded queue.
func (g *Generator) selectController() Target {
	var best Target
	bestLoad := 0
	for _, c := range g.controllers {
		if !c.CanAccept() {
			continue
		}
		if load := c.Load(); best == nil || load < bestLoad {
			best, bestLoad = c, load
		}
	}
	if best != nil {
		return best
	}
	best = g.controllers[0]
	bestLoad = best.Load()
	for _, c := range g.controllers[1:] {
		if load := c.Load(); load < bestLoad {
			best, bestLoad = c, load
		}
	}
	return best
}

func (g *Generator) describe(plane model.Airplane) {
	var details string
	switch plane.Purpose {
	case model.PurposePassengers:
		details = fmt.Sprintf("passenger flight carrying %d people", plane.Passengers)
	case model.PurposeCargo:
		details = fmt.Sprintf("cargo flight carrying %.1f tons of goods", plane.CargoTons)
	default:
		details = fmt.Sprintf("mixed flight carrying %d people and %.1f tons of goods",
			plane.Passengers, plane.CargoTons)
	}
	if g.rec != nil {
		g.rec.Record(events.New(plane.ID,
			fmt.Sprintf("new %s %s (%s)", plane.Model, details, plane.Operation), events.LevelInfo))
		if plane.IsEmergency() {
			g.rec.Record(events.New(plane.ID, "declaring emergency landing", events.LevelEmergency))
		}
	}
	if g.log != nil {
		g.log.Debugw("spawned airplane", map[string]any{
			"id": plane.ID, "operation": plane.Operation.String(), "priority": plane.Priority.String(),
		})
	}
}
