package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/jiangshenghai57/rmbs-engine/internal/collateral"
	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/engine"
)

// ScenarioRequest is one unit of work POSTed to /scenarios: a deal
// (pre-loaded) run against an assumption vector. The same *deal.
// Definition may back many scenarios that only vary the collateral
// assumptions, since Definition has no interior mutability.
type ScenarioRequest struct {
	ScenarioID string                      `json:"scenario_id"`
	Assumption collateral.AssumptionVector `json:"assumption"`
}

// ScenarioResult is the outcome of running one ScenarioRequest: either
// a completed snapshot tape or an error message, never both.
type ScenarioResult struct {
	ScenarioID string                     `json:"scenario_id"`
	Snapshots  []dealstate.PeriodSnapshot `json:"snapshots,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// runScenario drives one Simulation to completion against the shared
// deal definition, under the caller's EngineConfig. Each call
// constructs its own *dealstate.DealState (never shared across
// goroutines), even though def itself is shared read-only across every
// concurrent scenario.
func runScenario(def *deal.Definition, cfg engine.EngineConfig, req ScenarioRequest, diag dealstate.DiagSink) ScenarioResult {
	if req.ScenarioID == "" {
		// A caller batching generated stress scenarios may not bother
		// naming each one; assign a stable, collision-free id so
		// results can still be told apart in the response.
		req.ScenarioID = uuid.NewString()
	}

	source := collateral.NewAssumptionVectorSource(req.Assumption)
	sim := engine.NewSimulation(def, cfg, source, req.Assumption.OriginalBalance, diag)

	snaps, err := sim.Run(context.Background())
	if err != nil {
		return ScenarioResult{ScenarioID: req.ScenarioID, Error: err.Error()}
	}
	return ScenarioResult{ScenarioID: req.ScenarioID, Snapshots: snaps}
}
