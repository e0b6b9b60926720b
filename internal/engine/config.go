// Package engine implements the period driver and snapshotter (spec
// component C8): the outer per-period loop that ties C5 (variables and
// triggers), C6 (waterfalls, with the optional iterative solver), and
// C7 (loss allocation) together and produces the snapshot tape.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/lossalloc"
)

// EngineConfig carries the engine's runtime tunables, plus the policy
// resolutions recorded in DESIGN.md (LossOverflowPolicy) and the
// horizon fields (MaxPeriods is also carried on deal.Definition;
// EngineConfig.MaxPeriods, when non-zero, is an additional
// caller-supplied bound that is never looser than the definition's
// own).
type EngineConfig struct {
	UseIterativeSolver bool
	MaxIterations      int
	ConvergenceTol     decimal.Decimal
	OverdraftEpsilon   decimal.Decimal

	FundsMissingPolicy dealstate.MissingPolicy
	BondsMissingPolicy dealstate.MissingPolicy
	LossOverflowPolicy lossalloc.OverflowPolicy

	MaxPeriods int
}

// DefaultEngineConfig returns the documented reference defaults:
// use_iterative_solver=false, max_iterations=15, convergence_tol=0.01,
// overdraft_epsilon=1e-5, funds/bonds_missing_policy=ZERO.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		UseIterativeSolver: false,
		MaxIterations:      15,
		ConvergenceTol:     decimal.New(1, -2),
		OverdraftEpsilon:   decimal.New(1, -5),
		FundsMissingPolicy: dealstate.MissingZero,
		BondsMissingPolicy: dealstate.MissingZero,
		LossOverflowPolicy: lossalloc.OverflowToLedger,
	}
}
