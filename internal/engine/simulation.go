package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/collateral"
	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
	"github.com/jiangshenghai57/rmbs-engine/internal/lossalloc"
	"github.com/jiangshenghai57/rmbs-engine/internal/rules"
	"github.com/jiangshenghai57/rmbs-engine/internal/waterfall"
)

// Input variable names the period driver sets from each period's
// collateral record (realized loss, current pool balance, pool WAC).
// Deal-declared variables, test rules, and the loss_source_rule may
// reference these as bare identifiers.
const (
	VarPeriodRealizedLoss = "PeriodRealizedLoss"
	VarCurrentPoolBalance = "CurrentPoolBalance"
	VarPoolWAC            = "PoolWAC"
)

// Simulation drives one deal through its full collateral stream. It
// owns a *dealstate.DealState exclusively and must never be shared
// across goroutines, though the underlying *deal.Definition may be
// shared read-only across many concurrent Simulations.
type Simulation struct {
	Def                 *deal.Definition
	State               *dealstate.DealState
	Config              EngineConfig
	Source              collateral.Source
	OriginalPoolBalance decimal.Decimal
}

// NewSimulation constructs a Simulation at t=0. diag receives all
// non-fatal Diagnostics (overdraft-within-tolerance, overpay-clamped,
// non-convergence, residual-loss-dropped); a nil sink discards them.
func NewSimulation(def *deal.Definition, cfg EngineConfig, source collateral.Source, originalPoolBalance decimal.Decimal, diag dealstate.DiagSink) *Simulation {
	state := dealstate.New(def, diag)
	state.FundsMissingPolicy = cfg.FundsMissingPolicy
	state.BondsMissingPolicy = cfg.BondsMissingPolicy
	if !cfg.OverdraftEpsilon.IsZero() {
		state.OverdraftEpsilon = cfg.OverdraftEpsilon
	}
	return &Simulation{
		Def:                 def,
		State:               state,
		Config:              cfg,
		Source:              source,
		OriginalPoolBalance: originalPoolBalance,
	}
}

// Run executes the deal's period loop (deposit, variable/test
// evaluation, waterfalls, loss allocation, snapshot) until the earliest
// of: the collateral stream is exhausted, max periods (whichever of
// EngineConfig.MaxPeriods or deal.Definition.MaxPeriods is tighter and
// non-zero), the clean-up call rule fires, or every bond reaches a zero
// balance. ctx is checked once per period; there is no other use for
// cancellation here.
func (s *Simulation) Run(ctx context.Context) ([]dealstate.PeriodSnapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.State.History, err
		}
		if s.horizonReached() {
			break
		}

		cf, ok, err := s.Source.Next()
		if err != nil {
			return s.State.History, fmt.Errorf("engine: collateral source: %w", err)
		}
		if !ok {
			break
		}

		date := cf.PeriodDate
		if date == "" {
			date = strconv.Itoa(s.State.PeriodIndex + 1)
		}

		if err := s.depositCollateral(cf); err != nil {
			return s.State.History, err
		}

		s.State.StartPeriod(cf.EndPoolBalance, s.OriginalPoolBalance, cf.WAC)
		s.State.SetVariable(VarPeriodRealizedLoss, expr.Number(cf.RealizedLoss))
		s.State.SetVariable(VarCurrentPoolBalance, expr.Number(cf.EndPoolBalance))
		s.State.SetVariable(VarPoolWAC, expr.Number(cf.WAC))

		if err := s.runPeriod(); err != nil {
			return s.State.History, err
		}

		s.State.Snapshot(date)

		if s.cleanUpCallFired() {
			break
		}
		if s.allBondsZero() {
			break
		}
	}
	return s.State.History, nil
}

func (s *Simulation) depositCollateral(cf collateral.Cashflow) error {
	dm := s.Def.DepositMapping
	if dm.InterestToFund != "" {
		if err := s.State.DepositFunds(dm.InterestToFund, cf.InterestCollected); err != nil {
			return err
		}
	}
	if dm.PrincipalToFund != "" {
		if err := s.State.DepositFunds(dm.PrincipalToFund, cf.PrincipalCollected); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) runPeriod() error {
	if err := rules.EvaluateVariables(s.State, s.Def); err != nil {
		return err
	}
	if err := rules.EvaluateTests(s.State, s.Def); err != nil {
		return err
	}

	if s.Config.UseIterativeSolver {
		solver := waterfall.Solver{MaxIterations: s.Config.MaxIterations, ConvergenceTol: s.Config.ConvergenceTol}
		res, err := solver.Run(s.State, s.Def)
		if err != nil {
			return err
		}
		if !res.Converged {
			s.State.Diagnose("non_convergence", "iterative solver did not converge within %d iterations", solver.MaxIterations)
		}
	} else {
		if err := waterfall.RunInterest(s.State, s.Def); err != nil {
			return err
		}
		if err := waterfall.RunPrincipal(s.State, s.Def); err != nil {
			return err
		}
	}

	return lossalloc.Allocate(s.State, s.Def, s.Config.LossOverflowPolicy)
}

func (s *Simulation) cleanUpCallFired() bool {
	if s.Def.CleanUpCallRule == "" {
		return false
	}
	e := s.Def.Compiled.Get(s.Def.CleanUpCallRule)
	if e == nil {
		return false
	}
	ok, err := expr.EvaluateCondition(e, s.State)
	if err != nil {
		s.State.Diagnose("clean_up_call_rule_error", "clean_up_call_rule failed to evaluate: %v", err)
		return false
	}
	return ok
}

func (s *Simulation) allBondsZero() bool {
	for _, b := range s.State.Bonds {
		if b.CurrentBalance.GreaterThan(decimal.Zero) {
			return false
		}
	}
	return len(s.State.Bonds) > 0
}

func (s *Simulation) horizonReached() bool {
	max := s.Config.MaxPeriods
	if s.Def.MaxPeriods > 0 && (max == 0 || s.Def.MaxPeriods < max) {
		max = s.Def.MaxPeriods
	}
	return max > 0 && s.State.PeriodIndex >= max
}
