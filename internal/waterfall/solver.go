package waterfall

import (
	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/rules"
)

// Solver implements the iterative fixed-point loop required for Net WAC
// caps and balance-dependent fees: snapshot the waterfall-touched parts
// of state, re-evaluate variables, re-run both waterfalls, and repeat
// until consecutive iterations agree within ConvergenceTol or
// MaxIterations is reached.
type Solver struct {
	MaxIterations  int
	ConvergenceTol decimal.Decimal
}

// DefaultSolver returns a Solver configured with the documented
// reference defaults (max_iterations=15, convergence_tol=0.01).
func DefaultSolver() Solver {
	return Solver{MaxIterations: 15, ConvergenceTol: decimal.New(1, -2)}
}

// Result reports whether the solver converged and in how many
// iterations, for the caller's diagnostic sink.
type Result struct {
	Converged  bool
	Iterations int
}

// snapshot is the restricted state the solver snapshots/restores each
// iteration: cash buckets, bond balances (with their interest-shortfall
// cumulatives), and ledgers, where step shortfalls are recorded.
type snapshot struct {
	cash    map[string]decimal.Decimal
	bonds   map[string]dealstate.BondState
	ledgers map[string]decimal.Decimal
}

func takeSnapshot(state *dealstate.DealState) snapshot {
	cash := make(map[string]decimal.Decimal, len(state.CashBalances))
	for k, v := range state.CashBalances {
		cash[k] = v
	}
	bonds := make(map[string]dealstate.BondState, len(state.Bonds))
	for k, v := range state.Bonds {
		bonds[k] = v
	}
	ledgers := make(map[string]decimal.Decimal, len(state.Ledgers))
	for k, v := range state.Ledgers {
		ledgers[k] = v
	}
	return snapshot{cash: cash, bonds: bonds, ledgers: ledgers}
}

func (snap snapshot) restore(state *dealstate.DealState) {
	for k, v := range snap.cash {
		state.CashBalances[k] = v
	}
	for k, v := range snap.bonds {
		state.Bonds[k] = v
	}
	for k, v := range snap.ledgers {
		state.Ledgers[k] = v
	}
}

func maxAbsDelta(a, b snapshot) decimal.Decimal {
	max := decimal.Zero
	for k, av := range a.cash {
		d := av.Sub(b.cash[k]).Abs()
		if d.GreaterThan(max) {
			max = d
		}
	}
	for k, ab := range a.bonds {
		d := ab.CurrentBalance.Sub(b.bonds[k].CurrentBalance).Abs()
		if d.GreaterThan(max) {
			max = d
		}
	}
	return max
}

// Run executes the iterative solver: restore the pre-waterfall
// snapshot, re-evaluate variables, re-run interest then principal, and
// repeat until the max-abs-delta between consecutive iterations is
// within ConvergenceTol or MaxIterations is exhausted.
func (s Solver) Run(state *dealstate.DealState, def *deal.Definition) (Result, error) {
	base := takeSnapshot(state)
	prev := base

	for iter := 1; iter <= s.MaxIterations; iter++ {
		base.restore(state)

		if err := rules.EvaluateVariables(state, def); err != nil {
			return Result{}, err
		}
		if err := RunInterest(state, def); err != nil {
			return Result{}, err
		}
		if err := RunPrincipal(state, def); err != nil {
			return Result{}, err
		}

		cur := takeSnapshot(state)
		if iter > 1 && maxAbsDelta(cur, prev).LessThanOrEqual(s.ConvergenceTol) {
			return Result{Converged: true, Iterations: iter}, nil
		}
		prev = cur
	}
	return Result{Converged: false, Iterations: s.MaxIterations}, nil
}
