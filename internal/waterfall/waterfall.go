// Package waterfall implements the waterfall runner (spec component
// C6): sequential execution of the interest and principal step lists,
// plus the optional iterative fixed-point solver for circular
// dependencies (Net WAC caps, balance-dependent fees).
package waterfall

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

// epsilon is the minimum payment/shortfall the runner treats as
// material.
var (
	paymentEpsilon   = decimal.New(1, -5) // 1e-5
	shortfallEpsilon = decimal.New(1, -2) // 0.01
)

const (
	amountAll       = "ALL"
	amountRemaining = "REMAINING"
)

// RunInterest executes the deal's interest waterfall steps in list
// order.
func RunInterest(state *dealstate.DealState, def *deal.Definition) error {
	return runSteps(state, def, def.Waterfalls.Interest)
}

// RunPrincipal executes the deal's principal waterfall steps in list
// order.
func RunPrincipal(state *dealstate.DealState, def *deal.Definition) error {
	return runSteps(state, def, def.Waterfalls.Principal)
}

func runSteps(state *dealstate.DealState, def *deal.Definition, steps []deal.Step) error {
	for _, step := range steps {
		if err := runStep(state, def, step); err != nil {
			return fmt.Errorf("waterfall: step %q: %w", step.ID, err)
		}
	}
	return nil
}

func runStep(state *dealstate.DealState, def *deal.Definition, step deal.Step) error {
	step = redirected(state, step)

	if step.Condition != "" {
		cond := def.Compiled.Get(step.Condition)
		if cond == nil {
			return fmt.Errorf("step %q has no compiled condition (loader bug)", step.ID)
		}
		ok, err := expr.EvaluateCondition(cond, state)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	available, ok := state.CashBalances[step.FromFund]
	if !ok {
		available = decimal.Zero
	}

	target, err := resolveAmount(state, def, step.AmountRule, available)
	if err != nil {
		return err
	}

	payment := decimal.Min(available, decimal.Max(decimal.Zero, target))

	if payment.GreaterThan(paymentEpsilon) {
		if err := applyPayment(state, step, payment); err != nil {
			return err
		}
	}

	// Shortfall bookkeeping runs even when available == 0 — there is no
	// early return above for an empty fund.
	shortfall := decimal.Max(decimal.Zero, target.Sub(payment))
	if shortfall.GreaterThan(shortfallEpsilon) && step.UnpaidLedgerID != "" {
		state.AddToLedger(step.UnpaidLedgerID, shortfall)
	}
	return nil
}

// redirected returns step with its FromFund/To/Group overridden by the
// matching Redirect* fields, but only when some Test's redirect effect
// has named step.ID as its Target this period (internal/rules sets
// state.Flags["redirect:"+step.ID] when applying that effect).
func redirected(state *dealstate.DealState, step deal.Step) deal.Step {
	if !state.Flags["redirect:"+step.ID] {
		return step
	}
	if step.RedirectFromFund != "" {
		step.FromFund = step.RedirectFromFund
	}
	if step.RedirectTo != "" {
		step.To = step.RedirectTo
	}
	if step.RedirectGroup != "" {
		step.Group = step.RedirectGroup
	}
	return step
}

func resolveAmount(state *dealstate.DealState, def *deal.Definition, rule string, available decimal.Decimal) (decimal.Decimal, error) {
	if rule == amountAll || rule == amountRemaining {
		return available, nil
	}
	e := def.Compiled.Get(rule)
	if e == nil {
		return decimal.Zero, fmt.Errorf("amount_rule %q has no compiled expression (loader bug)", rule)
	}
	v, err := expr.Evaluate(e, state)
	if err != nil {
		return decimal.Zero, err
	}
	return v.AsNumber(), nil
}

func applyPayment(state *dealstate.DealState, step deal.Step, payment decimal.Decimal) error {
	switch step.Action {
	case deal.ActionPayBondInterest:
		return state.WithdrawCash(step.FromFund, payment)
	case deal.ActionPayBondPrincipal:
		return state.PayBondPrincipal(step.Group, payment, step.FromFund)
	case deal.ActionPayFee:
		return state.WithdrawCash(step.FromFund, payment)
	case deal.ActionTransferFund:
		return state.TransferCash(step.FromFund, step.To, payment)
	case deal.ActionDeposit:
		return state.DepositFunds(step.To, payment)
	}
	return fmt.Errorf("unknown step action %q", step.Action)
}
