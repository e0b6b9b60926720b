// Package lossalloc implements the loss allocator (spec component C7):
// at period end, realized collateral losses write down bond balances in
// declared order and the cumulative-loss ledger is updated.
package lossalloc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

// OverflowPolicy governs what happens to loss left over after every bond
// in write_down_order has been exhausted.
type OverflowPolicy int

const (
	// OverflowToLedger routes residual loss to def.Waterfalls.LossAllocation.OverflowLedgerID
	// (see DESIGN.md). This is the default.
	OverflowToLedger OverflowPolicy = iota
	// OverflowDrop silently drops residual loss, matching the original
	// Python implementation's behavior, retained for compatibility. A
	// Diagnostic is still emitted.
	OverflowDrop
)

// cumulativeLossLedgerID is the conventional ledger id for tracking
// cumulative realized loss; def.Waterfalls.LossAllocation carries no
// override today (dealstate.New creates a "CumulativeLoss" ledger when
// the deal does not declare one).
const cumulativeLossLedgerID = "CumulativeLoss"

// Allocate reads the realized period loss, writes down bonds in
// def.Waterfalls.LossAllocation.WriteDownOrder, and updates the
// cumulative-loss ledger. policy controls residual-loss handling.
func Allocate(state *dealstate.DealState, def *deal.Definition, policy OverflowPolicy) error {
	la := def.Waterfalls.LossAllocation

	lossExpr := def.Compiled.Get(la.LossSourceRule)
	if lossExpr == nil {
		return fmt.Errorf("lossalloc: loss_source_rule %q has no compiled expression (loader bug)", la.LossSourceRule)
	}
	v, err := expr.Evaluate(lossExpr, state)
	if err != nil {
		return fmt.Errorf("lossalloc: evaluating loss_source_rule: %w", err)
	}
	periodLoss := decimal.Max(decimal.Zero, v.AsNumber())
	if periodLoss.IsZero() {
		return nil
	}

	remaining := periodLoss
	for _, bondID := range la.WriteDownOrder {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		written, err := state.WriteDownBond(bondID, remaining)
		if err != nil {
			return fmt.Errorf("lossalloc: writing down %q: %w", bondID, err)
		}
		remaining = remaining.Sub(written)
	}

	prevCumLoss := state.Ledgers[cumulativeLossLedgerID]
	state.AddToLedger(cumulativeLossLedgerID, periodLoss)
	if err := state.CheckCumulativeLoss(cumulativeLossLedgerID, prevCumLoss); err != nil {
		return err
	}

	if remaining.GreaterThan(decimal.Zero) {
		if policy == OverflowToLedger && la.OverflowLedgerID != "" {
			state.AddToLedger(la.OverflowLedgerID, remaining)
		} else {
			state.Diagnose("residual_loss_dropped", "residual loss %s exceeded write_down_order capacity and was dropped", remaining)
		}
	}

	return nil
}
