package dealstate

import (
	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

// Ensure DealState satisfies expr.Context at compile time.
var _ expr.Context = (*DealState)(nil)

// LookupFund resolves "funds.<id>" and bare identifiers that are fund
// ids. Behavior on a miss is governed by FundsMissingPolicy.
func (s *DealState) LookupFund(id string) (expr.Value, error) {
	if v, ok := s.CashBalances[id]; ok {
		return expr.Number(v), nil
	}
	if s.FundsMissingPolicy == MissingError {
		return expr.Value{}, expr.NameError(id, "unknown fund "+id)
	}
	return expr.Number(decimal.Zero), nil
}

// LookupBond resolves "bonds.<id>.<attr>" for attr in
// {balance, factor, shortfall, original}.
func (s *DealState) LookupBond(id, attr string) (expr.Value, error) {
	b, ok := s.Bonds[id]
	if !ok {
		if s.BondsMissingPolicy == MissingError {
			return expr.Value{}, expr.NameError(id, "unknown bond "+id)
		}
		return expr.Number(decimal.Zero), nil
	}
	switch attr {
	case "balance":
		return expr.Number(b.CurrentBalance), nil
	case "factor":
		return expr.Number(b.Factor()), nil
	case "shortfall":
		return expr.Number(b.InterestShortfallCumulative), nil
	case "original":
		return expr.Number(b.OriginalBalance), nil
	case "deferred":
		return expr.Number(b.DeferredBalance), nil
	}
	return expr.Value{}, expr.TypeError(id+"."+attr, "unknown bond attribute "+attr)
}

// LookupLedger resolves "ledgers.<id>"; unknown ledgers default to zero
// regardless of policy, since ledgers are always engine-declared.
func (s *DealState) LookupLedger(id string) (expr.Value, error) {
	return expr.Number(s.Ledgers[id]), nil
}

// LookupTest resolves "tests.<id>.failed" (the only test attribute the
// spec's expression grammar exposes).
func (s *DealState) LookupTest(id, _ string) (expr.Value, error) {
	ts, ok := s.TriggerStates[id]
	if !ok {
		return expr.Bool(false), nil
	}
	return expr.Bool(ts.IsBreached), nil
}

// LookupVariable resolves a bare identifier against variables computed
// earlier in the current period. Returns the ErrNotAVariable sentinel
// when name was never declared in the deal definition at all, so the
// evaluator falls through to fund resolution.
func (s *DealState) LookupVariable(name string) (expr.Value, error) {
	if !s.declaredVars[name] {
		if !s.isDeclaredVariableName(name) {
			return expr.Value{}, expr.ErrNotAVariable()
		}
		return expr.Value{}, expr.NameError(name, "variable "+name+" referenced before it is declared this period")
	}
	return s.Variables[name], nil
}

func (s *DealState) isDeclaredVariableName(name string) bool {
	for _, v := range s.def.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// LookupCollateral resolves "collateral.<attr>" for attr in
// {current_balance, original_balance, wac}.
func (s *DealState) LookupCollateral(attr string) (expr.Value, error) {
	switch attr {
	case "current_balance":
		return expr.Number(s.collateralCurrentBalance), nil
	case "original_balance":
		return expr.Number(s.collateralOriginalBalance), nil
	case "wac":
		return expr.Number(s.collateralWAC), nil
	}
	return expr.Value{}, expr.TypeError("collateral."+attr, "unknown collateral attribute "+attr)
}
