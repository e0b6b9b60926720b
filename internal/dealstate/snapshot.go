package dealstate

import "github.com/shopspring/decimal"

// PeriodSnapshot is an immutable copy of the deal's state at the close
// of one period, appended to DealState.History. It is the unit the
// engine's tape and its idempotence property operate over.
type PeriodSnapshot struct {
	PeriodIndex int
	Date        string

	CashBalances map[string]decimal.Decimal
	Ledgers      map[string]decimal.Decimal
	Bonds        map[string]BondState
	Variables    map[string]decimal.Decimal
	Flags        map[string]bool
	Triggers     map[string]TriggerState
}

// Snapshot deep-copies the current state into a PeriodSnapshot, appends
// it to History, and advances PeriodIndex. Called once per period by
// the engine after loss allocation completes.
func (s *DealState) Snapshot(date string) PeriodSnapshot {
	snap := PeriodSnapshot{
		PeriodIndex:  s.PeriodIndex,
		Date:         date,
		CashBalances: copyDecimalMap(s.CashBalances),
		Ledgers:      copyDecimalMap(s.Ledgers),
		Bonds:        copyBondMap(s.Bonds),
		Variables:    make(map[string]decimal.Decimal, len(s.Variables)),
		Flags:        copyBoolMap(s.Flags),
		Triggers:     copyTriggerMap(s.TriggerStates),
	}
	for k, v := range s.Variables {
		snap.Variables[k] = v.AsNumber()
	}

	s.History = append(s.History, snap)
	s.CurrentDate = date
	s.PeriodIndex++
	return snap
}

func copyDecimalMap(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBondMap(m map[string]BondState) map[string]BondState {
	out := make(map[string]BondState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyTriggerMap(m map[string]*TriggerState) map[string]TriggerState {
	out := make(map[string]TriggerState, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}
