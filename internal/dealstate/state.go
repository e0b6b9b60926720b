// Package dealstate implements the mutable runtime state of one deal
// simulation (spec component C4): cash buckets, bond balances, ledgers,
// per-period variables and flags, trigger-cure counters, and history.
//
// A *DealState is owned exclusively by one simulation; it is never
// shared across goroutines. It implements internal/expr.Context so the
// expression engine can read it directly.
package dealstate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

// MissingPolicy controls how a reference to an unknown fund or bond
// resolves during expression evaluation.
type MissingPolicy int

const (
	// MissingZero resolves an unknown id to zero (the Excel/financial-DSL
	// tradition, and the default reference behavior here).
	MissingZero MissingPolicy = iota
	// MissingError raises expr.EvaluationError{Subkind: SubkindName}.
	MissingError
)

// defaultOverdraftEpsilon is the default absolute tolerance used to absorb
// float/decimal rounding noise in non-negativity checks.
var defaultOverdraftEpsilon = decimal.New(1, -5) // 1e-5

// BondState tracks the dynamic status of a single bond.
type BondState struct {
	OriginalBalance             decimal.Decimal
	CurrentBalance              decimal.Decimal
	DeferredBalance             decimal.Decimal
	InterestShortfallCumulative decimal.Decimal
}

// Factor is CurrentBalance / OriginalBalance, defined as zero when the
// original balance is zero.
func (b BondState) Factor() decimal.Decimal {
	if b.OriginalBalance.IsZero() {
		return decimal.Zero
	}
	return b.CurrentBalance.Div(b.OriginalBalance)
}

// TriggerState is the per-trigger hysteresis counter state.
type TriggerState struct {
	IsBreached     bool
	MonthsBreached int
	MonthsCured    int
	CureThreshold  int
}

// Diagnostic is a non-fatal message surfaced to a caller-supplied sink
// (overdraft-within-tolerance, overpay-clamped, non-convergence, ...).
// The core never logs these itself.
type Diagnostic struct {
	Code    string
	Message string
}

// DiagSink receives Diagnostics as they occur. A nil sink discards them.
type DiagSink func(Diagnostic)

// DealState is the mutable runtime state of one deal simulation.
type DealState struct {
	def *deal.Definition

	PeriodIndex int
	CurrentDate string // ISO-8601; the core does no calendar arithmetic beyond storing this

	CashBalances  map[string]decimal.Decimal
	Ledgers       map[string]decimal.Decimal
	Bonds         map[string]BondState
	Variables     map[string]expr.Value
	Flags         map[string]bool
	TriggerStates map[string]*TriggerState

	History []PeriodSnapshot

	// collateral scope, refreshed once per period by the period driver
	collateralCurrentBalance  decimal.Decimal
	collateralOriginalBalance decimal.Decimal
	collateralWAC             decimal.Decimal

	FundsMissingPolicy MissingPolicy
	BondsMissingPolicy MissingPolicy
	OverdraftEpsilon   decimal.Decimal

	diag DiagSink

	// declaredVars tracks which variable names have been computed so
	// far in the current period, for LookupVariable's forward-reference
	// check.
	declaredVars map[string]bool
}

// New constructs a DealState at t=0: all bonds at original balance, all
// funds/ledgers at zero, empty history.
func New(def *deal.Definition, diag DiagSink) *DealState {
	s := &DealState{
		def:                def,
		CashBalances:       map[string]decimal.Decimal{},
		Ledgers:            map[string]decimal.Decimal{},
		Bonds:              map[string]BondState{},
		Variables:          map[string]expr.Value{},
		Flags:              map[string]bool{},
		TriggerStates:      map[string]*TriggerState{},
		OverdraftEpsilon:   defaultOverdraftEpsilon,
		diag:               diag,
		declaredVars:       map[string]bool{},
		// rest of fields zero-valued until StartPeriod is called
	}

	for id := range def.Funds {
		s.CashBalances[id] = decimal.Zero
	}
	for id, b := range def.Bonds {
		s.Bonds[id] = BondState{OriginalBalance: b.OriginalBalance, CurrentBalance: b.OriginalBalance}
	}
	for id := range def.Ledgers {
		s.Ledgers[id] = decimal.Zero
	}
	if _, ok := s.Ledgers["CumulativeLoss"]; !ok {
		s.Ledgers["CumulativeLoss"] = decimal.Zero
	}
	for _, t := range def.Tests {
		cure := t.CurePeriods
		if cure < 0 {
			cure = 0
		}
		s.TriggerStates[t.ID] = &TriggerState{CureThreshold: cure}
	}

	return s
}

func (s *DealState) emit(code, format string, args ...interface{}) {
	if s.diag == nil {
		return
	}
	s.diag(Diagnostic{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Diagnose emits a non-fatal Diagnostic through the configured sink.
// Exported for use by other core packages (internal/lossalloc,
// internal/waterfall) that need to surface a non-fatal condition
// without logging it themselves.
func (s *DealState) Diagnose(code, format string, args ...interface{}) {
	s.emit(code, format, args...)
}

// StartPeriod resets the per-period "declared so far" variable tracking
// and stamps collateral scope values for the period's expressions. It is
// called by the period driver before running C5.
func (s *DealState) StartPeriod(currentBalance, originalBalance, wac decimal.Decimal) {
	s.declaredVars = map[string]bool{}
	s.collateralCurrentBalance = currentBalance
	s.collateralOriginalBalance = originalBalance
	s.collateralWAC = wac
}

// --- Cash management ---

// DepositFunds injects cash into a bucket. amount must be non-negative.
func (s *DealState) DepositFunds(bucketID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return negativeAmount("deposit_funds", amount.String())
	}
	s.ensureBucket(bucketID)
	s.CashBalances[bucketID] = s.CashBalances[bucketID].Add(amount)
	return nil
}

// TransferCash moves cash between buckets, enforcing the overdraft
// tolerance.
func (s *DealState) TransferCash(fromID, toID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return negativeAmount("transfer_cash", amount.String())
	}
	if _, ok := s.CashBalances[fromID]; !ok {
		return unknownBucket(fromID)
	}
	s.ensureBucket(toID)
	have := s.CashBalances[fromID]
	if have.LessThan(amount.Sub(s.OverdraftEpsilon)) {
		return overdraft(fromID, have.String(), amount.String())
	}
	if have.LessThan(amount) {
		s.emit("overdraft_within_tolerance", "transfer of %s from %q exceeds balance %s within tolerance", amount, fromID, have)
	}
	s.CashBalances[fromID] = have.Sub(amount)
	s.CashBalances[toID] = s.CashBalances[toID].Add(amount)
	return nil
}

// WithdrawCash removes cash from the system (fees, coupon payments, ...).
func (s *DealState) WithdrawCash(bucketID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return negativeAmount("withdraw_cash", amount.String())
	}
	if _, ok := s.CashBalances[bucketID]; !ok {
		return unknownBucket(bucketID)
	}
	have := s.CashBalances[bucketID]
	if have.LessThan(amount.Sub(s.OverdraftEpsilon)) {
		return overdraft(bucketID, have.String(), amount.String())
	}
	if have.LessThan(amount) {
		s.emit("overdraft_within_tolerance", "withdrawal of %s from %q exceeds balance %s within tolerance", amount, bucketID, have)
	}
	s.CashBalances[bucketID] = have.Sub(amount)
	return nil
}

// PayBondPrincipal withdraws amount from sourceFund and reduces the
// bond's current balance by the same amount, clamped at zero.
func (s *DealState) PayBondPrincipal(bondID string, amount decimal.Decimal, sourceFund string) error {
	if amount.IsNegative() {
		return negativeAmount("pay_bond_principal", amount.String())
	}
	if err := s.WithdrawCash(sourceFund, amount); err != nil {
		return err
	}
	b, ok := s.Bonds[bondID]
	if !ok {
		return unknownBucket(bondID)
	}
	if amount.GreaterThan(b.CurrentBalance.Add(s.OverdraftEpsilon)) {
		s.emit("overpay_clamped", "overpaying bond %q: balance %s, payment %s", bondID, b.CurrentBalance, amount)
	}
	newBal := b.CurrentBalance.Sub(amount)
	if newBal.IsNegative() {
		newBal = decimal.Zero
	}
	b.CurrentBalance = newBal
	s.Bonds[bondID] = b
	return nil
}

// WriteDownBond reduces a bond's current balance by amount (a realized
// loss allocation), clamped at zero.
func (s *DealState) WriteDownBond(bondID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, negativeAmount("write_down_bond", amount.String())
	}
	b, ok := s.Bonds[bondID]
	if !ok {
		return decimal.Zero, unknownBucket(bondID)
	}
	writeDown := decimal.Min(amount, b.CurrentBalance)
	b.CurrentBalance = b.CurrentBalance.Sub(writeDown)
	if b.CurrentBalance.IsNegative() {
		b.CurrentBalance = decimal.Zero
	}
	s.Bonds[bondID] = b
	return writeDown, nil
}

func (s *DealState) ensureBucket(id string) {
	if _, ok := s.CashBalances[id]; !ok {
		s.CashBalances[id] = decimal.Zero
	}
}

// --- Variables & ledgers ---

// SetVariable records a variable's value for the current period and
// marks it as declared, so later LookupVariable calls this period can
// see it.
func (s *DealState) SetVariable(name string, value expr.Value) {
	s.Variables[name] = value
	s.declaredVars[name] = true
}

// GetVariable returns a previously computed variable value.
func (s *DealState) GetVariable(name string) (expr.Value, bool) {
	v, ok := s.Variables[name]
	return v, ok
}

// SetLedger sets a ledger to an absolute value.
func (s *DealState) SetLedger(id string, value decimal.Decimal) {
	s.Ledgers[id] = value
}

// AddToLedger adds delta to a ledger's current value, returning the new
// value. Callers allocating cumulative loss must check monotonicity
// themselves via CheckCumulativeLoss if delta could be negative;
// in normal operation deltas here are non-negative.
func (s *DealState) AddToLedger(id string, delta decimal.Decimal) decimal.Decimal {
	v := s.Ledgers[id].Add(delta)
	s.Ledgers[id] = v
	return v
}

// CheckCumulativeLoss verifies the named ledger did not move backward
// relative to its previous value, returning an InvariantViolation if it
// did. Called by internal/lossalloc after updating the cumulative-loss
// ledger.
func (s *DealState) CheckCumulativeLoss(id string, previous decimal.Decimal) error {
	if s.Ledgers[id].LessThan(previous) {
		return nonMonotoneLoss(id)
	}
	return nil
}
