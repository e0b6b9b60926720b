// Package collateral supplies the per-period collateral cashflow stream
// consumed by internal/engine's period driver. The stream's generator
// is a boundary concern; the two implementations here are reference
// generators, not part of the core.
package collateral

import "github.com/shopspring/decimal"

// Cashflow is one period's collateral record: interest_collected,
// principal_collected, realized_loss, end_pool_balance, optional
// delinquency_60_plus_balance, wac, wam, period_date.
type Cashflow struct {
	PeriodDate              string
	InterestCollected       decimal.Decimal
	PrincipalCollected      decimal.Decimal
	RealizedLoss            decimal.Decimal
	EndPoolBalance          decimal.Decimal
	Delinquency60PlusBalance decimal.Decimal
	WAC                     decimal.Decimal
	WAM                     int
}

// Source yields one Cashflow per call, in period order. Next returns
// ok=false once the stream is exhausted (e.g. WAM elapsed).
type Source interface {
	Next() (cf Cashflow, ok bool, err error)
}
