package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/rmbs-engine/internal/collateral"
	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
)

func sampleDeal(t *testing.T) *deal.Definition {
	t.Helper()
	compiled := deal.NewCompiled()
	exprs := []string{
		"bonds.A.balance * 0.04 / 12",
		"bonds.B.balance * 0.08 / 12",
		amountAllRule,
		"PeriodRealizedLoss",
		"collateral.current_balance <= 0.10 * collateral.original_balance",
	}
	for _, e := range exprs {
		require.NoError(t, compiled.Add(e))
	}

	return &deal.Definition{
		Bonds: map[string]deal.Bond{
			"A": {ID: "A", OriginalBalance: decimal.NewFromInt(1000)},
			"B": {ID: "B", OriginalBalance: decimal.NewFromInt(200)},
		},
		Funds: map[string]deal.Fund{
			"IAF": {ID: "IAF"},
			"PAF": {ID: "PAF"},
		},
		Ledgers: map[string]deal.Ledger{
			"CumulativeLoss":  {ID: "CumulativeLoss"},
			"SeniorShortfall": {ID: "SeniorShortfall"},
			"JuniorShortfall": {ID: "JuniorShortfall"},
		},
		Waterfalls: deal.Waterfalls{
			Interest: []deal.Step{
				{ID: "pay-A-int", Action: deal.ActionPayBondInterest, FromFund: "IAF", Group: "A", AmountRule: "bonds.A.balance * 0.04 / 12", UnpaidLedgerID: "SeniorShortfall"},
				{ID: "pay-B-int", Action: deal.ActionPayBondInterest, FromFund: "IAF", Group: "B", AmountRule: "bonds.B.balance * 0.08 / 12", UnpaidLedgerID: "JuniorShortfall"},
			},
			Principal: []deal.Step{
				{ID: "pay-A-prin", Action: deal.ActionPayBondPrincipal, FromFund: "PAF", Group: "A", AmountRule: amountAllRule},
				{ID: "pay-B-prin", Action: deal.ActionPayBondPrincipal, FromFund: "PAF", Group: "B", AmountRule: amountAllRule},
			},
			LossAllocation: deal.LossAllocation{
				WriteDownOrder: []string{"B", "A"},
				LossSourceRule: "PeriodRealizedLoss",
			},
		},
		DepositMapping: deal.DepositMapping{
			InterestToFund:  "IAF",
			PrincipalToFund: "PAF",
		},
		CleanUpCallRule: "collateral.current_balance <= 0.10 * collateral.original_balance",
		Compiled:        compiled,
	}
}

const amountAllRule = "ALL"

func sampleCollateralRecords() []collateral.Cashflow {
	records := make([]collateral.Cashflow, 0, 40)
	balance := decimal.NewFromInt(1200)
	for i := 0; i < 40; i++ {
		interest := balance.Mul(decimal.NewFromFloat(0.05)).Div(decimal.NewFromInt(12)).Round(2)
		principal := decimal.NewFromInt(40)
		loss := decimal.Zero
		if i == 10 {
			loss = decimal.NewFromInt(15)
		}
		balance = balance.Sub(principal).Sub(loss)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		records = append(records, collateral.Cashflow{
			InterestCollected:  interest,
			PrincipalCollected: principal,
			RealizedLoss:       loss,
			EndPoolBalance:     balance,
			WAC:                decimal.NewFromFloat(0.05),
		})
	}
	return records
}

func TestSimulationRunIsIdempotent(t *testing.T) {
	def := sampleDeal(t)
	records := sampleCollateralRecords()

	runOnce := func() []decimalsByBond {
		sim := NewSimulation(def, DefaultEngineConfig(), collateral.NewStaticVectorSource(records), decimal.NewFromInt(1200), nil)
		snaps, err := sim.Run(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, snaps)
		out := make([]decimalsByBond, len(snaps))
		for i, snap := range snaps {
			out[i] = decimalsByBond{
				a:        snap.Bonds["A"].CurrentBalance,
				b:        snap.Bonds["B"].CurrentBalance,
				cumLoss:  snap.Ledgers["CumulativeLoss"],
				seniorSF: snap.Ledgers["SeniorShortfall"],
				juniorSF: snap.Ledgers["JuniorShortfall"],
			}
		}
		return out
	}

	first := runOnce()
	second := runOnce()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].a.Equal(second[i].a), "period %d bond A mismatch", i)
		assert.True(t, first[i].b.Equal(second[i].b), "period %d bond B mismatch", i)
		assert.True(t, first[i].cumLoss.Equal(second[i].cumLoss), "period %d cumulative loss mismatch", i)
	}
}

type decimalsByBond struct {
	a, b, cumLoss, seniorSF, juniorSF decimal.Decimal
}

func TestSimulationTerminatesOnAllBondsZero(t *testing.T) {
	def := sampleDeal(t)
	// The sample deal's clean-up call fires at period 27 while B is still
	// outstanding, and its "ALL" senior step keeps taking every PAF dollar
	// after A is retired. Drop the clean-up call and cap A's step at A's
	// balance so principal flows on to B and all-bonds-zero ends the run.
	def.CleanUpCallRule = ""
	require.NoError(t, def.Compiled.Add("bonds.A.balance"))
	def.Waterfalls.Principal[0].AmountRule = "bonds.A.balance"
	records := sampleCollateralRecords()
	sim := NewSimulation(def, DefaultEngineConfig(), collateral.NewStaticVectorSource(records), decimal.NewFromInt(1200), nil)

	snaps, err := sim.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.True(t, last.Bonds["A"].CurrentBalance.Add(last.Bonds["B"].CurrentBalance).LessThanOrEqual(decimal.NewFromInt(1)))
}

func TestSimulationHonorsMaxPeriods(t *testing.T) {
	def := sampleDeal(t)
	records := sampleCollateralRecords()
	cfg := DefaultEngineConfig()
	cfg.MaxPeriods = 3
	sim := NewSimulation(def, cfg, collateral.NewStaticVectorSource(records), decimal.NewFromInt(1200), nil)

	snaps, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
}

func TestSimulationRespectsCancellation(t *testing.T) {
	def := sampleDeal(t)
	records := sampleCollateralRecords()
	sim := NewSimulation(def, DefaultEngineConfig(), collateral.NewStaticVectorSource(records), decimal.NewFromInt(1200), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Run(ctx)
	require.Error(t, err)
}
