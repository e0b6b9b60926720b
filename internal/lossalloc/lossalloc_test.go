package lossalloc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

func numberValue(n int64) expr.Value {
	return expr.Number(decimal.NewFromInt(n))
}

func lossDef(t *testing.T, writeDownOrder []string, overflowLedger string) *deal.Definition {
	t.Helper()
	compiled := deal.NewCompiled()
	require.NoError(t, compiled.Add("PeriodRealizedLoss"))

	return &deal.Definition{
		Bonds: map[string]deal.Bond{
			"A": {ID: "A", OriginalBalance: decimal.NewFromInt(1000)},
			"B": {ID: "B", OriginalBalance: decimal.NewFromInt(200)},
		},
		Ledgers: map[string]deal.Ledger{
			"CumulativeLoss": {ID: "CumulativeLoss"},
		},
		Waterfalls: deal.Waterfalls{
			LossAllocation: deal.LossAllocation{
				WriteDownOrder:   writeDownOrder,
				LossSourceRule:   "PeriodRealizedLoss",
				OverflowLedgerID: overflowLedger,
			},
		},
		Compiled: compiled,
	}
}

// TestLossAllocationJuniorFirst reproduces spec scenario 4 exactly.
func TestLossAllocationJuniorFirst(t *testing.T) {
	def := lossDef(t, []string{"B", "A"}, "")
	state := dealstate.New(def, nil)
	state.StartPeriod(decimal.Zero, decimal.Zero, decimal.Zero)
	state.SetVariable("PeriodRealizedLoss", numberValue(100))

	require.NoError(t, Allocate(state, def, OverflowToLedger))

	assert.True(t, state.Bonds["B"].CurrentBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, state.Bonds["A"].CurrentBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, state.Ledgers["CumulativeLoss"].Equal(decimal.NewFromInt(100)))
}

func TestLossAllocationExhaustsAllBondsAndOverflowsToLedger(t *testing.T) {
	def := lossDef(t, []string{"B", "A"}, "OverflowLoss")
	def.Ledgers["OverflowLoss"] = deal.Ledger{ID: "OverflowLoss"}
	state := dealstate.New(def, nil)
	state.StartPeriod(decimal.Zero, decimal.Zero, decimal.Zero)
	state.SetVariable("PeriodRealizedLoss", numberValue(1500))

	require.NoError(t, Allocate(state, def, OverflowToLedger))

	assert.True(t, state.Bonds["B"].CurrentBalance.IsZero())
	assert.True(t, state.Bonds["A"].CurrentBalance.IsZero())
	assert.True(t, state.Ledgers["CumulativeLoss"].Equal(decimal.NewFromInt(1500)))
	assert.True(t, state.Ledgers["OverflowLoss"].Equal(decimal.NewFromInt(300)))
}

func TestLossAllocationDropPolicyDiscardsResidual(t *testing.T) {
	var diags []dealstate.Diagnostic
	def := lossDef(t, []string{"B", "A"}, "")
	state := dealstate.New(def, func(d dealstate.Diagnostic) { diags = append(diags, d) })
	state.StartPeriod(decimal.Zero, decimal.Zero, decimal.Zero)
	state.SetVariable("PeriodRealizedLoss", numberValue(1500))

	require.NoError(t, Allocate(state, def, OverflowDrop))

	assert.True(t, state.Bonds["A"].CurrentBalance.IsZero())
	assert.True(t, state.Ledgers["CumulativeLoss"].Equal(decimal.NewFromInt(1500)))
	require.NotEmpty(t, diags)
	assert.Equal(t, "residual_loss_dropped", diags[len(diags)-1].Code)
}

func TestZeroLossIsNoOp(t *testing.T) {
	def := lossDef(t, []string{"B", "A"}, "")
	state := dealstate.New(def, nil)
	state.StartPeriod(decimal.Zero, decimal.Zero, decimal.Zero)
	state.SetVariable("PeriodRealizedLoss", numberValue(0))

	require.NoError(t, Allocate(state, def, OverflowToLedger))
	assert.True(t, state.Bonds["A"].CurrentBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, state.Ledgers["CumulativeLoss"].IsZero())
}
