package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

func mustCompile(t *testing.T, c *deal.Compiled, srcs ...string) {
	t.Helper()
	for _, s := range srcs {
		require.NoError(t, c.Add(s))
	}
}

func TestEvaluateVariablesInDeclarationOrder(t *testing.T) {
	compiled := deal.NewCompiled()
	mustCompile(t, compiled, "funds.IAF + funds.PAF", "TotalAvailable * 2")

	def := &deal.Definition{
		Funds: map[string]deal.Fund{"IAF": {ID: "IAF"}, "PAF": {ID: "PAF"}},
		Variables: []deal.Variable{
			{Name: "TotalAvailable", Expression: "funds.IAF + funds.PAF"},
			{Name: "DoubleTotal", Expression: "TotalAvailable * 2"},
		},
		Compiled: compiled,
	}
	state := dealstate.New(def, nil)
	require.NoError(t, state.DepositFunds("IAF", decimal.NewFromInt(30)))
	require.NoError(t, state.DepositFunds("PAF", decimal.NewFromInt(20)))
	state.StartPeriod(decimal.Zero, decimal.Zero, decimal.Zero)

	require.NoError(t, EvaluateVariables(state, def))

	total, ok := state.GetVariable("TotalAvailable")
	require.True(t, ok)
	assert.True(t, total.Num.Equal(decimal.NewFromInt(50)))

	double, ok := state.GetVariable("DoubleTotal")
	require.True(t, ok)
	assert.True(t, double.Num.Equal(decimal.NewFromInt(100)))
}

// TestTriggerHysteresisCureEqualsThree reproduces spec scenario 5
// exactly: a test on ratio = collateral / bonds >= 1.10 with
// cure_periods = 3, walked through the period sequence
// 1.25, 1.06, 1.11, 1.08, 1.11, 1.12, 1.13 and the expected state after
// each period: CLEAN, BREACHED, CURING(1), BREACHED (reset), CURING(1),
// CURING(2), CLEAN.
func TestTriggerHysteresisCureEqualsThree(t *testing.T) {
	compiled := deal.NewCompiled()
	mustCompile(t, compiled, "collateral.current_balance / BondTotal", "1.10")

	def := &deal.Definition{
		Tests: []deal.Test{
			{
				ID:            "OCTest",
				ValueRule:     "collateral.current_balance / BondTotal",
				ThresholdRule: "1.10",
				Comparator:    deal.CompValueGEQThreshold,
				CurePeriods:   3,
			},
		},
		Compiled: compiled,
	}
	state := dealstate.New(def, nil)

	ratios := []decimal.Decimal{
		decimal.NewFromFloat(1.25),
		decimal.NewFromFloat(1.06),
		decimal.NewFromFloat(1.11),
		decimal.NewFromFloat(1.08),
		decimal.NewFromFloat(1.11),
		decimal.NewFromFloat(1.12),
		decimal.NewFromFloat(1.13),
	}
	wantBreached := []bool{false, true, true, true, true, true, false}
	// months_cured increments on every passing period regardless of
	// IsBreached; it is only meaningful as a CURING(k) label while
	// IsBreached is true (the counter update runs unconditionally).
	wantMonthsCured := []int{1, 0, 1, 0, 1, 2, 3}

	for i, ratio := range ratios {
		state.StartPeriod(ratio, decimal.NewFromInt(1), decimal.Zero)
		state.SetVariable("BondTotal", expr.Number(decimal.NewFromInt(1)))
		require.NoError(t, EvaluateTests(state, def))

		ts := state.TriggerStates["OCTest"]
		assert.Equalf(t, wantBreached[i], ts.IsBreached, "period %d breached", i+1)
		assert.Equalf(t, wantMonthsCured[i], ts.MonthsCured, "period %d months_cured", i+1)
		assert.Equal(t, wantBreached[i], state.Flags["OCTest"])
	}
}

func TestEffectsApply(t *testing.T) {
	compiled := deal.NewCompiled()
	mustCompile(t, compiled, "collateral.current_balance", "1", "99")

	def := &deal.Definition{
		Tests: []deal.Test{
			{
				ID:            "AlwaysRun",
				ValueRule:     "collateral.current_balance",
				ThresholdRule: "1",
				Comparator:    deal.CompValueLTThreshold,
				CurePeriods:   1,
				Effects: []deal.Effect{
					{Kind: deal.EffectSetFlag, Flag: "IsInEvent"},
					{Kind: deal.EffectSetVariable, Variable: "CapOverride", Value: "99"},
					{Kind: deal.EffectRedirect, Target: "pay-A-prin"},
				},
			},
		},
		Compiled: compiled,
	}
	state := dealstate.New(def, nil)
	state.StartPeriod(decimal.Zero, decimal.Zero, decimal.Zero)

	require.NoError(t, EvaluateTests(state, def))

	assert.True(t, state.Flags["IsInEvent"])
	v, ok := state.GetVariable("CapOverride")
	require.True(t, ok)
	assert.True(t, v.Num.Equal(decimal.NewFromInt(99)))
	// internal/waterfall.runStep looks for exactly this key to decide
	// whether a step's Redirect* fields override its normal routing.
	assert.True(t, state.Flags["redirect:pay-A-prin"])
}
