package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDealJSON() string {
	return `{
		"meta": {"id": "DEAL-1", "name": "Sample RMBS 2026-1"},
		"bonds": [
			{"id": "A", "original_balance": "1000", "coupon": {"kind": "FIXED", "fixed_rate": "0.04"}, "interest_priority": 1, "principal_priority": 1},
			{"id": "B", "original_balance": "200", "coupon": {"kind": "FIXED", "fixed_rate": "0.08"}, "interest_priority": 2, "principal_priority": 2}
		],
		"funds": [
			{"id": "IAF", "description": "interest available funds"},
			{"id": "PAF", "description": "principal available funds"}
		],
		"ledgers": [
			{"id": "CumulativeLoss"},
			{"id": "SeniorShortfall"},
			{"id": "JuniorShortfall"}
		],
		"variables": [
			{"name": "TotalAvailable", "expression": "funds.IAF + funds.PAF"}
		],
		"tests": [
			{
				"id": "OCTest",
				"value_rule": "bonds.A.factor",
				"threshold_rule": "0.9",
				"comparator": "VALUE_GEQ_THRESHOLD",
				"cure_periods": 2,
				"effects": [{"kind": "set_flag", "flag": "oc_breach"}]
			}
		],
		"waterfalls": {
			"interest": [
				{"id": "pay-A-int", "action": "PAY_BOND_INTEREST", "from_fund": "IAF", "group": "A", "amount_rule": "bonds.A.balance * 0.04 / 12", "unpaid_ledger_id": "SeniorShortfall"},
				{"id": "pay-B-int", "action": "PAY_BOND_INTEREST", "from_fund": "IAF", "group": "B", "amount_rule": "bonds.B.balance * 0.08 / 12", "unpaid_ledger_id": "JuniorShortfall"}
			],
			"principal": [
				{"id": "pay-A-prin", "action": "PAY_BOND_PRINCIPAL", "from_fund": "PAF", "group": "A", "amount_rule": "ALL"},
				{"id": "pay-B-prin", "action": "PAY_BOND_PRINCIPAL", "from_fund": "PAF", "group": "B", "amount_rule": "ALL"}
			],
			"loss_allocation": {
				"write_down_order": ["B", "A"],
				"loss_source_rule": "PeriodRealizedLoss"
			}
		},
		"deposit_mapping": {"interest_to_fund": "IAF", "principal_to_fund": "PAF"},
		"clean_up_call_rule": "collateral.current_balance <= 0.10 * collateral.original_balance",
		"max_periods": 360
	}`
}

func TestLoadBytesValidDealSucceeds(t *testing.T) {
	def, err := LoadBytes([]byte(validDealJSON()))
	require.NoError(t, err)
	require.NotNil(t, def)

	assert.Equal(t, "DEAL-1", def.Meta.ID)
	assert.Len(t, def.Bonds, 2)
	assert.Len(t, def.Waterfalls.Interest, 2)
	assert.Equal(t, []string{"B", "A"}, def.Waterfalls.LossAllocation.WriteDownOrder)

	require.NotNil(t, def.Compiled)
	assert.NotNil(t, def.Compiled.Get("bonds.A.balance * 0.04 / 12"))
	assert.NotNil(t, def.Compiled.Get("funds.IAF + funds.PAF"))
	assert.NotNil(t, def.Compiled.Get("collateral.current_balance <= 0.10 * collateral.original_balance"))
	// "ALL" is never compiled; it is a literal sentinel.
	assert.Nil(t, def.Compiled.Get("ALL"))
}

func TestLoadBytesMissingRequiredFieldIsSchemaViolation(t *testing.T) {
	_, err := LoadBytes([]byte(`{"bonds": [], "funds": [], "waterfalls": {"loss_allocation": {"write_down_order": ["A"], "loss_source_rule": "x"}}, "deposit_mapping": {}}`))
	require.Error(t, err)
	var schemaErr *SchemaViolation
	require.ErrorAs(t, err, &schemaErr)
}

func TestLoadBytesUnknownBondInWriteDownOrderIsLogicIntegrity(t *testing.T) {
	bad := `{
		"meta": {"id": "DEAL-2", "name": "Bad Deal"},
		"bonds": [{"id": "A", "original_balance": "1000", "coupon": {"kind": "FIXED", "fixed_rate": "0.04"}}],
		"funds": [{"id": "IAF"}],
		"waterfalls": {
			"interest": [],
			"principal": [],
			"loss_allocation": {"write_down_order": ["ZZZ"], "loss_source_rule": "0"}
		},
		"deposit_mapping": {}
	}`
	_, err := LoadBytes([]byte(bad))
	require.Error(t, err)
	var logicErr *LogicIntegrity
	require.ErrorAs(t, err, &logicErr)
	assert.Contains(t, logicErr.Error(), "ZZZ")
}

func TestLoadBytesVariableForwardReferenceIsLogicIntegrity(t *testing.T) {
	bad := `{
		"meta": {"id": "DEAL-3", "name": "Forward Ref Deal"},
		"bonds": [{"id": "A", "original_balance": "1000", "coupon": {"kind": "FIXED", "fixed_rate": "0.04"}}],
		"funds": [{"id": "IAF"}],
		"variables": [
			{"name": "First", "expression": "Second + 1"},
			{"name": "Second", "expression": "1"}
		],
		"waterfalls": {
			"interest": [], "principal": [],
			"loss_allocation": {"write_down_order": ["A"], "loss_source_rule": "0"}
		},
		"deposit_mapping": {}
	}`
	_, err := LoadBytes([]byte(bad))
	require.Error(t, err)
	var logicErr *LogicIntegrity
	require.ErrorAs(t, err, &logicErr)
	assert.Contains(t, logicErr.Error(), "Second")
}

func TestLoadBytesUnknownFundInStepIsLogicIntegrity(t *testing.T) {
	bad := `{
		"meta": {"id": "DEAL-4", "name": "Bad Fund Deal"},
		"bonds": [{"id": "A", "original_balance": "1000", "coupon": {"kind": "FIXED", "fixed_rate": "0.04"}}],
		"funds": [{"id": "IAF"}],
		"waterfalls": {
			"interest": [{"id": "s1", "action": "PAY_BOND_INTEREST", "from_fund": "NOPE", "group": "A", "amount_rule": "ALL"}],
			"principal": [],
			"loss_allocation": {"write_down_order": ["A"], "loss_source_rule": "0"}
		},
		"deposit_mapping": {}
	}`
	_, err := LoadBytes([]byte(bad))
	require.Error(t, err)
	var logicErr *LogicIntegrity
	require.ErrorAs(t, err, &logicErr)
	assert.Contains(t, logicErr.Error(), "NOPE")
}

func TestLoadBytesCapRefMustResolveToDeclaredVariable(t *testing.T) {
	bad := `{
		"meta": {"id": "DEAL-5", "name": "Bad Cap Ref Deal"},
		"bonds": [{"id": "A", "original_balance": "1000", "coupon": {"kind": "FLOAT", "margin": "0.01", "cap_ref": "MissingCap"}}],
		"funds": [{"id": "IAF"}],
		"waterfalls": {
			"interest": [], "principal": [],
			"loss_allocation": {"write_down_order": ["A"], "loss_source_rule": "0"}
		},
		"deposit_mapping": {}
	}`
	_, err := LoadBytes([]byte(bad))
	require.Error(t, err)
	var logicErr *LogicIntegrity
	require.ErrorAs(t, err, &logicErr)
	assert.Contains(t, logicErr.Error(), "MissingCap")
}

func TestLoadBytesMalformedExpressionIsRejected(t *testing.T) {
	bad := `{
		"meta": {"id": "DEAL-6", "name": "Bad Expr Deal"},
		"bonds": [{"id": "A", "original_balance": "1000", "coupon": {"kind": "FIXED", "fixed_rate": "0.04"}}],
		"funds": [{"id": "IAF"}],
		"variables": [{"name": "Broken", "expression": "1 + "}],
		"waterfalls": {
			"interest": [], "principal": [],
			"loss_allocation": {"write_down_order": ["A"], "loss_source_rule": "0"}
		},
		"deposit_mapping": {}
	}`
	_, err := LoadBytes([]byte(bad))
	require.Error(t, err)
	var logicErr *LogicIntegrity
	require.ErrorAs(t, err, &logicErr)
}
