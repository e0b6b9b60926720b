// Package loader reads a deal description from JSON and produces a
// validated, immutable *deal.Definition. Validation runs in two passes:
// syntactic (struct tags via github.com/go-playground/validator/v10)
// and semantic (hand-written cross-reference checks across bonds,
// funds, ledgers, variables, tests, and waterfall steps).
package loader

import "github.com/shopspring/decimal"

// wireMeta, wireBond, ... mirror deal's exported types but exist
// separately so the wire format (field names, optionality, validation
// tags) can evolve independently of the in-memory representation.

type wireDeal struct {
	Meta            wireMeta       `json:"meta" validate:"required"`
	Bonds           []wireBond     `json:"bonds" validate:"required,min=1,dive"`
	Funds           []wireFund     `json:"funds" validate:"required,min=1,dive"`
	Ledgers         []wireLedger   `json:"ledgers" validate:"dive"`
	Variables       []wireVariable `json:"variables" validate:"dive"`
	Tests           []wireTest     `json:"tests" validate:"dive"`
	Waterfalls      wireWaterfalls `json:"waterfalls" validate:"required"`
	DepositMapping  wireDepositMap `json:"deposit_mapping" validate:"required"`
	CleanUpCallRule string         `json:"clean_up_call_rule"`
	MaxPeriods      int            `json:"max_periods" validate:"gte=0"`
}

type wireMeta struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	AssetClass string `json:"asset_class"`
	Version    string `json:"version"`
}

type wireCoupon struct {
	Kind      string          `json:"kind" validate:"required,oneof=FIXED FLOAT WAC VARIABLE"`
	FixedRate decimal.Decimal `json:"fixed_rate"`
	Index     string          `json:"index"`
	Margin    decimal.Decimal `json:"margin"`
	CapRef    string          `json:"cap_ref"`
}

type wireBond struct {
	ID                 string          `json:"id" validate:"required"`
	OriginalBalance    decimal.Decimal `json:"original_balance" validate:"required"`
	Coupon             wireCoupon      `json:"coupon" validate:"required"`
	InterestPriority   int             `json:"interest_priority"`
	PrincipalPriority  int             `json:"principal_priority"`
	GroupTag           string          `json:"group_tag"`
	LossAbsorptionRank int             `json:"loss_absorption_rank"`
}

type wireFund struct {
	ID                string `json:"id" validate:"required"`
	Description       string `json:"description"`
	TargetBalanceRule string `json:"target_balance_rule"`
}

type wireLedger struct {
	ID          string `json:"id" validate:"required"`
	Description string `json:"description"`
}

type wireVariable struct {
	Name       string `json:"name" validate:"required"`
	Expression string `json:"expression" validate:"required"`
}

type wireEffect struct {
	Kind     string `json:"kind" validate:"required,oneof=set_flag set_variable redirect"`
	Flag     string `json:"flag"`
	Variable string `json:"variable"`
	Value    string `json:"value"`
	Target   string `json:"target"`
}

type wireTest struct {
	ID            string       `json:"id" validate:"required"`
	Kind          string       `json:"kind"`
	ValueRule     string       `json:"value_rule" validate:"required"`
	ThresholdRule string       `json:"threshold_rule" validate:"required"`
	Comparator    string       `json:"comparator" validate:"required,oneof=VALUE_LT_THRESHOLD VALUE_LE_THRESHOLD VALUE_GT_THRESHOLD VALUE_GEQ_THRESHOLD VALUE_EQ_THRESHOLD"`
	CurePeriods   int          `json:"cure_periods" validate:"gte=0"`
	Effects       []wireEffect `json:"effects" validate:"dive"`
}

type wireStep struct {
	ID               string `json:"id" validate:"required"`
	Action           string `json:"action" validate:"required,oneof=PAY_BOND_INTEREST PAY_BOND_PRINCIPAL PAY_FEE TRANSFER_FUND DEPOSIT"`
	FromFund         string `json:"from_fund"`
	To               string `json:"to"`
	Group            string `json:"group"`
	AmountRule       string `json:"amount_rule" validate:"required"`
	Condition        string `json:"condition"`
	UnpaidLedgerID   string `json:"unpaid_ledger_id"`
	RedirectFromFund string `json:"redirect_from_fund"`
	RedirectTo       string `json:"redirect_to"`
	RedirectGroup    string `json:"redirect_group"`
}

type wireLossAllocation struct {
	WriteDownOrder   []string `json:"write_down_order" validate:"required,min=1"`
	LossSourceRule   string   `json:"loss_source_rule" validate:"required"`
	OverflowLedgerID string   `json:"overflow_ledger_id"`
}

type wireWaterfalls struct {
	Interest       []wireStep         `json:"interest" validate:"dive"`
	Principal      []wireStep         `json:"principal" validate:"dive"`
	LossAllocation wireLossAllocation `json:"loss_allocation" validate:"required"`
}

type wireDepositMap struct {
	InterestToFund  string `json:"interest_to_fund"`
	PrincipalToFund string `json:"principal_to_fund"`
}
