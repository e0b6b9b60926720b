package rmbserr_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
	"github.com/jiangshenghai57/rmbs-engine/internal/loader"
	"github.com/jiangshenghai57/rmbs-engine/internal/rmbserr"
)

// TestErrorsAsMatchesEveryConcreteType checks that a loader
// SchemaViolation, an expr.EvaluationError and a
// dealstate.InvariantViolation each recover as rmbserr.RMBSError via a
// single errors.As call, without the caller needing to know which
// package raised it.
func TestErrorsAsMatchesEveryConcreteType(t *testing.T) {
	_, loadErr := loader.LoadBytes([]byte("not json"))
	require.Error(t, loadErr)

	compiled := deal.NewCompiled()
	require.NoError(t, compiled.Add("no_such_identifier"))
	def := &deal.Definition{
		Funds:    map[string]deal.Fund{"IAF": {ID: "IAF"}},
		Compiled: compiled,
	}
	state := dealstate.New(def, nil)
	state.FundsMissingPolicy = dealstate.MissingError
	e := compiled.Get("no_such_identifier")
	require.NotNil(t, e)
	_, evalErr := expr.Evaluate(e, state)
	require.Error(t, evalErr)

	stateErr := state.WithdrawCash("IAF", decimal.NewFromInt(10))
	require.Error(t, stateErr)

	for _, err := range []error{loadErr, evalErr, stateErr} {
		var asRMBSErr rmbserr.RMBSError
		assert.Truef(t, errors.As(err, &asRMBSErr), "errors.As failed for %T", err)
		assert.NotEmpty(t, asRMBSErr.Error())
	}
}
