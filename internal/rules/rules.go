// Package rules implements the variable and trigger evaluator (spec
// component C5): computing declared variables in order, then walking
// each test's cure-period hysteresis state machine and applying its
// effects.
package rules

import (
	"fmt"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

// EvaluateVariables computes every declared variable in declaration
// order and records it on state. A variable's expression may reference
// only variables declared earlier in the same list; internal/loader
// rejects forward references at load time, but dealstate.LookupVariable
// also raises if one slips through, so this is defense in depth.
func EvaluateVariables(state *dealstate.DealState, def *deal.Definition) error {
	for _, v := range def.Variables {
		e := def.Compiled.Get(v.Expression)
		if e == nil {
			return fmt.Errorf("rules: variable %q has no compiled expression (loader bug)", v.Name)
		}
		val, err := expr.Evaluate(e, state)
		if err != nil {
			return fmt.Errorf("rules: evaluating variable %q: %w", v.Name, err)
		}
		state.SetVariable(v.Name, val)
	}
	return nil
}

// EvaluateTests runs the full trigger hysteresis state machine for every
// declared test, in declaration order, and applies each test's effects.
func EvaluateTests(state *dealstate.DealState, def *deal.Definition) error {
	for _, t := range def.Tests {
		if err := evaluateOneTest(state, def, t); err != nil {
			return err
		}
	}
	return nil
}

func evaluateOneTest(state *dealstate.DealState, def *deal.Definition, t deal.Test) error {
	valueExpr := def.Compiled.Get(t.ValueRule)
	thresholdExpr := def.Compiled.Get(t.ThresholdRule)
	if valueExpr == nil || thresholdExpr == nil {
		return fmt.Errorf("rules: test %q has no compiled expression (loader bug)", t.ID)
	}

	vVal, err := expr.Evaluate(valueExpr, state)
	if err != nil {
		return fmt.Errorf("rules: evaluating test %q value_rule: %w", t.ID, err)
	}
	thVal, err := expr.Evaluate(thresholdExpr, state)
	if err != nil {
		return fmt.Errorf("rules: evaluating test %q threshold_rule: %w", t.ID, err)
	}

	passes := t.Comparator.Evaluate(vVal.AsNumber(), thVal.AsNumber())

	ts := state.TriggerStates[t.ID]
	if ts == nil {
		return fmt.Errorf("rules: test %q has no trigger state (loader bug)", t.ID)
	}
	advanceTriggerState(ts, passes)

	state.Flags[t.ID] = ts.IsBreached

	for _, eff := range t.Effects {
		if err := applyEffect(state, def, eff); err != nil {
			return fmt.Errorf("rules: applying effect on test %q: %w", t.ID, err)
		}
	}
	return nil
}

// advanceTriggerState mutates ts: the next state is a pure function of
// the previous TriggerState and this period's pass/fail, never
// recomputed from the current period alone.
func advanceTriggerState(ts *dealstate.TriggerState, passes bool) {
	if passes {
		ts.MonthsCured++
		ts.MonthsBreached = 0
		if ts.IsBreached && ts.MonthsCured >= ts.CureThreshold {
			ts.IsBreached = false
		}
		return
	}
	ts.MonthsBreached++
	ts.MonthsCured = 0
	ts.IsBreached = true
}

func applyEffect(state *dealstate.DealState, def *deal.Definition, eff deal.Effect) error {
	switch eff.Kind {
	case deal.EffectSetFlag:
		state.Flags[eff.Flag] = true
		return nil
	case deal.EffectSetVariable:
		e := def.Compiled.Get(eff.Value)
		if e == nil {
			return fmt.Errorf("set_variable effect on %q has no compiled expression", eff.Variable)
		}
		val, err := expr.Evaluate(e, state)
		if err != nil {
			return err
		}
		state.SetVariable(eff.Variable, val)
		return nil
	case deal.EffectRedirect:
		// eff.Target names the Step whose routing is overridden.
		// internal/waterfall.runStep checks this flag directly (not
		// through an expression) and, when set, substitutes that step's
		// Redirect* fields for its normal FromFund/To/Group.
		state.Flags["redirect:"+eff.Target] = true
		return nil
	}
	return fmt.Errorf("unknown effect kind %q", eff.Kind)
}
