package loader

import (
	"fmt"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
)

// walkExpressions visits every expression string reachable from def,
// calling visit(label, expression) for each. label identifies the
// owning rule for error messages; it is not interpreted further.
func walkExpressions(def *deal.Definition, visit func(label, src string)) {
	for _, v := range def.Variables {
		visit("variable "+v.Name, v.Expression)
	}
	for _, t := range def.Tests {
		visit("test "+t.ID+".value_rule", t.ValueRule)
		visit("test "+t.ID+".threshold_rule", t.ThresholdRule)
		for i, e := range t.Effects {
			if e.Kind == deal.EffectSetVariable {
				visit(fmt.Sprintf("test %s.effects[%d].value", t.ID, i), e.Value)
			}
		}
	}
	walkSteps := func(kind string, steps []deal.Step) {
		for _, s := range steps {
			visit(kind+" step "+s.ID+".amount_rule", s.AmountRule)
			if s.Condition != "" {
				visit(kind+" step "+s.ID+".condition", s.Condition)
			}
		}
	}
	walkSteps("interest", def.Waterfalls.Interest)
	walkSteps("principal", def.Waterfalls.Principal)
	visit("loss_allocation.loss_source_rule", def.Waterfalls.LossAllocation.LossSourceRule)
	if def.CleanUpCallRule != "" {
		visit("clean_up_call_rule", def.CleanUpCallRule)
	}
}

// compileAll parses every expression string in def exactly once and
// populates def.Compiled, the deal-wide AST cache. Downstream packages
// (rules, waterfall, lossalloc, engine) never call expr.Parse
// themselves — they assume def.Compiled.Get(src) succeeds for any src
// reachable from a validated Definition. The literal amount_rule
// sentinels "ALL" and
// "REMAINING" are not expressions and are skipped; internal/waterfall
// recognizes them by direct string comparison.
func compileAll(def *deal.Definition) error {
	def.Compiled = deal.NewCompiled()
	var firstErr error
	walkExpressions(def, func(label, src string) {
		if src == "" || src == "ALL" || src == "REMAINING" {
			return
		}
		if err := def.Compiled.Add(src); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", label, err)
		}
	})
	if firstErr != nil {
		return &SchemaViolation{Paths: []string{firstErr.Error()}}
	}
	return nil
}
