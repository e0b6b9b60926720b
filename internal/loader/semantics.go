package loader

import (
	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/expr"
)

// validateSemantics runs every cross-reference check against an
// already-hydrated Definition, collecting every failure into one
// aggregate *LogicIntegrity rather than stopping at the first.
func validateSemantics(def *deal.Definition) error {
	c := &problemCollector{}

	knownFunds := idSet(def.Funds)
	knownBonds := idSet(def.Bonds)
	knownLedgers := idSet(def.Ledgers)

	checkCouponCapRefs(def, c)
	checkWriteDownOrder(def, knownBonds, c)
	checkStepReferences(def, "interest", def.Waterfalls.Interest, knownFunds, knownBonds, knownLedgers, c)
	checkStepReferences(def, "principal", def.Waterfalls.Principal, knownFunds, knownBonds, knownLedgers, c)
	checkTestReferences(def, c)
	checkVariableDeclarationOrder(def, c)
	checkExpressionsParse(def, c)

	return c.err()
}

func idSet[T any](m map[string]T) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// (a) FLOAT/WAC coupons that cap must name a cap_ref resolving to a
// declared variable.
func checkCouponCapRefs(def *deal.Definition, c *problemCollector) {
	declaredVars := map[string]bool{}
	for _, v := range def.Variables {
		declaredVars[v.Name] = true
	}
	for _, id := range def.BondOrder {
		b := def.Bonds[id]
		if b.Coupon.CapRef == "" {
			continue
		}
		if !declaredVars[b.Coupon.CapRef] {
			c.add("bond %s: cap_ref %q does not name a declared variable", id, b.Coupon.CapRef)
		}
	}
}

// (b) write_down_order must be a subset of declared bonds.
func checkWriteDownOrder(def *deal.Definition, knownBonds map[string]bool, c *problemCollector) {
	for _, id := range def.Waterfalls.LossAllocation.WriteDownOrder {
		if !knownBonds[id] {
			c.add("loss_allocation.write_down_order: unknown bond %q", id)
		}
	}
}

// (c)-(e) every step's from_fund/to/group/unpaid_ledger_id must resolve,
// and so must its redirect overrides where set.
func checkStepReferences(def *deal.Definition, waterfallName string, steps []deal.Step, funds, bonds, ledgers map[string]bool, c *problemCollector) {
	for _, s := range steps {
		if s.FromFund != "" && !funds[s.FromFund] {
			c.add("%s step %s: unknown from_fund %q", waterfallName, s.ID, s.FromFund)
		}
		if s.RedirectFromFund != "" && !funds[s.RedirectFromFund] {
			c.add("%s step %s: unknown redirect_from_fund %q", waterfallName, s.ID, s.RedirectFromFund)
		}
		switch s.Action {
		case deal.ActionTransferFund, deal.ActionDeposit:
			if s.To != "" && !funds[s.To] {
				c.add("%s step %s: unknown to-fund %q", waterfallName, s.ID, s.To)
			}
			if s.RedirectTo != "" && !funds[s.RedirectTo] {
				c.add("%s step %s: unknown redirect_to %q", waterfallName, s.ID, s.RedirectTo)
			}
		case deal.ActionPayBondInterest, deal.ActionPayBondPrincipal:
			if !bonds[s.Group] {
				c.add("%s step %s: unknown target bond %q", waterfallName, s.ID, s.Group)
			}
			if s.RedirectGroup != "" && !bonds[s.RedirectGroup] {
				c.add("%s step %s: unknown redirect_group %q", waterfallName, s.ID, s.RedirectGroup)
			}
		}
		if s.UnpaidLedgerID != "" && !ledgers[s.UnpaidLedgerID] {
			c.add("%s step %s: unknown unpaid_ledger_id %q", waterfallName, s.ID, s.UnpaidLedgerID)
		}
	}
}

// (f) test effect targets (set_variable, redirect) must resolve to
// declared variables/steps; set_flag is always admissible since flags
// are an open namespace.
func checkTestReferences(def *deal.Definition, c *problemCollector) {
	declaredVars := map[string]bool{}
	for _, v := range def.Variables {
		declaredVars[v.Name] = true
	}
	declaredSteps := map[string]bool{}
	for _, s := range def.Waterfalls.Interest {
		declaredSteps[s.ID] = true
	}
	for _, s := range def.Waterfalls.Principal {
		declaredSteps[s.ID] = true
	}
	for _, t := range def.Tests {
		for _, e := range t.Effects {
			switch e.Kind {
			case deal.EffectSetVariable:
				if !declaredVars[e.Variable] {
					c.add("test %s: set_variable effect references unknown variable %q", t.ID, e.Variable)
				}
			case deal.EffectRedirect:
				if !declaredSteps[e.Target] {
					c.add("test %s: redirect effect references unknown step %q", t.ID, e.Target)
				}
			}
		}
	}
}

// (g) a variable's expression may only reference variables declared
// strictly before it in def.Variables — checked by walking the parsed
// AST's bare identifiers and tracking a "declared so far" set.
func checkVariableDeclarationOrder(def *deal.Definition, c *problemCollector) {
	declaredSoFar := map[string]bool{}
	for _, v := range def.Variables {
		e, err := expr.Parse(v.Expression)
		if err != nil {
			// A parse failure here is reported again, identically, by
			// checkExpressionsParse; skip to avoid duplicate noise.
			declaredSoFar[v.Name] = true
			continue
		}
		for _, name := range expr.BareIdentifiers(e) {
			if name == v.Name {
				c.add("variable %s: expression references itself", v.Name)
				continue
			}
			if isDeclaredVariableName(def, name) && !declaredSoFar[name] {
				c.add("variable %s: references variable %q not yet declared at this point", v.Name, name)
			}
		}
		declaredSoFar[v.Name] = true
	}
}

func isDeclaredVariableName(def *deal.Definition, name string) bool {
	for _, v := range def.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// checkExpressionsParse is the final semantic pass: every expression
// string reachable from the Definition must parse. Individually this
// duplicates what compileAll will do, but a parse failure is reported
// here as a LogicIntegrity problem (naming the offending rule), so
// compileAll never sees an unparseable rule from a Definition that
// passed this check.
func checkExpressionsParse(def *deal.Definition, c *problemCollector) {
	walkExpressions(def, func(label, src string) {
		if src == "" || src == "ALL" || src == "REMAINING" {
			return
		}
		if _, err := expr.Parse(src); err != nil {
			c.add("%s: %v", label, err)
		}
	})
}
