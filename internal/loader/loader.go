package loader

import (
	"bytes"
	"encoding/json"
	"io"

	validator "github.com/go-playground/validator/v10"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
)

var validate = validator.New()

// Load reads a deal description from r and produces a fully validated,
// compiled *deal.Definition.
func Load(r io.Reader) (*deal.Definition, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return LoadBytes(b)
}

// LoadBytes is Load over an in-memory buffer, for embedded fixtures and
// tests.
func LoadBytes(raw []byte) (*deal.Definition, error) {
	var w wireDeal
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, &SchemaViolation{Paths: []string{"json: " + err.Error()}}
	}

	if err := validate.Struct(w); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			paths := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				paths = append(paths, fe.Namespace()+" failed on "+fe.Tag())
			}
			return nil, &SchemaViolation{Paths: paths}
		}
		return nil, &SchemaViolation{Paths: []string{err.Error()}}
	}

	def := hydrate(w)

	if err := validateSemantics(def); err != nil {
		return nil, err
	}

	if err := compileAll(def); err != nil {
		return nil, err
	}

	return def, nil
}

func hydrate(w wireDeal) *deal.Definition {
	def := &deal.Definition{
		Meta: deal.Meta{
			ID:         w.Meta.ID,
			Name:       w.Meta.Name,
			AssetClass: w.Meta.AssetClass,
			Version:    w.Meta.Version,
		},
		Bonds:     make(map[string]deal.Bond, len(w.Bonds)),
		BondOrder: make([]string, 0, len(w.Bonds)),
		Funds:     make(map[string]deal.Fund, len(w.Funds)),
		Ledgers:   make(map[string]deal.Ledger, len(w.Ledgers)),
		Variables: make([]deal.Variable, 0, len(w.Variables)),
		Tests:     make([]deal.Test, 0, len(w.Tests)),
		DepositMapping: deal.DepositMapping{
			InterestToFund:  w.DepositMapping.InterestToFund,
			PrincipalToFund: w.DepositMapping.PrincipalToFund,
		},
		CleanUpCallRule: w.CleanUpCallRule,
		MaxPeriods:      w.MaxPeriods,
	}

	for _, wb := range w.Bonds {
		def.Bonds[wb.ID] = deal.Bond{
			ID:              wb.ID,
			OriginalBalance: wb.OriginalBalance,
			Coupon: deal.CouponSpec{
				Kind:      deal.CouponKind(wb.Coupon.Kind),
				FixedRate: wb.Coupon.FixedRate,
				Index:     wb.Coupon.Index,
				Margin:    wb.Coupon.Margin,
				CapRef:    wb.Coupon.CapRef,
			},
			InterestPriority:   wb.InterestPriority,
			PrincipalPriority:  wb.PrincipalPriority,
			GroupTag:           wb.GroupTag,
			LossAbsorptionRank: wb.LossAbsorptionRank,
		}
		def.BondOrder = append(def.BondOrder, wb.ID)
	}

	for _, wf := range w.Funds {
		def.Funds[wf.ID] = deal.Fund{
			ID:                wf.ID,
			Description:       wf.Description,
			TargetBalanceRule: wf.TargetBalanceRule,
		}
	}

	for _, wl := range w.Ledgers {
		def.Ledgers[wl.ID] = deal.Ledger{ID: wl.ID, Description: wl.Description}
	}

	for _, wv := range w.Variables {
		def.Variables = append(def.Variables, deal.Variable{Name: wv.Name, Expression: wv.Expression})
	}

	for _, wt := range w.Tests {
		effects := make([]deal.Effect, 0, len(wt.Effects))
		for _, we := range wt.Effects {
			effects = append(effects, deal.Effect{
				Kind:     deal.EffectKind(we.Kind),
				Flag:     we.Flag,
				Variable: we.Variable,
				Value:    we.Value,
				Target:   we.Target,
			})
		}
		def.Tests = append(def.Tests, deal.Test{
			ID:            wt.ID,
			Kind:          wt.Kind,
			ValueRule:     wt.ValueRule,
			ThresholdRule: wt.ThresholdRule,
			Comparator:    deal.Comparator(wt.Comparator),
			CurePeriods:   wt.CurePeriods,
			Effects:       effects,
		})
	}

	def.Waterfalls = deal.Waterfalls{
		Interest:  hydrateSteps(w.Waterfalls.Interest),
		Principal: hydrateSteps(w.Waterfalls.Principal),
		LossAllocation: deal.LossAllocation{
			WriteDownOrder:   append([]string{}, w.Waterfalls.LossAllocation.WriteDownOrder...),
			LossSourceRule:   w.Waterfalls.LossAllocation.LossSourceRule,
			OverflowLedgerID: w.Waterfalls.LossAllocation.OverflowLedgerID,
		},
	}

	return def
}

func hydrateSteps(ws []wireStep) []deal.Step {
	steps := make([]deal.Step, 0, len(ws))
	for _, s := range ws {
		steps = append(steps, deal.Step{
			ID:               s.ID,
			Action:           deal.ActionKind(s.Action),
			FromFund:         s.FromFund,
			To:               s.To,
			Group:            s.Group,
			AmountRule:       s.AmountRule,
			Condition:        s.Condition,
			UnpaidLedgerID:   s.UnpaidLedgerID,
			RedirectFromFund: s.RedirectFromFund,
			RedirectTo:       s.RedirectTo,
			RedirectGroup:    s.RedirectGroup,
		})
	}
	return steps
}
