package expr

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Evaluate runs a parsed expression against ctx and returns its value.
// Evaluate is pure: it performs no I/O and cannot mutate ctx. Any
// failure — unknown identifier, non-numeric operand, division by zero —
// is returned as an *EvaluationError.
func Evaluate(e *Expr, ctx Context) (Value, error) {
	return evalNode(e.root, ctx, e.src)
}

// EvaluateCondition evaluates e and coerces the result to a boolean:
// the literal strings "true"/"false" (case-insensitive) short-circuit,
// and any other numeric result is truthy iff strictly greater than
// zero.
func EvaluateCondition(e *Expr, ctx Context) (bool, error) {
	if lit, ok := e.root.(boolLit); ok {
		return lit.value, nil
	}
	switch strings.ToLower(strings.TrimSpace(e.src)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	v, err := Evaluate(e, ctx)
	if err != nil {
		return false, err
	}
	return v.AsBool(), nil
}

func evalNode(n node, ctx Context, src string) (Value, error) {
	switch t := n.(type) {
	case numberLit:
		d, perr := decimal.NewFromString(t.value)
		if perr != nil {
			return Value{}, typeErr(src, "invalid numeric literal "+t.value)
		}
		return Number(d), nil

	case boolLit:
		return Bool(t.value), nil

	case stringLit:
		// String literals only carry meaning as waterfall amount
		// sentinels; to the evaluator they are inert and surviving one
		// here (e.g. inside SUM's argument list) is a type error.
		return Value{}, typeErr(src, "string literal \""+t.value+"\" has no numeric or boolean value")

	case ident:
		return evalIdent(t.name, ctx, src)

	case member:
		return evalMember(t, ctx, src)

	case unary:
		return evalUnary(t, ctx, src)

	case binary:
		return evalBinary(t, ctx, src)

	case call:
		return evalCall(t, ctx, src)
	}
	return Value{}, typeErr(src, "unhandled node")
}

func evalIdent(name string, ctx Context, src string) (Value, error) {
	v, err := ctx.LookupVariable(name)
	if err == nil {
		return v, nil
	}
	if !IsNotAVariable(err) {
		return Value{}, err
	}
	v, err = ctx.LookupFund(name)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func evalMember(m member, ctx Context, src string) (Value, error) {
	switch m.scope {
	case "funds":
		return ctx.LookupFund(m.name)
	case "ledgers":
		return ctx.LookupLedger(m.name)
	case "bonds":
		attr := m.attr
		if attr == "" {
			return Value{}, typeErr(src, "bonds."+m.name+" requires an attribute (balance, factor, shortfall, original)")
		}
		return ctx.LookupBond(m.name, attr)
	case "tests":
		attr := m.attr
		if attr == "" {
			attr = "failed"
		}
		return ctx.LookupTest(m.name, attr)
	case "collateral":
		return ctx.LookupCollateral(m.name)
	}
	return Value{}, nameErr(src, m.scope+"."+m.name)
}

func evalUnary(u unary, ctx Context, src string) (Value, error) {
	v, err := evalNode(u.expr, ctx, src)
	if err != nil {
		return Value{}, err
	}
	switch u.op {
	case tokMinus:
		return Number(v.AsNumber().Neg()), nil
	case tokNot:
		return Bool(!v.AsBool()), nil
	}
	return Value{}, typeErr(src, "unknown unary operator")
}

func evalBinary(b binary, ctx Context, src string) (Value, error) {
	// Logical operators short-circuit.
	switch b.op {
	case tokAnd:
		l, err := evalNode(b.left, ctx, src)
		if err != nil {
			return Value{}, err
		}
		if !l.AsBool() {
			return Bool(false), nil
		}
		r, err := evalNode(b.right, ctx, src)
		if err != nil {
			return Value{}, err
		}
		return Bool(r.AsBool()), nil
	case tokOr:
		l, err := evalNode(b.left, ctx, src)
		if err != nil {
			return Value{}, err
		}
		if l.AsBool() {
			return Bool(true), nil
		}
		r, err := evalNode(b.right, ctx, src)
		if err != nil {
			return Value{}, err
		}
		return Bool(r.AsBool()), nil
	}

	l, err := evalNode(b.left, ctx, src)
	if err != nil {
		return Value{}, err
	}
	r, err := evalNode(b.right, ctx, src)
	if err != nil {
		return Value{}, err
	}
	ln, rn := l.AsNumber(), r.AsNumber()

	switch b.op {
	case tokPlus:
		return Number(ln.Add(rn)), nil
	case tokMinus:
		return Number(ln.Sub(rn)), nil
	case tokStar:
		return Number(ln.Mul(rn)), nil
	case tokSlash:
		if rn.IsZero() {
			return Value{}, divZeroErr(src)
		}
		return Number(ln.Div(rn)), nil
	case tokPercent:
		if rn.IsZero() {
			return Value{}, divZeroErr(src)
		}
		return Number(ln.Mod(rn)), nil
	case tokLT:
		return Bool(ln.LessThan(rn)), nil
	case tokLE:
		return Bool(ln.LessThanOrEqual(rn)), nil
	case tokGT:
		return Bool(ln.GreaterThan(rn)), nil
	case tokGE:
		return Bool(ln.GreaterThanOrEqual(rn)), nil
	case tokEQ:
		return Bool(ln.Equal(rn)), nil
	case tokNE:
		return Bool(!ln.Equal(rn)), nil
	}
	return Value{}, typeErr(src, "unknown binary operator")
}

func evalCall(c call, ctx Context, src string) (Value, error) {
	args := make([]decimal.Decimal, len(c.args))
	for i, a := range c.args {
		v, err := evalNode(a, ctx, src)
		if err != nil {
			return Value{}, err
		}
		args[i] = v.AsNumber()
	}

	switch c.name {
	case "MIN":
		if len(args) == 0 {
			return Value{}, typeErr(src, "MIN requires at least one argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a.LessThan(m) {
				m = a
			}
		}
		return Number(m), nil
	case "MAX":
		if len(args) == 0 {
			return Value{}, typeErr(src, "MAX requires at least one argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a.GreaterThan(m) {
				m = a
			}
		}
		return Number(m), nil
	case "ABS":
		if len(args) != 1 {
			return Value{}, typeErr(src, "ABS requires exactly one argument")
		}
		return Number(args[0].Abs()), nil
	case "ROUND":
		if len(args) != 1 && len(args) != 2 {
			return Value{}, typeErr(src, "ROUND requires one or two arguments")
		}
		places := int32(0)
		if len(args) == 2 {
			places = int32(args[1].IntPart())
		}
		return Number(args[0].Round(places)), nil
	case "SUM":
		total := decimal.Zero
		for _, a := range args {
			total = total.Add(a)
		}
		return Number(total), nil
	case "FLOOR":
		if len(args) != 1 {
			return Value{}, typeErr(src, "FLOOR requires exactly one argument")
		}
		return Number(args[0].Floor()), nil
	case "CEIL":
		if len(args) != 1 {
			return Value{}, typeErr(src, "CEIL requires exactly one argument")
		}
		return Number(args[0].Ceil()), nil
	}
	return Value{}, nameErr(src, c.name)
}

// BareIdentifiers returns the set of bare (unscoped) identifier names
// referenced anywhere in e, in first-occurrence order. The loader uses
// this to detect variable forward references at load time: a bare
// identifier that names another declared variable must refer to one
// declared earlier in the variables list.
func BareIdentifiers(e *Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(n node)
	walk = func(n node) {
		switch t := n.(type) {
		case ident:
			if !seen[t.name] {
				seen[t.name] = true
				out = append(out, t.name)
			}
		case unary:
			walk(t.expr)
		case binary:
			walk(t.left)
			walk(t.right)
		case call:
			for _, a := range t.args {
				walk(a)
			}
		}
	}
	walk(e.root)
	return out
}
