package expr

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the two value types the engine produces: numbers
// and booleans. Strings exist only as the "ALL"/"REMAINING" amount
// sentinels, which are recognized by internal/waterfall, not here.
type Kind int

const (
	KindNumber Kind = iota
	KindBool
)

// Value is the tagged union returned by Evaluate. Exactly one of Num /
// Bool is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Bool bool
}

// Number constructs a numeric Value.
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// NumberFromFloat constructs a numeric Value from a float64 literal.
func NumberFromFloat(f float64) Value { return Value{Kind: KindNumber, Num: decimal.NewFromFloat(f)} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// AsNumber returns the decimal form of v. Booleans convert to 1/0 so
// that arithmetic on a condition result behaves the way the reference
// evaluator's dynamically-typed host language would.
func (v Value) AsNumber() decimal.Decimal {
	if v.Kind == KindNumber {
		return v.Num
	}
	if v.Bool {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// AsBool applies the boolean-coercion rule: a number is truthy iff
// strictly greater than zero.
func (v Value) AsBool() bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return v.Num.GreaterThan(decimal.Zero)
}

func (v Value) String() string {
	if v.Kind == KindBool {
		return fmt.Sprintf("%t", v.Bool)
	}
	return v.Num.String()
}
