package expr

// node is the closed set of AST node kinds the parser can produce. There
// is no "eval arbitrary host code" node — the evaluator is a plain
// switch over this set, which removes the need to sandbox a
// host-language eval entirely.
type node interface {
	isNode()
}

type numberLit struct{ value string }
type boolLit struct{ value bool }
type stringLit struct{ value string } // only "ALL"/"REMAINING" matter, and only to the waterfall package

// ident is a bare identifier: a fund/bond/ledger id used without a scope
// prefix, or a top-level variable reference.
type ident struct{ name string }

// member is scope.name or scope.name.attr (two levels).
type member struct {
	scope string
	name  string
	attr  string // empty when only scope.name was written
}

type unary struct {
	op   tokenKind // tokMinus or tokNot
	expr node
}

type binary struct {
	op    tokenKind
	left  node
	right node
}

type call struct {
	name string
	args []node
}

func (numberLit) isNode() {}
func (boolLit) isNode()   {}
func (stringLit) isNode() {}
func (ident) isNode()     {}
func (member) isNode()    {}
func (unary) isNode()     {}
func (binary) isNode()    {}
func (call) isNode()      {}
