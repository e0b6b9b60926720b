package deal

import "github.com/jiangshenghai57/rmbs-engine/internal/expr"

// Compiled is the deal-wide AST cache: every expression string used
// anywhere in the deal (variables, test rules, step conditions/amounts,
// the loss-source rule, the clean-up call rule) is parsed exactly once
// by internal/loader and looked up by source text from then on.
// Nothing outside internal/loader mutates it.
type Compiled struct {
	asts map[string]*expr.Expr
}

// NewCompiled returns an empty cache ready for internal/loader to fill.
func NewCompiled() *Compiled {
	return &Compiled{asts: map[string]*expr.Expr{}}
}

// Add parses src (if not already present) and stores the result. An
// empty src is a no-op: several rule fields are optional expressions.
func (c *Compiled) Add(src string) error {
	if src == "" {
		return nil
	}
	if _, ok := c.asts[src]; ok {
		return nil
	}
	e, err := expr.Parse(src)
	if err != nil {
		return err
	}
	c.asts[src] = e
	return nil
}

// Get returns the parsed expression for src, or nil if src was never
// compiled (internal/loader is expected to have compiled every
// expression string reachable from the Definition; a nil return
// anywhere else is a loader bug).
func (c *Compiled) Get(src string) *expr.Expr {
	return c.asts[src]
}
