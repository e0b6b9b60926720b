package loader

import (
	"fmt"
	"strings"

	"github.com/jiangshenghai57/rmbs-engine/internal/rmbserr"
)

var (
	_ rmbserr.RMBSError = (*SchemaViolation)(nil)
	_ rmbserr.RMBSError = (*LogicIntegrity)(nil)
)

// SchemaViolation reports one or more struct-tag validation failures
// from the wire JSON. Paths name the offending field exactly as
// github.com/go-playground/validator/v10 reports it (e.g.
// "wireDeal.Bonds[1].OriginalBalance").
type SchemaViolation struct {
	Paths []string
}

func (e *SchemaViolation) Error() string {
	return "schema violation: " + strings.Join(e.Paths, "; ")
}

// RMBSError marks SchemaViolation as an rmbserr.RMBSError.
func (e *SchemaViolation) RMBSError() {}

// LogicIntegrity aggregates every semantic cross-reference failure
// found during validation: dangling fund/bond/ledger/variable/test
// references, a write-down order naming an unknown bond, a coupon
// cap_ref that names no declared variable, an unparseable expression,
// or a variable declaration order
// violating the "only reference earlier variables" rule. All failures
// are collected before returning, raising one aggregate error rather
// than failing on the first problem found.
type LogicIntegrity struct {
	Problems []string
}

func (e *LogicIntegrity) Error() string {
	return "logic integrity: " + strings.Join(e.Problems, "; ")
}

// RMBSError marks LogicIntegrity as an rmbserr.RMBSError.
func (e *LogicIntegrity) RMBSError() {}

type problemCollector struct {
	problems []string
}

func (c *problemCollector) add(format string, args ...interface{}) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *problemCollector) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &LogicIntegrity{Problems: c.problems}
}
