package expr

import (
	"fmt"

	"github.com/jiangshenghai57/rmbs-engine/internal/rmbserr"
)

var _ rmbserr.RMBSError = (*EvaluationError)(nil)

// Subkind distinguishes the kinds of EvaluationError.
type Subkind int

const (
	SubkindName Subkind = iota
	SubkindType
	SubkindDivisionByZero
)

// EvaluationError is raised for any failure while evaluating an
// expression against a Context: an unknown identifier or call name
// (NameError), a non-numeric operand in a numeric operation or an
// unparseable rule (TypeError), or an explicit zero-divisor
// (DivisionByZero). The engine never returns Inf/NaN/0 for a zero
// divisor; it raises.
type EvaluationError struct {
	Subkind    Subkind
	Expression string
	Message    string
}

func (e *EvaluationError) Error() string {
	kind := "TypeError"
	switch e.Subkind {
	case SubkindName:
		kind = "NameError"
	case SubkindDivisionByZero:
		kind = "DivisionByZero"
	}
	return fmt.Sprintf("%s: %s (in expression %q)", kind, e.Message, e.Expression)
}

// RMBSError marks EvaluationError as an rmbserr.RMBSError.
func (e *EvaluationError) RMBSError() {}

func nameErr(expression, ident string) *EvaluationError {
	return &EvaluationError{Subkind: SubkindName, Expression: expression, Message: "unknown identifier or call " + ident}
}

func typeErr(expression, msg string) *EvaluationError {
	return &EvaluationError{Subkind: SubkindType, Expression: expression, Message: msg}
}

func divZeroErr(expression string) *EvaluationError {
	return &EvaluationError{Subkind: SubkindDivisionByZero, Expression: expression, Message: "division by zero"}
}

// NameError constructs an EvaluationError{Subkind: SubkindName} for use
// by Context implementations outside this package (internal/dealstate)
// that need to raise under a strict missing-reference policy.
func NameError(expression, message string) *EvaluationError {
	return &EvaluationError{Subkind: SubkindName, Expression: expression, Message: message}
}

// TypeError constructs an EvaluationError{Subkind: SubkindType} for use
// by Context implementations outside this package.
func TypeError(expression, message string) *EvaluationError {
	return &EvaluationError{Subkind: SubkindType, Expression: expression, Message: message}
}

// ParseError is returned by Parse when an expression string is not
// well-formed. It is load-time, not evaluation-time; internal/loader
// reports it as a LogicIntegrity problem naming the offending rule.
type ParseError struct {
	Expression string
	Message    string
	Pos        int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d in %q: %s", e.Pos, e.Expression, e.Message)
}
