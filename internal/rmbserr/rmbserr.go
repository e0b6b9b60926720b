// Package rmbserr declares the marker interface shared by every fatal
// error type the engine raises: loader.SchemaViolation,
// loader.LogicIntegrity, expr.EvaluationError, and
// dealstate.InvariantViolation. A caller holding a bare error from any
// of those packages can recover the shared view with one
// errors.As(err, &asRMBSErr) instead of trying each concrete type in
// turn.
package rmbserr

// RMBSError is implemented by every error type raised from deal
// loading, expression evaluation, or state mutation that is meant to
// terminate the run rather than be handled inline.
type RMBSError interface {
	error
	RMBSError()
}
