// Package xerrors provides the standardized error type surfaced across the
// query execution core: a closed error-code enum plus a QueryError that
// carries enough context (operation, trace ID) to grep out of server logs.
package xerrors

import "fmt"

// ErrorCode is the closed set of error kinds the core can surface.
type ErrorCode string

const (
	Arithmetic          ErrorCode = "ARITHMETIC"
	TypeMismatch        ErrorCode = "TYPE_MISMATCH"
	UnsupportedFunction ErrorCode = "UNSUPPORTED_FUNCTION"
	PredicateType       ErrorCode = "PREDICATE_TYPE"
	NotImplemented      ErrorCode = "NOT_IMPLEMENTED"
	ExecutionInvariant  ErrorCode = "EXECUTION_INVARIANT"
)

// QueryError is the error type every kernel, operator, and planner
// component returns. It is never used to signal a NULL — nulls are
// ordinary data, not errors.
type QueryError struct {
	Code    ErrorCode
	Message string
	Details string
	Op      string
	TraceID string
}

func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithTraceID returns a copy of the error annotated with a trace ID, for
// attaching context once it reaches the driver boundary.
func (e *QueryError) WithTraceID(traceID string) *QueryError {
	cp := *e
	cp.TraceID = traceID
	return &cp
}

func newErr(code ErrorCode, op, format string, args ...interface{}) *QueryError {
	return &QueryError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// ArithmeticErr reports a division/modulo-by-zero or overflow condition.
func ArithmeticErr(op, format string, args ...interface{}) *QueryError {
	return newErr(Arithmetic, op, format, args...)
}

// TypeMismatchErr reports an incompatible-type comparison or arithmetic.
func TypeMismatchErr(op, format string, args ...interface{}) *QueryError {
	return newErr(TypeMismatch, op, format, args...)
}

// UnsupportedFunctionErr reports an aggregate/function requested for an
// input type outside its overload set.
func UnsupportedFunctionErr(op, format string, args ...interface{}) *QueryError {
	return newErr(UnsupportedFunction, op, format, args...)
}

// PredicateTypeErr reports a non-BOOL value reaching a boolean predicate.
func PredicateTypeErr(op, format string, args ...interface{}) *QueryError {
	return newErr(PredicateType, op, format, args...)
}

// NotImplementedErr reports an explicitly unreachable strategy combination.
func NotImplementedErr(op, format string, args ...interface{}) *QueryError {
	return newErr(NotImplemented, op, format, args...)
}

// ExecutionInvariantErr reports a contract violation in a vector read or
// write (out-of-range access, misaligned selection state).
func ExecutionInvariantErr(op, format string, args ...interface{}) *QueryError {
	return newErr(ExecutionInvariant, op, format, args...)
}

// Is supports errors.Is by comparing error codes.
func (e *QueryError) Is(target error) bool {
	other, ok := target.(*QueryError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
