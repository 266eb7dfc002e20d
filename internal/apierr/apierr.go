// Package apierr defines the typed error taxonomy surfaced across the
// decision core and its transport.
package apierr

import "fmt"

// Code identifies the class of failure, matching the external error
// taxonomy exactly.
type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeConfig          Code = "CONFIG"
	CodeAgent           Code = "AGENT"
	CodePolicyViolation Code = "POLICY_VIOLATION"
	CodeAudit           Code = "AUDIT"
	CodeModel           Code = "MODEL"
	CodeEscalation      Code = "ESCALATION"
)

// Error is the single typed error shape used internally. It always
// carries a Code so handlers can map it to the correct HTTP status and
// external ErrorResponse without string matching.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func Agent(err error, evaluator string) *Error {
	return Wrap(CodeAgent, fmt.Sprintf("evaluator %q failed", evaluator), err)
}

func Audit(err error) *Error {
	return Wrap(CodeAudit, "audit ledger operation failed", err)
}

func Model(err error) *Error {
	return Wrap(CodeModel, "model inference failed", err)
}
