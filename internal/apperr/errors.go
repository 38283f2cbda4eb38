package apperr

// Class groups errors by how a caller should react to them.
type Class string

const (
	// ClassInputValidation errors are detected locally before any network
	// call and are never worth retrying.
	ClassInputValidation Class = "input_validation"
	// ClassProtocolRejection errors mean the protocol refused well-formed
	// input. The current operation is aborted.
	ClassProtocolRejection Class = "protocol_rejection"
)

// Error is a kinded error. Two Errors match under errors.Is when they are
// the same kind, and every kind also matches its class sentinel.
type Error struct {
	class Class
	kind  string
	msg   string
}

func (e *Error) Error() string { return e.msg }

// Class returns the error class.
func (e *Error) Class() Class { return e.class }

// Kind returns the short kind name, e.g. "invalid_event_name".
func (e *Error) Kind() string { return e.kind }

// Is reports whether target is this kind or this kind's class sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.kind == "" {
		return t.class == e.class
	}
	return t.kind == e.kind
}

func newKind(class Class, kind, msg string) *Error {
	return &Error{class: class, kind: kind, msg: msg}
}

// Class sentinels.
var (
	ErrInputValidation   = &Error{class: ClassInputValidation, msg: "input validation error"}
	ErrProtocolRejection = &Error{class: ClassProtocolRejection, msg: "protocol rejection"}
)

// Input validation kinds.
var (
	ErrInvalidEventName    = newKind(ClassInputValidation, "invalid_event_name", "invalid event name")
	ErrInvalidFilterSchema = newKind(ClassInputValidation, "invalid_filter_schema", "invalid index filter values")
	ErrInvalidCallback     = newKind(ClassInputValidation, "invalid_callback", "callback is required")
	ErrInvalidBlockRange   = newKind(ClassInputValidation, "invalid_block_range", "invalid block range")
	ErrInvalidAddress      = newKind(ClassInputValidation, "invalid_address", "invalid address")
	ErrInvalidInterestRate = newKind(ClassInputValidation, "invalid_interest_rate", "invalid interest rate")
)

// Protocol rejection kinds.
var (
	ErrInvalidLoanTerms  = newKind(ClassProtocolRejection, "invalid_loan_terms", "model rejected loan terms")
	ErrAllowanceMismatch = newKind(ClassProtocolRejection, "allowance_mismatch", "allowance does not match loan value")
)
