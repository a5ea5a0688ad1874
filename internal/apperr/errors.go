// Package apperr defines the typed failures shared by every layer of the
// negotiation service. Each error carries a Kind so transport layers can map
// it to an error frame or HTTP status without knowing the concrete value, and
// a stable Code that travels on the wire.
package apperr

import "errors"

// Kind classifies an Error for propagation decisions.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindState
	KindAuth
	KindNotFound
	KindConflict
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error is a typed failure. Two Errors match under errors.Is when their codes
// are equal, so a sentinel can be enriched with a different message and still
// be recognised.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg}
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation failures: malformed input.
var (
	ErrInvalidBudget       = newErr(KindValidation, "invalid_budget", "budget min must be non-negative and not exceed max")
	ErrInvalidEventDate    = newErr(KindValidation, "invalid_event_date", "event date must be in the future")
	ErrInvalidCounterOffer = newErr(KindValidation, "invalid_counter_offer", "counter-offer requires a positive proposed price")
	ErrUnexpectedPrice     = newErr(KindValidation, "unexpected_price", "proposed price is only allowed on counter-offers")
	ErrInvalidResponseType = newErr(KindValidation, "invalid_response_type", "response type must be accept, counteroffer or reject")
	ErrMissingField        = newErr(KindValidation, "missing_field", "required field is missing")
	ErrInvalidTopic        = newErr(KindValidation, "invalid_topic", "topic must be request:{id}, user:{id} or category:{id}")
	ErrMalformedMessage    = newErr(KindValidation, "malformed_message", "message could not be decoded")
	ErrRateLimited         = newErr(KindValidation, "rate_limited", "too many actions, slow down")
)

// State failures: illegal transitions.
var (
	ErrRequestNotActive   = newErr(KindState, "request_not_active", "hiring request is not active")
	ErrResponseNotPending = newErr(KindState, "response_not_pending", "hiring response is not pending")
	ErrDuplicateResponse  = newErr(KindState, "duplicate_response", "artist already has an open response to this request")
)

// Auth failures.
var (
	ErrUnauthenticated      = newErr(KindAuth, "unauthenticated", "connection is not authenticated")
	ErrForbidden            = newErr(KindAuth, "forbidden", "caller is not allowed to perform this action")
	ErrAlreadyAuthenticated = newErr(KindAuth, "already_authenticated", "connection is authenticated as a different user")
	ErrInvalidToken         = newErr(KindAuth, "invalid_token", "credential could not be verified")
)

// Lookup failures.
var (
	ErrNotFound          = newErr(KindNotFound, "not_found", "resource not found")
	ErrUnknownConnection = newErr(KindNotFound, "unknown_connection", "connection is not registered")
)

// ErrConflict is returned by storage when a write collides with existing state.
var ErrConflict = newErr(KindConflict, "conflict", "conflicting update")

// Transport failures. These never leave the broadcast boundary.
var (
	ErrTransport    = newErr(KindTransport, "transport", "write to connection failed")
	ErrSlowConsumer = newErr(KindTransport, "slow_consumer", "connection send queue is full")
)

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
