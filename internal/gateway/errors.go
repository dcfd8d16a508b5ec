package gateway

import "errors"

type Kind int

const (
	// KindValidation marks a request missing or misusing a field.
	KindValidation Kind = iota + 1
	// KindNotFound marks a session unknown to the registry.
	KindNotFound
	// KindUpstream marks a 2xx provider response carrying a failure code.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a classified command failure. Transport failures are reported as
// *heygen.UpstreamError instead.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the Kind of err, or 0 when err is not a gateway error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func notFoundError() *Error {
	return &Error{Kind: KindNotFound, Message: "Session not found"}
}

func upstreamRejected(msg string) *Error {
	return &Error{Kind: KindUpstream, Message: msg}
}
