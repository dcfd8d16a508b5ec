package heygen

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError classifies a failed provider call. Status is the provider's
// HTTP status for non-2xx responses and 500 for transport failures, where Err
// holds the underlying cause.
type UpstreamError struct {
	Status int
	Detail string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("heygen transport error: %s", e.Detail)
	}
	return fmt.Sprintf("heygen api error: status %d: %s", e.Status, e.Detail)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Transport reports whether the call failed before a response was received
// (or the response could not be used).
func (e *UpstreamError) Transport() bool {
	return e.Err != nil
}

// AsUpstreamError unwraps err into an *UpstreamError.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func transportError(err error) *UpstreamError {
	return &UpstreamError{Status: http.StatusInternalServerError, Detail: err.Error(), Err: err}
}
