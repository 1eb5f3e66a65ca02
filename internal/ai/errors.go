package ai

import (
	"errors"
	"fmt"
)

// ErrDisabled is returned when the client has no credentials to call out with.
var ErrDisabled = errors.New("ai classifier disabled")

// ClassificationError reports a failed classification call. The cause is a transport
// failure, a non-success status, an undecodable body or a *ProtocolError.
type ClassificationError struct {
	Cause error
}

func (e *ClassificationError) Error() string {
	if e == nil || e.Cause == nil {
		return "classification failed"
	}
	return "classification failed: " + e.Cause.Error()
}

func (e *ClassificationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ProtocolError reports a response that does not satisfy the payload schema.
type ProtocolError struct {
	Field  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s %s", e.Field, e.Reason)
}

func classificationErr(format string, args ...any) error {
	return &ClassificationError{Cause: fmt.Errorf(format, args...)}
}

func protocolErr(field, reason string) error {
	return &ClassificationError{Cause: &ProtocolError{Field: field, Reason: reason}}
}

// IsProtocolError reports whether err carries a *ProtocolError.
func IsProtocolError(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr)
}
