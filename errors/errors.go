// Package errors defines the error taxonomy of the coordinator.
// Every failure is scoped to its own request; none is fatal to the process.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth rejects a connect: the credential is invalid or expired.
	// No state is mutated on the failing path.
	ErrAuth = fmt.Errorf("authentication failed")

	// ErrUnknownRoom rejects a send or join against a room that is absent
	// from storage or no longer accepts participants.
	ErrUnknownRoom = fmt.Errorf("unknown or closed room")

	// ErrStorage rejects a send whose persistence failed. The message is
	// never broadcast in that case.
	ErrStorage = fmt.Errorf("storage failure")

	// ErrInvalid rejects a malformed request before it reaches storage.
	ErrInvalid = fmt.Errorf("invalid request")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// Code maps the taxonomy to a transport status string, reported to the
// originating connection only. Unknown errors collapse to INTERNAL.
func Code(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrAuth):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrUnknownRoom):
		return "FAILED_PRECONDITION"
	case errors.Is(err, ErrInvalid):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrStorage):
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
