package purchasekit

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors, raised at construction.
	ErrMissingAppName = errors.New("application name is required")
	ErrMissingAPIKey  = errors.New("api key is required")
	ErrMissingStore   = errors.New("persistent store is required")
	ErrInvalidBaseURL = errors.New("invalid base URL")
	ErrMissingOfferID = errors.New("offer ID is required")

	// Resolution errors: the caller has no resolvable identifier or
	// credential for the requested operation. Recoverable; the caller
	// decides how to proceed.
	ErrMissingIdentifier = errors.New("no session or subscription identifier available")
	ErrMissingAccessKey  = errors.New("no access key available for identifier")

	// ErrInvalidResponse marks a malformed or unexpected envelope from the
	// validation service.
	ErrInvalidResponse = errors.New("invalid response from validation service")

	// ErrTransportFailure marks a network-level failure reaching the
	// validation service.
	ErrTransportFailure = errors.New("failed to reach validation service")
)

// ServiceError is a failure reported by the validation service itself:
// a non-success HTTP status or an ok:false envelope. The remote message,
// when present, is surfaced to the caller.
type ServiceError struct {
	Operation  string
	StatusCode int
	Code       int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d", e.Operation, e.StatusCode)
}
