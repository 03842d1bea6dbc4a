package callbell

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := loader.HomeMetrics(ctx, start, end, home)
//	if errors.Is(err, callbell.ErrCredentialExchange) {
//	    // Re-authenticate the user session
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCredentialExchange indicates a credential flow failed to produce
	// an access token. The wrapped cause carries the upstream error
	// code and description.
	ErrCredentialExchange = errors.New("credential exchange failed")

	// ErrConnectionFailed indicates the database connection could not be
	// established (network, certificate, or token rejection).
	ErrConnectionFailed = errors.New("connection failed")

	// ErrQueryExecution indicates a statement failed during execution.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrEmptyPayload indicates a staging upload was attempted with a
	// zero-row payload.
	ErrEmptyPayload = errors.New("payload has no rows")

	// ErrStagingWrite indicates the staging table could not be created
	// or written, e.g. a name collision with an existing table.
	ErrStagingWrite = errors.New("staging write failed")

	// ErrInvalidIdentifier indicates a SQL identifier (schema, table,
	// function, column) falls outside the allowed alphabet.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrCredentialExchange):
		return ExitAuthError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrQueryExecution):
		return ExitExecutionFailed
	case errors.Is(err, ErrEmptyPayload), errors.Is(err, ErrStagingWrite):
		return ExitExecutionFailed
	case errors.Is(err, ErrInvalidIdentifier):
		return ExitConfigError
	}

	// Check for common connection error patterns
	errStr := err.Error()
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
