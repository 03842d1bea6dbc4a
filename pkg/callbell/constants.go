package callbell

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Operation completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitAuthError       = 12 // Credential flow failed to produce a token
	ExitExecutionFailed = 13 // SQL execution failed
)

const (
	// StagingSchema holds the transient staging tables created per upload.
	StagingSchema = "temp"

	// ProcSchema holds the reconciliation stored procedures.
	ProcSchema = "apps"

	// Reconciliation procedure names. The procedures themselves are opaque
	// named contracts; only their parameter surface is fixed here.
	ProcUpsert           = "sp_upsert_data"
	ProcMergeFull        = "sp_merge_data_full"
	ProcBulkUpdateScoped = "sp_bulk_update_scoped"
	ProcMergeScoped      = "sp_merge_data_scoped"

	// DefaultRetryInitialDelay is the default initial delay before the
	// first retry attempt at the CLI boundary. The core never retries.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retries.
	DefaultRetryMaxDelay = 30 * time.Second

	// DefaultRetryMaxAttempts is the default maximum number of retries.
	DefaultRetryMaxAttempts = 3
)
