package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	mssql "github.com/microsoft/go-mssqldb"
)

// SQL Server error numbers for transient conditions.
// See: https://learn.microsoft.com/en-us/azure/azure-sql/database/troubleshoot-common-errors-issues
const (
	sqlErrDatabaseUnavailable    = 4060  // Cannot open database requested by the login
	sqlErrSessionLimitReached    = 10928 // Resource ID limit for the database has been reached
	sqlErrResourceLimitReached   = 10929 // The server is currently too busy
	sqlErrServiceBusy            = 40197 // The service has encountered an error processing your request
	sqlErrServiceBusyRetryLater  = 40501 // The service is currently busy, retry after 10 seconds
	sqlErrDatabaseUnavailableNow = 40613 // Database is not currently available
	sqlErrNotEnoughResources     = 49918 // Cannot process request, not enough resources
	sqlErrTooManyOperations      = 49919 // Cannot process create or update request, too many operations
	sqlErrServiceBusyOperations  = 49920 // Cannot process request, too many operations in progress
	sqlErrDeadlockVictim         = 1205  // Transaction was deadlocked and chosen as the victim
)

// SQLServerErrorClassifier implements ErrorClassifier for SQL Server and
// Azure SQL errors.
type SQLServerErrorClassifier struct{}

// NewSQLServerErrorClassifier creates a new SQL Server error classifier.
func NewSQLServerErrorClassifier() *SQLServerErrorClassifier {
	return &SQLServerErrorClassifier{}
}

// IsTransient determines if an error is temporary and retryable.
func (c *SQLServerErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		return c.isTransientSQLError(sqlErr)
	}

	if c.isNetworkError(err) {
		return true
	}

	return c.isConnectionError(err)
}

// isTransientSQLError checks Azure SQL error numbers for transient conditions.
func (c *SQLServerErrorClassifier) isTransientSQLError(sqlErr mssql.Error) bool {
	switch sqlErr.Number {
	case sqlErrDatabaseUnavailable,
		sqlErrSessionLimitReached,
		sqlErrResourceLimitReached,
		sqlErrServiceBusy,
		sqlErrServiceBusyRetryLater,
		sqlErrDatabaseUnavailableNow,
		sqlErrNotEnoughResources,
		sqlErrTooManyOperations,
		sqlErrServiceBusyOperations,
		sqlErrDeadlockVictim:
		return true
	}
	return false
}

// isNetworkError checks for network-level errors.
func (c *SQLServerErrorClassifier) isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Temporary() || opErr.Timeout() {
			return true
		}

		if opErr.Err != nil {
			if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
				errors.Is(opErr.Err, syscall.ECONNRESET) ||
				errors.Is(opErr.Err, syscall.ENETUNREACH) ||
				errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
				return true
			}
		}
	}

	return false
}

// isConnectionError falls back to message patterns for errors the driver
// surfaces as plain strings.
func (c *SQLServerErrorClassifier) isConnectionError(err error) bool {
	errMsg := strings.ToLower(err.Error())

	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"connection was closed",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"broken pipe",
		"tls handshake",
		"unexpected eof",
		"login error",
		"context deadline exceeded",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
