package callbell

import (
	"fmt"
	"time"
)

// AccessToken is an Azure AD access token together with its expiry instant.
// Tokens are immutable once issued; a refresh replaces the value wholesale.
type AccessToken struct {
	Token     string
	ExpiresOn time.Time
}

// Valid reports whether the token is non-empty and not yet expired.
func (t AccessToken) Valid(now time.Time) bool {
	return t.Token != "" && now.Before(t.ExpiresOn)
}

// Column describes one column of a staging payload. Type is the SQL Server
// column type used when the staging table is created (e.g. "NVARCHAR(256)",
// "DATETIME2(0)", "INT").
type Column struct {
	Name string
	Type string
}

// Table is a caller-supplied tabular payload for staging uploads.
// Rows hold values in column order.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Empty reports whether the payload has zero rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RowSet is a fully materialized query result.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *RowSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// QueryConfig identifies the target database for a session.
type QueryConfig struct {
	Server   string // FQDN of the SQL server, e.g. "sql-platform.database.windows.net"
	Database string
	AppName  string
}

// Validate checks that all connection parameters are present.
func (c *QueryConfig) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required: %w", ErrInvalidConfig)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required: %w", ErrInvalidConfig)
	}
	return nil
}
