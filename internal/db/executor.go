package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/careops/callbell/pkg/callbell"
)

// identPattern is the strict alphabet for SQL identifiers that end up
// interpolated into statement text. Identifiers cannot be parameter-bound,
// so anything outside this alphabet is rejected outright.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier rejects schema/table/function/column names outside the
// alphanumeric-plus-underscore alphabet.
func ValidIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("identifier %q: %w", name, callbell.ErrInvalidIdentifier)
	}
	return nil
}

// Executor runs single logical queries, table-valued function reads, and
// stored procedure calls over a pooled connection. Every operation runs in
// its own transaction that commits on success and rolls back on any error.
// When an identity context is supplied it is propagated into the session
// on the same connection, inside the same transaction, before the main
// statement — session context is connection-scoped and must never leak
// onto pooled connections used by other calls.
type Executor struct {
	pool     *sql.DB
	database string
	logger   callbell.Logger
}

// NewExecutor wraps an open pool. database names the target in error
// messages and logs. Panics if pool or logger is nil.
func NewExecutor(pool *sql.DB, database string, logger callbell.Logger) *Executor {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Executor{pool: pool, database: database, logger: logger}
}

// Pool exposes the underlying pool for components that bulk-load through
// driver-specific statements (the staging uploader).
func (e *Executor) Pool() *sql.DB {
	return e.pool
}

// Database returns the target database name.
func (e *Executor) Database() string {
	return e.database
}

// Close releases the underlying pool.
func (e *Executor) Close() error {
	return e.pool.Close()
}

// Exec executes a statement and interprets its result the way the
// reconciliation procedures report theirs: a single-row, single-column
// string that parses as a JSON object is returned as a map with the data
// label attached under "DataLabel"; any other scalar is returned raw; a
// multi-row result is returned as a RowSet; no rows yields nil.
func (e *Executor) Exec(ctx context.Context, query string, args []any, label string) (any, error) {
	var result any
	err := e.withTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		result, err = e.execInTx(ctx, tx, query, args, label)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Query executes a parameterized statement and returns the full result set,
// optionally propagating an identity context first.
func (e *Executor) Query(ctx context.Context, query string, args []any, identity *callbell.IdentityContext) (*callbell.RowSet, error) {
	var rs *callbell.RowSet
	err := e.withTx(ctx, identity, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rs, err = scanRowSet(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// ReadTableFunction builds SELECT * FROM [schema].[fn](@p1, ...) with the
// arguments bound positionally and returns the full result set.
func (e *Executor) ReadTableFunction(ctx context.Context, schema, fn string, args []any, identity *callbell.IdentityContext) (*callbell.RowSet, error) {
	if err := ValidIdentifier(schema); err != nil {
		return nil, err
	}
	if err := ValidIdentifier(fn); err != nil {
		return nil, err
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
	}
	query := fmt.Sprintf("SELECT * FROM [%s].[%s](%s)", schema, fn, strings.Join(placeholders, ", "))

	return e.Query(ctx, query, args, identity)
}

// CallProcedure builds an EXEC invocation with named parameters and returns
// the procedure's single scalar output, if any, with the same JSON/label
// treatment as Exec. Parameter names are sorted for deterministic statement
// text; EXEC semantics do not depend on named-parameter order.
func (e *Executor) CallProcedure(ctx context.Context, schema, proc string, params map[string]any, identity *callbell.IdentityContext, label string) (any, error) {
	if err := ValidIdentifier(schema); err != nil {
		return nil, err
	}
	if err := ValidIdentifier(proc); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(params))
	for name := range params {
		if err := ValidIdentifier(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("@%s = @%s", name, name)
		args[i] = sql.Named(name, params[name])
	}
	query := fmt.Sprintf("EXEC [%s].[%s] %s", schema, proc, strings.Join(parts, ", "))

	var result any
	err := e.withTx(ctx, identity, func(tx *sql.Tx) error {
		var err error
		result, err = e.execInTx(ctx, tx, query, args, label)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ViewToMap reads all rows of a view and keys them by the first column,
// mapping each key to the remaining columns by name.
func (e *Executor) ViewToMap(ctx context.Context, schema, view string) (map[string]map[string]any, error) {
	if err := ValidIdentifier(schema); err != nil {
		return nil, err
	}
	if err := ValidIdentifier(view); err != nil {
		return nil, err
	}

	rs, err := e.Query(ctx, fmt.Sprintf("SELECT * FROM [%s].[%s]", schema, view), nil, nil)
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		e.logger.Info("view %s.%s returned no data", schema, view)
		return map[string]map[string]any{}, nil
	}

	out := make(map[string]map[string]any, rs.Len())
	for _, row := range rs.Rows {
		entry := make(map[string]any, len(rs.Columns)-1)
		for i := 1; i < len(rs.Columns); i++ {
			entry[rs.Columns[i]] = row[i]
		}
		out[fmt.Sprint(row[0])] = entry
	}
	return out, nil
}

// execInTx runs a statement inside an open transaction and applies the
// scalar/JSON result interpretation.
func (e *Executor) execInTx(ctx context.Context, tx *sql.Tx, query string, args []any, label string) (any, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	rs, err := scanRowSet(rows)
	if err != nil {
		return nil, err
	}

	switch {
	case rs.Len() == 0:
		return nil, nil
	case rs.Len() == 1 && len(rs.Columns) == 1:
		return e.interpretScalar(rs.Rows[0][0], label), nil
	default:
		return rs, nil
	}
}

// interpretScalar parses a string scalar that holds valid JSON, attaching
// the data label when the result is an object; any other parseable JSON
// (arrays, numbers) is returned as the parsed structure without a label.
// Non-JSON strings are logged and returned unchanged.
func (e *Executor) interpretScalar(raw any, label string) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		if label != "" {
			e.logger.Info("SQL_MESSAGE: [%s] %s", label, s)
		} else {
			e.logger.Info("SQL_MESSAGE: %s", s)
		}
		return s
	}

	if obj, ok := parsed.(map[string]any); ok {
		obj["DataLabel"] = label
		if encoded, err := json.Marshal(obj); err == nil {
			e.logger.Info("JSON_METRICS: %s", encoded)
		}
		return obj
	}
	return parsed
}

// withTx opens a transaction, propagates the identity context, runs fn,
// and commits, rolling back on any error. Failures are logged once with
// the database name and wrapped in ErrQueryExecution.
func (e *Executor) withTx(ctx context.Context, identity *callbell.IdentityContext, fn func(tx *sql.Tx) error) error {
	tx, err := e.pool.BeginTx(ctx, nil)
	if err != nil {
		return e.fail(err)
	}

	if err := e.applyIdentity(ctx, tx, identity); err != nil {
		tx.Rollback()
		return e.fail(err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return e.fail(err)
	}

	if err := tx.Commit(); err != nil {
		return e.fail(err)
	}
	return nil
}

// applyIdentity issues one sp_set_session_context call per pair, in
// insertion order, on the transaction's connection.
func (e *Executor) applyIdentity(ctx context.Context, tx *sql.Tx, identity *callbell.IdentityContext) error {
	if identity.Len() == 0 {
		return nil
	}

	var firstErr error
	identity.Each(func(key, value string) {
		if firstErr != nil {
			return
		}
		_, err := tx.ExecContext(ctx, "EXEC sys.sp_set_session_context @key = @p1, @value = @p2", key, value)
		if err != nil {
			firstErr = fmt.Errorf("set session context %q: %w", key, err)
		}
	})
	return firstErr
}

// fail logs an execution error exactly once and wraps it. Errors already
// carrying ErrQueryExecution pass through untouched so a single failure
// never produces duplicate log entries up the call chain.
func (e *Executor) fail(err error) error {
	if errors.Is(err, callbell.ErrQueryExecution) {
		return err
	}
	e.logger.Error("SQL execution failed on %s: %v", e.database, err)
	return fmt.Errorf("execute on %q: %w: %w", e.database, callbell.ErrQueryExecution, err)
}

// scanRowSet drains rows into a fully materialized RowSet, copying byte
// slices out of driver-owned buffers.
func scanRowSet(rows *sql.Rows) (*callbell.RowSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &callbell.RowSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}
