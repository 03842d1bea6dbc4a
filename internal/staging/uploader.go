// Package staging moves tabular payloads into uniquely named staging tables
// and reconciles them into target tables through the apps.sp_* procedure
// family.
package staging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/careops/callbell/internal/db"
	"github.com/careops/callbell/pkg/callbell"
)

// Uploader implements the four reconciliation strategies over one-shot
// staging tables, plus the permanent-stage variant used by the scheduled
// pipeline. The staging table is dropped on every exit path: a failed
// procedure call must not leak its staging table.
type Uploader struct {
	exec   *db.Executor
	logger callbell.Logger

	// test hooks for deterministic staging names
	now       func() time.Time
	newSuffix func() string
}

// NewUploader creates an Uploader over an executor's pool.
// Panics if exec or logger is nil.
func NewUploader(exec *db.Executor, logger callbell.Logger) *Uploader {
	if exec == nil {
		panic("exec cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Uploader{
		exec:      exec,
		logger:    logger,
		now:       time.Now,
		newSuffix: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:4] },
	}
}

// Upsert stages the payload and reconciles it into the target table by
// natural key (insert-or-update).
func (u *Uploader) Upsert(ctx context.Context, payload *callbell.Table, targetSchema, targetTable, label string) error {
	_, err := u.reconcile(ctx, payload, callbell.ProcUpsert, targetSchema, targetTable, "", label)
	return err
}

// MergeFull stages the payload and reconciles with full-replace semantics.
func (u *Uploader) MergeFull(ctx context.Context, payload *callbell.Table, targetSchema, targetTable, label string) error {
	_, err := u.reconcile(ctx, payload, callbell.ProcMergeFull, targetSchema, targetTable, "", label)
	return err
}

// BulkUpdateScoped stages the payload and updates only target rows matching
// the scope column.
func (u *Uploader) BulkUpdateScoped(ctx context.Context, payload *callbell.Table, targetSchema, targetTable, scopeColumn, label string) error {
	if err := db.ValidIdentifier(scopeColumn); err != nil {
		return err
	}
	_, err := u.reconcile(ctx, payload, callbell.ProcBulkUpdateScoped, targetSchema, targetTable, scopeColumn, label)
	return err
}

// MergeScoped stages the payload and merges restricted to rows matching the
// scope column, returning the procedure's scalar result.
func (u *Uploader) MergeScoped(ctx context.Context, payload *callbell.Table, targetSchema, targetTable, scopeColumn, label string) (any, error) {
	if err := db.ValidIdentifier(scopeColumn); err != nil {
		return nil, err
	}
	return u.reconcile(ctx, payload, callbell.ProcMergeScoped, targetSchema, targetTable, scopeColumn, label)
}

// reconcile runs the shared stage/call/drop protocol.
func (u *Uploader) reconcile(ctx context.Context, payload *callbell.Table, proc, targetSchema, targetTable, scopeColumn, label string) (any, error) {
	if payload.Empty() {
		return nil, fmt.Errorf("upload to %s.%s: %w", targetSchema, targetTable, callbell.ErrEmptyPayload)
	}
	if err := db.ValidIdentifier(targetSchema); err != nil {
		return nil, err
	}
	if err := db.ValidIdentifier(targetTable); err != nil {
		return nil, err
	}

	staged, err := u.stage(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer u.drop(ctx, staged)

	params := map[string]any{
		"target_table":  targetTable,
		"target_schema": targetSchema,
		"upload_table":  staged,
		"upload_schema": callbell.StagingSchema,
	}
	if scopeColumn != "" {
		params["scope_column"] = scopeColumn
	}

	return u.exec.CallProcedure(ctx, callbell.ProcSchema, proc, params, nil, label)
}

// stage creates a uniquely named staging table and bulk-writes the payload
// into it. A name collision with an existing table fails the whole
// operation rather than silently overwriting.
func (u *Uploader) stage(ctx context.Context, payload *callbell.Table) (string, error) {
	name := fmt.Sprintf("staged_%s_%s", u.now().Format("20060102_150405"), u.newSuffix())

	if err := u.write(ctx, payload, callbell.StagingSchema, name, true); err != nil {
		return "", err
	}
	u.logger.Verbose("uploaded %d rows to %s.%s", len(payload.Rows), callbell.StagingSchema, name)
	return name, nil
}

// write creates (optionally) and bulk-loads a staging table inside one
// transaction. create=false appends to an existing table.
func (u *Uploader) write(ctx context.Context, payload *callbell.Table, schema, table string, create bool) error {
	for _, col := range payload.Columns {
		if err := db.ValidIdentifier(col.Name); err != nil {
			return err
		}
	}

	tx, err := u.exec.Pool().BeginTx(ctx, nil)
	if err != nil {
		return u.writeFail(schema, table, err)
	}
	defer tx.Rollback()

	if create {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sys.tables t JOIN sys.schemas s ON t.schema_id = s.schema_id WHERE s.name = @p1 AND t.name = @p2",
			schema, table).Scan(&exists)
		if err != nil {
			return u.writeFail(schema, table, err)
		}
		if exists > 0 {
			return u.writeFail(schema, table, fmt.Errorf("table already exists"))
		}

		defs := make([]string, len(payload.Columns))
		for i, col := range payload.Columns {
			defs[i] = fmt.Sprintf("[%s] %s", col.Name, col.Type)
		}
		createSQL := fmt.Sprintf("CREATE TABLE [%s].[%s] (%s)", schema, table, strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, createSQL); err != nil {
			return u.writeFail(schema, table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(
		fmt.Sprintf("%s.%s", schema, table),
		mssql.BulkOptions{Tablock: true},
		payload.ColumnNames()...,
	))
	if err != nil {
		return u.writeFail(schema, table, err)
	}

	for _, row := range payload.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return u.writeFail(schema, table, err)
		}
	}
	// final Exec with no arguments flushes the bulk batch
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return u.writeFail(schema, table, err)
	}
	if err := stmt.Close(); err != nil {
		return u.writeFail(schema, table, err)
	}

	if err := tx.Commit(); err != nil {
		return u.writeFail(schema, table, err)
	}
	return nil
}

func (u *Uploader) writeFail(schema, table string, err error) error {
	u.logger.Error("staging write to %s.%s failed on %s: %v", schema, table, u.exec.Database(), err)
	return fmt.Errorf("stage into %s.%s: %w: %w", schema, table, callbell.ErrStagingWrite, err)
}

// drop removes a staging table. It runs even when the surrounding call is
// being torn down by a cancelled context. The statement goes straight to
// the pool: the error is swallowed here, so the uploader's log line is the
// single record of a failed drop.
func (u *Uploader) drop(ctx context.Context, table string) {
	dropCtx := context.WithoutCancel(ctx)
	_, err := u.exec.Pool().ExecContext(dropCtx, fmt.Sprintf("DROP TABLE [%s].[%s]", callbell.StagingSchema, table))
	if err != nil {
		u.logger.Error("failed to drop staging table %s.%s: %v", callbell.StagingSchema, table, err)
	}
}

// TruncateStage empties a permanent staging table.
func (u *Uploader) TruncateStage(ctx context.Context, schema, table string) error {
	if err := db.ValidIdentifier(schema); err != nil {
		return err
	}
	if err := db.ValidIdentifier(table); err != nil {
		return err
	}
	if _, err := u.exec.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE [%s].[%s]", schema, table), nil, ""); err != nil {
		return err
	}
	u.logger.Info("truncated %s.%s", schema, table)
	return nil
}

// AppendToStage appends the payload into a permanent staging table.
// An empty payload is a no-op, matching the scheduled pipeline's contract.
func (u *Uploader) AppendToStage(ctx context.Context, payload *callbell.Table, schema, table string) error {
	if payload.Empty() {
		return nil
	}
	if err := db.ValidIdentifier(schema); err != nil {
		return err
	}
	if err := db.ValidIdentifier(table); err != nil {
		return err
	}
	if err := u.write(ctx, payload, schema, table, false); err != nil {
		return err
	}
	u.logger.Verbose("appended %d rows to %s.%s", len(payload.Rows), schema, table)
	return nil
}

// MergeFullFromStage reconciles a permanent staging table into the target
// with full-replace semantics. Used by the scheduled pipeline:
// truncate, append, then merge.
func (u *Uploader) MergeFullFromStage(ctx context.Context, stageSchema, stageTable, targetSchema, targetTable string) error {
	for _, name := range []string{stageSchema, stageTable, targetSchema, targetTable} {
		if err := db.ValidIdentifier(name); err != nil {
			return err
		}
	}

	params := map[string]any{
		"target_table":  targetTable,
		"target_schema": targetSchema,
		"upload_table":  stageTable,
		"upload_schema": stageSchema,
	}
	if _, err := u.exec.CallProcedure(ctx, callbell.ProcSchema, callbell.ProcMergeFull, params, nil, ""); err != nil {
		return err
	}
	u.logger.Info("merged from %s.%s into %s.%s", stageSchema, stageTable, targetSchema, targetTable)
	return nil
}
