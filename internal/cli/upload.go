package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/careops/callbell/internal/staging"
	"github.com/careops/callbell/pkg/callbell"
)

// defaultColumnType is used for CSV columns without an explicit override.
// Reconciliation procedures cast on their side, so wide text is safe.
const defaultColumnType = "NVARCHAR(MAX)"

var uploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Reconcile a CSV payload into a target table",
	Long: `Load a CSV file into a private staging table and invoke the
requested reconciliation procedure against the target table. The staging
table is dropped afterwards whether the procedure succeeds or fails.

Modes:
  upsert        insert-or-update by key
  merge         full synchronization (insert, update, delete)
  bulk-update   update existing rows within a scope (requires --scope-column)
  merge-scoped  full synchronization within a scope (requires --scope-column)`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var (
	uploadSchema      string
	uploadTable       string
	uploadMode        string
	uploadScopeColumn string
	uploadLabel       string
	uploadTypes       []string
)

func init() {
	uploadCmd.Flags().StringVar(&uploadSchema, "schema", "dbo", "Target table schema")
	uploadCmd.Flags().StringVar(&uploadTable, "table", "", "Target table name (required)")
	uploadCmd.Flags().StringVar(&uploadMode, "mode", "upsert", "Reconciliation mode: upsert, merge, bulk-update, merge-scoped")
	uploadCmd.Flags().StringVar(&uploadScopeColumn, "scope-column", "", "Scope column for bulk-update and merge-scoped modes")
	uploadCmd.Flags().StringVar(&uploadLabel, "label", "", "Label attached to procedure result metrics")
	uploadCmd.Flags().StringArrayVar(&uploadTypes, "type", nil, "Column type override, e.g. --type amount=DECIMAL(10,2)")
	_ = uploadCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	typeOverrides, err := parseTypeOverrides(uploadTypes)
	if err != nil {
		return err
	}

	payload, err := loadCSV(args[0], typeOverrides)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	sess, logger, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	var result any
	err = connectRetrier(logger).Execute(ctx, func(ctx context.Context) error {
		var uerr error
		result, uerr = runReconciliation(ctx, sess.Uploader(), payload)
		return uerr
	})
	if err != nil {
		return err
	}

	logger.Info("Upload complete: %d rows into [%s].[%s]", len(payload.Rows), uploadSchema, uploadTable)
	if result != nil {
		return printResult(result)
	}
	return nil
}

func runReconciliation(ctx context.Context, uploader *staging.Uploader, payload *callbell.Table) (any, error) {
	switch uploadMode {
	case "upsert":
		return nil, uploader.Upsert(ctx, payload, uploadSchema, uploadTable, uploadLabel)
	case "merge":
		return nil, uploader.MergeFull(ctx, payload, uploadSchema, uploadTable, uploadLabel)
	case "bulk-update":
		if uploadScopeColumn == "" {
			return nil, fmt.Errorf("mode %q requires --scope-column", uploadMode)
		}
		return nil, uploader.BulkUpdateScoped(ctx, payload, uploadSchema, uploadTable, uploadScopeColumn, uploadLabel)
	case "merge-scoped":
		if uploadScopeColumn == "" {
			return nil, fmt.Errorf("mode %q requires --scope-column", uploadMode)
		}
		return uploader.MergeScoped(ctx, payload, uploadSchema, uploadTable, uploadScopeColumn, uploadLabel)
	default:
		return nil, fmt.Errorf("unknown mode %q (expected upsert, merge, bulk-update, or merge-scoped)", uploadMode)
	}
}

func parseTypeOverrides(specs []string) (map[string]string, error) {
	overrides := make(map[string]string, len(specs))
	for _, spec := range specs {
		name, sqlType, ok := strings.Cut(spec, "=")
		if !ok || name == "" || sqlType == "" {
			return nil, fmt.Errorf("invalid --type %q (expected column=TYPE)", spec)
		}
		overrides[name] = sqlType
	}
	return overrides, nil
}

// loadCSV reads a CSV file with a header row into an upload payload.
// Empty cells become NULLs.
func loadCSV(path string, typeOverrides map[string]string) (*callbell.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}

	header := records[0]
	columns := make([]callbell.Column, len(header))
	for i, name := range header {
		sqlType := defaultColumnType
		if t, ok := typeOverrides[name]; ok {
			sqlType = t
		}
		columns[i] = callbell.Column{Name: name, Type: sqlType}
	}

	rows := make([][]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]any, len(header))
		for i := range header {
			if i < len(record) && record[i] != "" {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return &callbell.Table{Columns: columns, Rows: rows}, nil
}
