package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/careops/callbell/pkg/callbell"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Execute a SQL statement against the reporting database",
	Long: `Execute one SQL statement inside a transaction with the session
identity applied, and print the result.

Scalar results print as a single value; row sets print as a table or,
with --json, as a JSON array of objects.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var (
	queryLabel string
	queryJSON  bool
)

func init() {
	queryCmd.Flags().StringVar(&queryLabel, "label", "", "Label attached to a scalar JSON result")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print row sets as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	statement := args[0]

	sess, logger, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	var result any
	err = connectRetrier(logger).Execute(ctx, func(ctx context.Context) error {
		var qerr error
		result, qerr = sess.Executor().Exec(ctx, statement, nil, queryLabel)
		return qerr
	})
	if err != nil {
		return err
	}

	return printResult(result)
}

func printResult(result any) error {
	switch v := result.(type) {
	case nil:
		fmt.Fprintln(os.Stderr, "(no result)")
	case *callbell.RowSet:
		if queryJSON {
			return printJSON(rowSetToMaps(v))
		}
		printRowSet(v)
	case map[string]any:
		return printJSON(v)
	case []any:
		return printJSON(v)
	default:
		fmt.Println(renderCell(v))
	}
	return nil
}

func rowSetToMaps(rs *callbell.RowSet) []map[string]any {
	out := make([]map[string]any, 0, rs.Len())
	for _, row := range rs.Rows {
		m := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
