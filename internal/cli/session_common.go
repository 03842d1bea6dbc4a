package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/careops/callbell/internal/auth"
	"github.com/careops/callbell/internal/config"
	"github.com/careops/callbell/internal/logging"
	"github.com/careops/callbell/internal/retry"
	"github.com/careops/callbell/internal/session"
	"github.com/careops/callbell/pkg/callbell"
)

// openSession loads the project configuration from the working directory and
// opens a service-principal session against the reporting database.
//
// The CLI never sees Easy Auth headers, so delegation is not in play here;
// delegated sessions belong to the dashboard host, which hands real headers
// to session.New.
func openSession(ctx context.Context, cmd *cobra.Command) (*session.Session, callbell.Logger, error) {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	cfg, err := config.Load(".")
	if err != nil {
		return nil, logger, fmt.Errorf("%w: %w", callbell.ErrInvalidConfig, err)
	}

	provider := auth.NewProvider(logger)

	sess, err := session.New(ctx, cfg, http.Header{}, provider, logger)
	if err != nil {
		return nil, logger, err
	}
	return sess, logger, nil
}

// connectRetrier builds the retry executor used around CLI database
// operations. Retries live at this boundary only; the inner layers report
// errors once and do not retry on their own.
func connectRetrier(logger callbell.Logger) *retry.Executor {
	strategy := retry.NewExponentialBackoff(callbell.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(callbell.DefaultRetryInitialDelay),
		retry.WithMaxDelay(callbell.DefaultRetryMaxDelay),
	)
	classifier := retry.NewSQLServerErrorClassifier()

	return retry.NewExecutor(classifier, strategy).WithOnRetry(
		func(attempt int, err error, delay time.Duration) {
			logger.Info("Transient failure (attempt %d): %v; retrying in %s", attempt+1, err, delay)
		},
	)
}

// printedWidth keeps column rendering stable for multibyte-free report data.
func printRowSet(rs *callbell.RowSet) {
	if rs == nil || rs.Len() == 0 {
		fmt.Fprintln(os.Stderr, "(no rows)")
		return
	}

	widths := make([]int, len(rs.Columns))
	for i, col := range rs.Columns {
		widths[i] = len(col)
	}
	rendered := make([][]string, len(rs.Rows))
	for r, row := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for i := range rs.Columns {
			if i < len(row) {
				cells[i] = renderCell(row[i])
			}
			if len(cells[i]) > widths[i] {
				widths[i] = len(cells[i])
			}
		}
		rendered[r] = cells
	}

	for i, col := range rs.Columns {
		fmt.Printf("%-*s  ", widths[i], col)
	}
	fmt.Println()
	for i := range rs.Columns {
		for j := 0; j < widths[i]; j++ {
			fmt.Print("-")
		}
		fmt.Print("  ")
	}
	fmt.Println()
	for _, cells := range rendered {
		for i, cell := range cells {
			fmt.Printf("%-*s  ", widths[i], cell)
		}
		fmt.Println()
	}
	fmt.Fprintf(os.Stderr, "(%d rows)\n", rs.Len())
}

func renderCell(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
