package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/careops/callbell/internal/reports"
	"github.com/careops/callbell/pkg/callbell"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run the dashboard report functions",
}

var reportHomeMetricsCmd = &cobra.Command{
	Use:   "home-metrics",
	Short: "Per-home call bell KPIs for a date window",
	RunE:  runReportHomeMetrics,
}

var (
	reportStart string
	reportEnd   string
	reportHome  string
)

func init() {
	reportHomeMetricsCmd.Flags().StringVar(&reportStart, "start", "", "Window start date (YYYY-MM-DD, default 7 days ago)")
	reportHomeMetricsCmd.Flags().StringVar(&reportEnd, "end", "", "Window end date (YYYY-MM-DD, default today)")
	reportHomeMetricsCmd.Flags().StringVar(&reportHome, "home", "", "Restrict to one home (default all homes)")
	reportCmd.AddCommand(reportHomeMetricsCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportHomeMetrics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	start, end, err := resolveWindow(reportStart, reportEnd)
	if err != nil {
		return err
	}

	sess, logger, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	loader := reports.NewLoader(sess.Executor(), sess.Identity(), reports.DefaultCacheTTL)

	var rs *callbell.RowSet
	err = connectRetrier(logger).Execute(ctx, func(ctx context.Context) error {
		var lerr error
		rs, lerr = loader.HomeMetrics(ctx, start, end, reportHome)
		return lerr
	})
	if err != nil {
		return err
	}

	printRowSet(rs)
	return nil
}

// resolveWindow parses the date flags, defaulting to the trailing week.
func resolveWindow(startFlag, endFlag string) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	end := time.Now().Truncate(24 * time.Hour)
	if endFlag != "" {
		var err error
		end, err = time.Parse(layout, endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: expected YYYY-MM-DD", endFlag)
		}
	}

	start := end.AddDate(0, 0, -7)
	if startFlag != "" {
		var err error
		start, err = time.Parse(layout, startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: expected YYYY-MM-DD", startFlag)
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("--start %s is after --end %s", start.Format(layout), end.Format(layout))
	}
	return start, end, nil
}
