package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careops/callbell/pkg/callbell"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify token acquisition and database connectivity",
	Long: `Acquire an access token and open a connection to the configured
reporting database, then report the identity the database sees.

Useful for validating app registration settings before deploying the
dashboard.`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, logger, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	var rs *callbell.RowSet
	err = connectRetrier(logger).Execute(ctx, func(ctx context.Context) error {
		var qerr error
		rs, qerr = sess.Executor().Query(ctx,
			"SELECT DB_NAME() AS [database], SUSER_SNAME() AS [login], SYSDATETIMEOFFSET() AS [server_time]",
			nil, sess.Identity())
		return qerr
	})
	if err != nil {
		return err
	}

	logger.Info("Connected as %s", sess.Flow())
	printRowSet(rs)
	fmt.Println("OK")
	return nil
}
