package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const asciiLogo = `
            _ _ _          _ _
   ___ __ _| | | |__   ___| | |
  / __/ _` + "`" + ` | | | '_ \ / _ \ | |
 | (_| (_| | | | |_) |  __/ | |
  \___\__,_|_|_|_.__/ \___|_|_|`

var rootCmd = &cobra.Command{
	Use:   "callbell",
	Short: "Care-facility call bell reporting toolkit",
	Long: asciiLogo + `

callbell connects to the call bell reporting database with Azure AD
access tokens, executes queries and reconciliation uploads on behalf of
a known identity, and propagates that identity into every SQL session.

No passwords in connection strings. Every statement is attributable.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database connection failed
  12 - Credential exchange failed
  13 - SQL execution failed`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for callbell")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
