package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/careops/callbell/internal/config"
	"github.com/careops/callbell/internal/tui"
	"github.com/careops/callbell/internal/tui/wizards"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create or update the project configuration interactively",
	Long: `Walk through the connection settings and write them to ` + config.ConfigFileName + `.

The Azure client secret is never written to the file; set it via the
AZURE_CLIENT_SECRET environment variable or a local .env file.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	if !tui.IsInteractive() {
		return fmt.Errorf("setup requires an interactive terminal; set configuration via environment variables or edit %s directly", config.ConfigFileName)
	}

	existing, err := config.Load(".")
	if err != nil {
		return err
	}

	wizard := wizards.NewSetupWizard(existing)
	program := tea.NewProgram(wizard)

	model, err := program.Run()
	if err != nil {
		return fmt.Errorf("setup wizard failed: %w", err)
	}

	finished, ok := model.(wizards.SetupWizard)
	if !ok {
		return fmt.Errorf("setup wizard returned unexpected model")
	}

	result := finished.Result()
	if result.Cancelled {
		fmt.Fprintln(os.Stderr, "Setup cancelled.")
		return nil
	}

	if err := config.Save(".", &result.Config); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ConfigFileName, err)
	}

	fmt.Fprintf(os.Stderr, "%s Wrote %s\n", tui.SuccessStyle.Render(tui.SymbolCheck), config.ConfigFileName)
	fmt.Fprintln(os.Stderr, "Remember to set AZURE_CLIENT_SECRET in the environment before connecting.")
	return nil
}
