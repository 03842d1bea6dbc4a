// Package wizards contains the interactive flows built on bubbletea.
package wizards

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/careops/callbell/internal/config"
	"github.com/careops/callbell/internal/tui"
)

// Field order in the setup form.
const (
	fieldSQLServer = iota
	fieldSQLDatabase
	fieldTenantID
	fieldClientID
	fieldAppName
	fieldCount
)

// SetupResult holds the outcome of the setup wizard.
type SetupResult struct {
	Cancelled bool
	Config    config.Config
}

type setupKeys struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Quit   key.Binding
}

func defaultSetupKeys() setupKeys {
	return setupKeys{
		Next:   key.NewBinding(key.WithKeys("tab", "down")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up")),
		Submit: key.NewBinding(key.WithKeys("enter")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "esc")),
	}
}

// SetupWizard collects the project configuration for callbell.yaml.
// The client secret is deliberately not part of the form; it stays in
// the environment.
type SetupWizard struct {
	inputs        []textinput.Model
	focusIndex    int
	validationErr string
	done          bool

	keys   setupKeys
	result SetupResult
}

// NewSetupWizard creates the wizard, pre-filling fields from an existing
// configuration when one is present.
func NewSetupWizard(existing *config.Config) SetupWizard {
	inputs := make([]textinput.Model, fieldCount)

	server := textinput.New()
	server.Placeholder = "myserver.database.windows.net"
	server.CharLimit = 256
	server.Width = 48

	database := textinput.New()
	database.Placeholder = "care_reporting"
	database.CharLimit = 128
	database.Width = 48

	tenant := textinput.New()
	tenant.Placeholder = "00000000-0000-0000-0000-000000000000"
	tenant.CharLimit = 64
	tenant.Width = 48

	client := textinput.New()
	client.Placeholder = "00000000-0000-0000-0000-000000000000"
	client.CharLimit = 64
	client.Width = 48

	appName := textinput.New()
	appName.SetValue(config.DefaultAppName)
	appName.CharLimit = 64
	appName.Width = 48

	inputs[fieldSQLServer] = server
	inputs[fieldSQLDatabase] = database
	inputs[fieldTenantID] = tenant
	inputs[fieldClientID] = client
	inputs[fieldAppName] = appName

	if existing != nil {
		setIfPresent(&inputs[fieldSQLServer], existing.SQLServer)
		setIfPresent(&inputs[fieldSQLDatabase], existing.SQLDatabase)
		setIfPresent(&inputs[fieldTenantID], existing.AzureTenantID)
		setIfPresent(&inputs[fieldClientID], existing.AzureClientID)
		setIfPresent(&inputs[fieldAppName], existing.AppName)
	}

	w := SetupWizard{
		inputs: inputs,
		keys:   defaultSetupKeys(),
	}
	w.inputs[0].Focus()
	return w
}

func setIfPresent(input *textinput.Model, value string) {
	if value != "" {
		input.SetValue(value)
	}
}

// Result returns the wizard outcome after the program has finished.
func (w SetupWizard) Result() SetupResult {
	return w.result
}

// Init implements tea.Model.
func (w SetupWizard) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (w SetupWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, w.keys.Quit):
			w.result.Cancelled = true
			return w, tea.Quit

		case key.Matches(msg, w.keys.Prev):
			return w.moveFocus(-1)

		case key.Matches(msg, w.keys.Next):
			return w.moveFocus(1)

		case key.Matches(msg, w.keys.Submit):
			if w.focusIndex < len(w.inputs)-1 {
				return w.moveFocus(1)
			}
			if err := w.validate(); err != nil {
				w.validationErr = err.Error()
				return w, nil
			}
			w.result = SetupResult{Config: w.buildConfig()}
			w.done = true
			return w, tea.Quit
		}
	}

	var cmd tea.Cmd
	w.inputs[w.focusIndex], cmd = w.inputs[w.focusIndex].Update(msg)
	return w, cmd
}

func (w SetupWizard) moveFocus(delta int) (tea.Model, tea.Cmd) {
	w.inputs[w.focusIndex].Blur()
	w.focusIndex = (w.focusIndex + delta + len(w.inputs)) % len(w.inputs)
	w.validationErr = ""
	return w, w.inputs[w.focusIndex].Focus()
}

func (w SetupWizard) validate() error {
	required := map[int]string{
		fieldSQLServer:   "SQL server",
		fieldSQLDatabase: "SQL database",
		fieldTenantID:    "Azure tenant ID",
		fieldClientID:    "Azure client ID",
	}
	for idx, label := range required {
		if strings.TrimSpace(w.inputs[idx].Value()) == "" {
			return fmt.Errorf("%s is required", label)
		}
	}
	return nil
}

func (w SetupWizard) buildConfig() config.Config {
	cfg := config.Config{
		SQLServer:     strings.TrimSpace(w.inputs[fieldSQLServer].Value()),
		SQLDatabase:   strings.TrimSpace(w.inputs[fieldSQLDatabase].Value()),
		AzureTenantID: strings.TrimSpace(w.inputs[fieldTenantID].Value()),
		AzureClientID: strings.TrimSpace(w.inputs[fieldClientID].Value()),
		AppName:       strings.TrimSpace(w.inputs[fieldAppName].Value()),
	}
	if cfg.AppName == "" {
		cfg.AppName = config.DefaultAppName
	}
	return cfg
}

// View implements tea.Model.
func (w SetupWizard) View() string {
	if w.done {
		return ""
	}

	labels := [fieldCount]string{
		fieldSQLServer:   "SQL server",
		fieldSQLDatabase: "SQL database",
		fieldTenantID:    "Azure tenant ID",
		fieldClientID:    "Azure client ID (app registration)",
		fieldAppName:     "Application name",
	}

	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("callbell setup"))
	b.WriteString("\n")
	b.WriteString(tui.SubtitleStyle.Render("Connection settings are written to " + config.ConfigFileName + "; the client secret stays in the environment."))
	b.WriteString("\n\n")

	for i, input := range w.inputs {
		b.WriteString(tui.LabelStyle.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	if w.validationErr != "" {
		b.WriteString(tui.ErrorStyle.Render(tui.SymbolCross + " " + w.validationErr))
		b.WriteString("\n")
	}

	b.WriteString(tui.HelpStyle.Render("tab: next field • enter: submit • esc: cancel"))
	b.WriteString("\n")
	return b.String()
}
