// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/visualfin/visualfin/internal/config"
	"github.com/visualfin/visualfin/internal/provider"
	"github.com/visualfin/visualfin/internal/secrets"
	"github.com/visualfin/visualfin/internal/store"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// initHTTPClient is the HTTP client used for provider key validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select provider
	stepAPIKey                            // enter API key
	stepValidateKey                       // validating key (spinner)
	stepHistory                           // seed demo history?
	stepDone                              // wizard complete
	stepError                             // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider provider.ProviderName
	APIKey   string
	Seed     bool
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct {
		path   string
		seeded int
	}
)

// wizardProviders can run a whole scan on their own, embeddings included.
var wizardProviders = []provider.ProviderName{
	provider.ProviderGoogle,
	provider.ProviderOpenAI,
	provider.ProviderOpenRouter,
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	seedIdx        int
	apiKeyInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	seeded         int
	secretStore    secrets.Store
	errFinal       error
	skipSeed       bool
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: apiKey,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		if m.skipSeed {
			m.result.Seed = false
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepHistory
		return m, nil

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		m.seeded = msg.seeded
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if m.step == stepAPIKey {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepHistory:
		return m.handleHistoryKey(msg)
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(wizardProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = wizardProviders[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(m.result.Provider, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "down", "j", "tab":
		m.seedIdx = 1 - m.seedIdx
	case "y":
		m.seedIdx = 0
	case "n":
		m.seedIdx = 1
	case "enter":
		m.result.Seed = m.seedIdx == 0
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

var historyChoices = []string{
	"Yes, add a few demo expenses",
	"No, start with an empty history",
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  VisualFin Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Choose a model provider") + "\n\n")
		for i, p := range wizardProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+string(m.result.Provider)+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepHistory:
		b.WriteString(promptStyle.Render("Step 2/2: Demo expense history") + "\n\n")
		b.WriteString("Similar-expense search needs history to compare against.\n\n")
		for i, c := range historyChoices {
			if i == m.seedIdx {
				b.WriteString(selectedStyle.Render("  > "+c) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+c) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("y/n or ↑/↓ to choose  enter to finish  q to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n")
		}
		if m.seeded > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("Added %d demo expenses", m.seeded)) + "\n")
		}
		b.WriteString("\nRun " + promptStyle.Render("visualfin start") + " and " + promptStyle.Render("visualfin scan <photo>") + " to get started.\n")
		b.WriteString("Run " + promptStyle.Render("visualfin doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func validateProviderKeyCmd(p provider.ProviderName, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		var seeded int
		if result.Seed {
			if seeded, err = seedHistory(context.Background()); err != nil {
				return err
			}
		}
		return configWrittenMsg{path: path, seeded: seeded}
	}
}

// --- Config generation ---

type generatedConfig struct {
	Networking generatedNetworking          `yaml:"networking"`
	Providers  map[string]generatedProvider `yaml:"providers"`
	Models     generatedModels              `yaml:"models"`
	Retrieval  map[string]any               `yaml:"retrieval"`
	Storage    map[string]string            `yaml:"storage"`
}

type generatedNetworking struct {
	Listen string `yaml:"listen"`
}

type generatedProvider struct {
	APIKey string `yaml:"api_key"`
}

type generatedModels struct {
	Extraction string            `yaml:"extraction"`
	Advice     string            `yaml:"advice"`
	Embedding  string            `yaml:"embedding"`
	Failover   generatedFailover `yaml:"failover"`
}

type generatedFailover struct {
	Extraction []string `yaml:"extraction"`
	Advice     []string `yaml:"advice"`
	Embedding  []string `yaml:"embedding"`
}

// GenerateConfigYAML produces a minimal visualfin.yaml from the wizard
// result. The API key is referenced by a keyring:// URI; the secret itself
// is stored by storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) (string, error) {
	chat, embed := defaultModelsForProvider(result.Provider)
	cfg := generatedConfig{
		Networking: generatedNetworking{Listen: "127.0.0.1:18790"},
		Providers: map[string]generatedProvider{
			string(result.Provider): {APIKey: secrets.ProviderKeyURI(string(result.Provider))},
		},
		Models: generatedModels{
			Extraction: chat,
			Advice:     chat,
			Embedding:  embed,
			Failover: generatedFailover{
				Extraction: []string{},
				Advice:     []string{},
				Embedding:  []string{},
			},
		},
		Retrieval: map[string]any{"top_k": 3, "dimension_policy": "tolerate"},
		Storage:   map[string]string{"backend": "sqlite"},
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", vferr.Errorf(vferr.CodeConfigWriteFailure, "encoding config: %w", err)
	}
	return "# VisualFin configuration, generated by visualfin init\n\n" + string(out), nil
}

// defaultModelsForProvider returns the chat and embedding refs used for a
// provider.
func defaultModelsForProvider(p provider.ProviderName) (chat, embed string) {
	switch p {
	case provider.ProviderOpenAI:
		return "openai/gpt-4o-mini", "openai/text-embedding-3-small"
	case provider.ProviderOpenRouter:
		return "openrouter/google/gemini-2.5-flash", "openrouter/openai/text-embedding-3-small"
	default:
		return "google/gemini-2.5-flash", "google/text-embedding-004"
	}
}

// storeSecretAndWriteConfig saves the API key to the OS keyring and writes
// the config YAML to the default config path.
//
// Without forceOverwrite an existing config file is an error. A key stored
// before a failed write is left in the keyring; the next run overwrites it.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", vferr.Errorf(vferr.CodeConfigWriteConflict,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	if err := store.Store(secrets.ServiceName, string(result.Provider), result.APIKey); err != nil {
		return "", vferr.Errorf(vferr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
	}

	content, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", vferr.Errorf(vferr.CodeConfigWriteFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		return "", vferr.Errorf(vferr.CodeConfigWriteFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the config path the wizard writes. Tests
// override it.
var configPathForWrite = config.DefaultConfigPath

// seedHistory adds the demo expenses to the local sqlite store when it is
// empty and reports how many were added. Tests override it.
var seedHistory = func(ctx context.Context) (int, error) {
	cfg := &config.Config{Storage: config.StorageConfig{DataDir: viper.GetString("storage.data_dir")}}
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return 0, vferr.Errorf(vferr.CodeCLISetupFailure, "creating data directory %s: %w", dataDir, err)
	}

	expenses, cache, err := store.NewStores(&store.StorageConfig{Backend: "sqlite"}, dataDir)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = cache.Close()
		_ = expenses.Close()
	}()

	added, err := store.Seed(ctx, expenses, timeNow())
	if err != nil {
		return 0, vferr.Wrapf(err, vferr.CodeCLISetupFailure, "seeding demo expenses")
	}
	return added, nil
}

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for VisualFin",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Choosing a model provider (Google, OpenAI, OpenRouter) and its API key
  2. Optionally adding demo expenses to compare new receipts against

The API key is stored in the OS keyring and referenced by a keyring://
URI in the config file. No secrets are written in plain text.

After completion, run:
  visualfin start          start the gateway
  visualfin scan <photo>   analyze a receipt
  visualfin doctor         verify your setup`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-seed", false, "Do not offer demo expense history")
	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"visualfin init requires an interactive terminal.\n"+
				"To configure VisualFin non-interactively, use `visualfin secret set <provider>`\n"+
				"and edit ~/.config/visualfin/visualfin.yaml directly.")
		return vferr.New(vferr.CodeCLISetupFailure, "visualfin init: not an interactive terminal")
	}

	skipSeed, _ := cmd.Flags().GetBool("skip-seed")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.skipSeed = skipSeed
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return vferr.Errorf(vferr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return vferr.New(vferr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return vferr.Errorf(vferr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), fm.View())
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
