package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

var (
	settingsBackend string
	settingsModel   string
	settingsAPIURL  string
	settingsAPIKey  bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage generation backend settings",
	RunE:  runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update generation backend settings",
	Long: `Updates the generation backend configuration. Only the flags you
pass are changed; everything else keeps its stored value.

With --api-key the key is read from the terminal without echo.`,
	RunE: runSettingsSet,
}

func init() {
	settingsSetCmd.Flags().StringVar(&settingsBackend, "backend", "", "generation backend (ollama, openai)")
	settingsSetCmd.Flags().StringVar(&settingsModel, "model", "", "generation model name")
	settingsSetCmd.Flags().StringVar(&settingsAPIURL, "api-url", "", "OpenAI-compatible base URL")
	settingsSetCmd.Flags().BoolVar(&settingsAPIKey, "api-key", false, "prompt for the API key")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	gen := settingsStore.Generation()
	embed := settingsStore.Embedding()

	cmd.Println(sourceHeaderStyle.Render("Generation"))
	cmd.Printf("  backend: %s\n", gen.Backend)
	cmd.Printf("  model:   %s\n", orUnset(gen.Model))
	if gen.Backend == domain.BackendOpenAI {
		cmd.Printf("  api url: %s\n", orUnset(gen.APIURL))
		cmd.Printf("  api key: %s\n", maskKey(gen.APIKey))
	}

	cmd.Println(sourceHeaderStyle.Render("Embedding"))
	cmd.Printf("  base url: %s\n", orUnset(embed.BaseURL))
	cmd.Printf("  model:    %s\n", orUnset(embed.Model))
	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	update := domain.GenerationSettings{
		Backend: domain.Backend(settingsBackend),
		Model:   settingsModel,
		APIURL:  settingsAPIURL,
	}

	if settingsAPIKey {
		key, err := promptAPIKey(cmd)
		if err != nil {
			return err
		}
		update.APIKey = key
	}

	if err := settingsStore.SaveGeneration(update); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	cmd.Println("Settings saved.")
	return nil
}

// promptAPIKey reads the key without echo when stdin is a terminal, and
// falls back to a plain line read for piped input.
func promptAPIKey(cmd *cobra.Command) (string, error) {
	cmd.Print("API key: ")

	if term.IsTerminal(int(os.Stdin.Fd())) {
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return strings.TrimSpace(string(key)), nil
	}

	var key string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &key); err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(key), nil
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

// maskKey shows only enough of a key to recognise it.
func maskKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
