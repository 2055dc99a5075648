// Package cli contains the cobra commands. Commands talk to the core
// exclusively through the driving ports; all wiring happens in Execute.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recall-labs/recall-cli/internal/adapters/driven/ai"
	"github.com/recall-labs/recall-cli/internal/adapters/driven/config/file"
	"github.com/recall-labs/recall-cli/internal/adapters/driven/storage/sqlite"
	"github.com/recall-labs/recall-cli/internal/adapters/driving/web"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
	"github.com/recall-labs/recall-cli/internal/core/ports/driving"
	"github.com/recall-labs/recall-cli/internal/core/services"
	"github.com/recall-labs/recall-cli/internal/extractors/imessage"
	"github.com/recall-labs/recall-cli/internal/extractors/mailbox"
	"github.com/recall-labs/recall-cli/internal/logger"
)

// version is set by Execute from the build.
var version = "dev"

// Global flags.
var (
	verbose bool
	dbPath  string
	chatDB  string
	mailDir string
)

// Services shared by the commands, wired in Execute.
var (
	ingestOrchestrator driving.IngestOrchestrator
	queryService       driving.QueryService
	settingsStore      driven.SettingsStore
	vectorStore        driven.VectorStore
	webServer          *web.Server
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Search and question-answering over your local message archives",
	Long: `recall indexes your local iMessage and Apple Mail archives into a
vector store and answers questions about them using a local or remote
language model. Nothing leaves your machine unless you configure a
remote generation backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return wire()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "vector database path (default ~/.recall/vectors.db)")
	rootCmd.PersistentFlags().StringVar(&chatDB, "chat-db", "", "iMessage database path (default ~/Library/Messages/chat.db)")
	rootCmd.PersistentFlags().StringVar(&mailDir, "mail-dir", "", "mail archive directory (default ~/Library/Mail/V10)")
}

// wire builds the adapter stack behind the driving ports.
func wire() error {
	settings, err := file.NewSettingsStore("")
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	settingsStore = settings

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	vectorStore = store

	factory := ai.NewFactory(settingsStore)
	ingestOrchestrator = services.NewIngestService(
		imessage.New(chatDB),
		mailbox.New(mailDir),
		vectorStore,
		factory,
		0,
	)
	queryService = services.NewQueryService(vectorStore, factory)
	webServer = web.NewServer(queryService, ingestOrchestrator, settingsStore, vectorStore)
	return nil
}

// Execute runs the CLI with the given build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
