package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts a local HTTP server exposing the query, chat and ingestion
API with server-sent-event streaming. The server binds to localhost
only; it is not meant to face a network.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8765, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if webServer == nil {
		return errors.New("web server not configured")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", servePort)
	cmd.Printf("Listening on http://%s\n", addr)
	return webServer.ListenAndServe(cmd.Context(), addr)
}
