package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

var (
	querySource       string
	queryTopK         int
	queryRetrieveOnly bool
)

// Styles for query output.
var (
	sourceHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	sourceMetaStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var queryCmd = &cobra.Command{
	Use:   "query <question...>",
	Short: "Ask a question over the ingested archives",
	Long: `Embeds the question, retrieves the most similar chunks and streams
an answer from the configured generation backend.

With --retrieve-only, prints the matching chunks without generating.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&querySource, "source", "", "restrict to one source (imessage, email)")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 5, "number of chunks to retrieve")
	queryCmd.Flags().BoolVar(&queryRetrieveOnly, "retrieve-only", false, "print matching chunks without generating an answer")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	question := strings.Join(args, " ")
	ctx := cmd.Context()

	if queryRetrieveOnly {
		chunks, err := queryService.Retrieve(ctx, question, queryTopK, domain.Source(querySource))
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			cmd.Println("No matching chunks. Run 'recall ingest' first?")
			return nil
		}
		for i, chunk := range chunks {
			printChunk(cmd, i+1, chunk)
		}
		return nil
	}

	events := queryService.StreamAnswer(ctx, question, queryTopK, domain.Source(querySource))
	answered := false

	for ev := range events {
		switch ev.Type {
		case domain.EventSources:
			previews, ok := ev.Data.([]domain.SourcePreview)
			if !ok || len(previews) == 0 {
				continue
			}
			cmd.Println(sourceHeaderStyle.Render(fmt.Sprintf("Sources (%d)", len(previews))))
			for _, p := range previews {
				cmd.Println(sourceMetaStyle.Render(fmt.Sprintf("  %s · %s · %s · %.3f",
					p.Source, p.Contact, time.Unix(p.StartTime, 0).UTC().Format("2006-01-02"), p.Similarity)))
			}
			cmd.Println()

		case domain.EventToken:
			if token, ok := ev.Data.(string); ok {
				cmd.Print(token)
				answered = true
			}

		case domain.EventDone:
			cmd.Println()

		case domain.EventError:
			if answered {
				cmd.Println()
			}
			return errors.New(errorStyle.Render(fmt.Sprint(ev.Data)))
		}
	}
	return nil
}

func printChunk(cmd *cobra.Command, n int, chunk domain.ScoredChunk) {
	cmd.Println(sourceHeaderStyle.Render(fmt.Sprintf("#%d  %s · %s", n, chunk.Source, chunk.Contact)))
	cmd.Println(sourceMetaStyle.Render(fmt.Sprintf("    %s – %s · %d messages · similarity %.3f",
		chunk.StartTime.Format("2006-01-02 15:04"),
		chunk.EndTime.Format("2006-01-02 15:04"),
		chunk.MessageCount, chunk.Similarity)))
	cmd.Println(chunk.Text)
	cmd.Println()
}
