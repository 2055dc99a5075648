package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and ingestion tasks",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if vectorStore == nil || ingestOrchestrator == nil {
		return errors.New("services not configured")
	}

	stats, err := vectorStore.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading store stats: %w", err)
	}

	cmd.Println(sourceHeaderStyle.Render("Vector store"))
	cmd.Printf("  chunks: %d\n", stats.TotalChunks)
	for source, count := range stats.BySource {
		cmd.Printf("    %s: %d\n", source, count)
	}
	cmd.Printf("  size: %.1f MiB\n", float64(stats.SizeBytes)/(1024*1024))

	tasks := ingestOrchestrator.All()
	if len(tasks) == 0 {
		return nil
	}

	// Newest first; unstarted tasks sink to the bottom.
	sort.Slice(tasks, func(i, j int) bool {
		switch {
		case tasks[i].StartedAt == nil:
			return false
		case tasks[j].StartedAt == nil:
			return true
		default:
			return tasks[i].StartedAt.After(*tasks[j].StartedAt)
		}
	})

	cmd.Println()
	cmd.Println(sourceHeaderStyle.Render("Ingestion tasks"))
	for _, task := range tasks {
		line := fmt.Sprintf("  %s  %-9s %-10s %d chunks / %d messages",
			task.ID, task.Source, task.Status, task.ChunksProcessed, task.MessagesProcessed)
		if task.Error != "" {
			line += "  " + errorStyle.Render(task.Error)
		}
		cmd.Println(line)
	}
	return nil
}
