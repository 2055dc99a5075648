package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

var (
	ingestSince  string
	ingestNoWait bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source>",
	Short: "Index an archive into the vector store",
	Long: `Extracts messages from a local archive, groups them into chunks,
embeds them and stores the result. Sources: imessage, email.

Re-running is safe: chunks are deduplicated, so only changed
conversations are rewritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSince, "since", "", "only ingest records newer than this age (e.g. 30d, 12h)")
	ingestCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "start the task and return without waiting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestOrchestrator == nil {
		return errors.New("ingest service not configured")
	}

	since, err := parseSince(ingestSince)
	if err != nil {
		return err
	}

	snapshot, err := ingestOrchestrator.Start(domain.Source(args[0]), since)
	if err != nil {
		return fmt.Errorf("starting ingest: %w", err)
	}

	cmd.Printf("Ingesting %s (task %s)...\n", snapshot.Source, snapshot.ID)
	if ingestNoWait {
		return nil
	}
	return waitForTask(cmd, snapshot.ID)
}

// waitForTask polls the task until it reaches a terminal state, showing
// progress on one rewritten line.
func waitForTask(cmd *cobra.Command, id string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastChunks := -1
	for range ticker.C {
		snapshot, err := ingestOrchestrator.Get(id)
		if err != nil {
			return err
		}

		if snapshot.ChunksProcessed != lastChunks {
			cmd.Printf("\rProcessing... %d chunks / %d messages", snapshot.ChunksProcessed, snapshot.MessagesProcessed)
			lastChunks = snapshot.ChunksProcessed
		}

		if snapshot.Status.Terminal() {
			cmd.Printf("\rProcessed %d chunks / %d messages.\n", snapshot.ChunksProcessed, snapshot.MessagesProcessed)
			switch snapshot.Status {
			case domain.TaskDone:
				cmd.Println("Done.")
				return nil
			case domain.TaskCancelled:
				cmd.Println("Cancelled.")
				return nil
			default:
				return fmt.Errorf("ingest failed: %s", snapshot.Error)
			}
		}
	}
	return nil
}

// parseSince converts an age like "30d" or "12h" into an absolute cutoff.
func parseSince(age string) (*time.Time, error) {
	age = strings.TrimSpace(age)
	if age == "" {
		return nil, nil
	}

	unit := age[len(age)-1]
	n, err := strconv.Atoi(age[:len(age)-1])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid --since value %q: want a number followed by d or h", age)
	}

	var d time.Duration
	switch unit {
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	case 'h':
		d = time.Duration(n) * time.Hour
	default:
		return nil, fmt.Errorf("invalid --since unit %q: want d or h", string(unit))
	}

	cutoff := time.Now().UTC().Add(-d)
	return &cutoff, nil
}
