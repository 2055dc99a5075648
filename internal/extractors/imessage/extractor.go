// Package imessage streams decoded messages from the local iMessage
// chat database. The database is opened read-only and rows are fetched
// incrementally, so arbitrarily large histories never sit in memory.
package imessage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
	"github.com/recall-labs/recall-cli/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.ChatExtractor = (*Extractor)(nil)

// DefaultDBPath is the standard chat database location.
const DefaultDBPath = "~/Library/Messages/chat.db"

// Extractor reads the iMessage chat database.
type Extractor struct {
	dbPath string
}

// New creates an extractor for the database at path.
// An empty path uses the default location.
func New(path string) *Extractor {
	if path == "" {
		path = DefaultDBPath
	}
	if home, err := os.UserHomeDir(); err == nil && len(path) > 1 && path[:2] == "~/" {
		path = filepath.Join(home, path[2:])
	}
	return &Extractor{dbPath: path}
}

// selectMessages joins messages with their handles. Rows are ordered by
// (contact, date) ascending — the chunker depends on this ordering.
const selectMessages = `
	SELECT
		m.ROWID,
		m.text,
		m.attributedBody,
		m.date,
		m.is_from_me,
		COALESCE(h.id, 'unknown') AS contact
	FROM message m
	LEFT JOIN handle h ON m.handle_id = h.ROWID
	WHERE ((m.text IS NOT NULL AND m.text != '')
		OR m.attributedBody IS NOT NULL)`

// Extract streams messages, optionally bounded by an inclusive since
// cutoff. The message channel is closed on exhaustion; the error channel
// receives at most one error. Rows without decodable text are skipped.
func (e *Extractor) Extract(ctx context.Context, since *time.Time) (<-chan domain.RawMessage, <-chan error) {
	out := make(chan domain.RawMessage)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", e.dbPath))
		if err != nil {
			errs <- fmt.Errorf("open chat database: %w", err)
			return
		}
		defer db.Close()

		query := selectMessages
		var args []any
		if since != nil {
			// Push the cutoff into SQL using the native epoch.
			query += " AND m.date >= ?"
			args = append(args, toAppleTime(since.UTC()))
		}
		query += " ORDER BY contact, m.date"

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			errs <- fmt.Errorf("query messages: %w", err)
			return
		}
		defer rows.Close()

		skipped := 0
		for rows.Next() {
			var (
				rowID          int64
				text           sql.NullString
				attributedBody []byte
				appleDate      int64
				isFromMe       bool
				contact        string
			)
			if err := rows.Scan(&rowID, &text, &attributedBody, &appleDate, &isFromMe, &contact); err != nil {
				errs <- fmt.Errorf("scan message row: %w", err)
				return
			}

			body := text.String
			if body == "" && len(attributedBody) > 0 {
				decoded, ok := decodeAttributedBody(attributedBody)
				if !ok {
					skipped++
					continue
				}
				body = decoded
			}
			if body == "" {
				skipped++
				continue
			}

			msg := domain.RawMessage{
				RowID:    rowID,
				Text:     body,
				Date:     fromAppleTime(appleDate),
				IsFromMe: isFromMe,
				Contact:  contact,
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}

		if err := rows.Err(); err != nil {
			errs <- fmt.Errorf("iterate messages: %w", err)
			return
		}
		if skipped > 0 {
			logger.Debug("imessage: skipped %d rows without decodable text", skipped)
		}
	}()

	return out, errs
}
