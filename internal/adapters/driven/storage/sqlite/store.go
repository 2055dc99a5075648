// Package sqlite provides the SQLite-backed vector store. Embeddings are
// stored as little-endian float32 blobs and ranked with an exhaustive
// cosine-similarity scan — at personal-archive scale a linear scan stays
// well within interactive latency, so no index structure is maintained.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Search result bounds.
const (
	MinTopK = 1
	MaxTopK = 50
)

// Store persists chunks and embeddings in a single SQLite file.
//
// Connections are opened per operation and closed immediately after, so
// no database handle is ever held across a network round-trip to the
// embedding or generation services.
type Store struct {
	path string
}

// NewStore creates a store for the database at path.
// If path is empty, defaults to ~/.recall/vectors.db.
// The schema is created lazily on first write.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".recall", "vectors.db")
	}
	return &Store{path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// schema is the single chunks table. The unique index on
// (source, contact, start_time) enforces the dedup key.
const schema = `
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		contact TEXT,
		start_time REAL,
		end_time REAL,
		text TEXT NOT NULL,
		message_count INTEGER,
		embedding BLOB,
		metadata TEXT,
		created_at REAL DEFAULT (unixepoch())
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_dedup
		ON chunks(source, contact, start_time);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	CREATE INDEX IF NOT EXISTS idx_chunks_contact ON chunks(contact);`

// open opens a short-lived connection and ensures the schema exists.
// The caller closes the returned handle.
func (s *Store) open() (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}

// Upsert inserts the chunk or updates the row with the same dedup key.
// Returns the row identifier. Idempotent: repeated calls with the same
// (source, contact, start_time) leave exactly one row, last write wins.
func (s *Store) Upsert(ctx context.Context, chunk domain.Chunk, embedding []float32) (int64, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var metadataJSON any
	if len(chunk.Metadata) > 0 {
		b, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshalling metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	var id int64
	err = db.QueryRowContext(ctx, `
		INSERT INTO chunks (source, contact, start_time, end_time, text, message_count, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, contact, start_time) DO UPDATE SET
			end_time = excluded.end_time,
			text = excluded.text,
			message_count = excluded.message_count,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			created_at = unixepoch()
		RETURNING id
	`, chunk.Source.String(), chunk.Contact,
		toEpoch(chunk.StartTime), toEpoch(chunk.EndTime),
		chunk.Text, chunk.MessageCount,
		float32SliceToBytes(embedding), metadataJSON).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("upserting chunk: %w", err)
	}
	return id, nil
}

// Search loads every embedded row (optionally filtered by source), scores
// it against the query by cosine similarity and returns the topK best.
// topK is clamped to [MinTopK, MaxTopK]. Zero-norm vectors never divide
// by zero: a zero-norm query yields no results and zero-norm rows are
// skipped. Ties keep stable input order, so results are deterministic.
func (s *Store) Search(ctx context.Context, query []float32, topK int, source domain.Source) ([]domain.ScoredChunk, error) {
	if topK < MinTopK {
		topK = MinTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	queryNorm := vectorNorm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT id, source, contact, start_time, end_time, text, message_count, embedding, metadata
		FROM chunks WHERE embedding IS NOT NULL`
	var args []any
	if source != "" {
		q += " AND source = ?"
		args = append(args, source.String())
	}
	q += " ORDER BY id"

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredChunk
	for rows.Next() {
		chunk, embedding, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}

		norm := vectorNorm(embedding)
		if norm == 0 {
			continue
		}
		chunk.Similarity = float64(dot(query, embedding)) / (queryNorm * norm)
		scored = append(scored, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// FetchByIDs returns the matching rows in input order where possible,
// with Similarity left at 0 to mark them as not from a ranked search.
func (s *Store) FetchByIDs(ctx context.Context, ids []int64) ([]domain.ScoredChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source, contact, start_time, end_time, text, message_count, embedding, metadata
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks by id: %w", err)
	}
	defer rows.Close()

	var chunks []domain.ScoredChunk
	for rows.Next() {
		chunk, _, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Stats returns chunk counts and the on-disk size. A database file that
// has never been created yields zero values, not an error, and is not
// created as a side effect.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.StoreStats{BySource: map[domain.Source]int{}}, nil
		}
		return nil, fmt.Errorf("stat database: %w", err)
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	stats := &domain.StoreStats{
		BySource:  map[domain.Source]int{},
		SizeBytes: info.Size(),
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.TotalChunks); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT source, COUNT(*) FROM chunks GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("counting by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scanning source count: %w", err)
		}
		stats.BySource[domain.Source(source)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source counts: %w", err)
	}

	return stats, nil
}

// ==================== Helper Functions ====================

// scanChunk scans one row into a ScoredChunk plus its raw embedding.
func scanChunk(rows *sql.Rows) (domain.ScoredChunk, []float32, error) {
	var (
		chunk         domain.ScoredChunk
		source        string
		startTime     float64
		endTime       float64
		embeddingBlob []byte
		metadataJSON  sql.NullString
	)

	if err := rows.Scan(&chunk.ID, &source, &chunk.Contact, &startTime, &endTime,
		&chunk.Text, &chunk.MessageCount, &embeddingBlob, &metadataJSON); err != nil {
		return domain.ScoredChunk{}, nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Source = domain.Source(source)
	chunk.StartTime = fromEpoch(startTime)
	chunk.EndTime = fromEpoch(endTime)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return domain.ScoredChunk{}, nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return chunk, bytesToFloat32Slice(embeddingBlob), nil
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice
// for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// dot returns the dot product of two vectors of equal length.
// Mismatched lengths score over the shorter prefix.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// vectorNorm returns the Euclidean norm of a vector.
func vectorNorm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// toEpoch converts a time to fractional epoch seconds.
func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// fromEpoch converts fractional epoch seconds back to UTC time.
func fromEpoch(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}
