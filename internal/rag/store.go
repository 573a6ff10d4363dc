package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds a single vector search so a slow query cannot stall
// a session's receive loop indefinitely.
const searchTimeout = 10 * time.Second

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Chunk is one indexed slice of a source document.
type Chunk struct {
	ID         string
	Generation int64
	Source     string
	Index      int
	Content    string
	Embedding  pgvector.Vector
}

// Store persists and searches generation-tagged document chunks in
// PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a document store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool, logger: logger}, nil
}

// CreateGeneration opens a new, incomplete index generation and returns
// its ID. Chunks inserted under it stay invisible to queries until
// CompleteGeneration runs and the pipeline publishes the ID.
func (s *Store) CreateGeneration(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO index_generations DEFAULT VALUES RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating index generation: %w", err)
	}
	return id, nil
}

// InsertChunk stores one embedded chunk under its generation.
func (s *Store) InsertChunk(ctx context.Context, c Chunk) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO document_chunks (id, generation_id, source, chunk_index, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Generation, c.Source, c.Index, c.Content, c.Embedding,
	)
	if err != nil {
		return fmt.Errorf("inserting chunk %q: %w", c.ID, err)
	}
	return nil
}

// CompleteGeneration marks a generation as fully written. Only complete
// generations are candidates for adoption at startup.
func (s *Store) CompleteGeneration(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE index_generations SET completed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("completing generation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("completing generation %d: not found", id)
	}
	return nil
}

// LatestCompleteGeneration returns the newest complete generation ID, or
// 0 when no index has ever been built.
func (s *Store) LatestCompleteGeneration(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM index_generations WHERE completed`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("querying latest generation: %w", err)
	}
	return id, nil
}

// Search returns the k chunks of the given generation nearest to the query
// vector by cosine distance.
func (s *Store) Search(ctx context.Context, generation int64, query pgvector.Vector, k int) ([]Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT id, source, chunk_index, content
		 FROM document_chunks
		 WHERE generation_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		generation, query, k,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c := Chunk{Generation: generation}
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return chunks, nil
}

// PruneBefore deletes all generations older than keep. Chunk rows go with
// them via ON DELETE CASCADE. Best-effort housekeeping after a successful
// publish; failures are logged by the caller, never fatal.
func (s *Store) PruneBefore(ctx context.Context, keep int64) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM index_generations WHERE id < $1`, keep)
	if err != nil {
		return fmt.Errorf("pruning generations before %d: %w", keep, err)
	}
	return nil
}
