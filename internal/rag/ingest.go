package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/gofrs/flock"
)

var (
	// ErrIngestLocked reports that another process holds the ingest lock
	// (for example a manual `dormchat ingest` run alongside the server's
	// scheduled reload). Benign: the other rebuild will finish the job.
	ErrIngestLocked = errors.New("ingest lock held by another process")

	// ErrNoDocuments aborts a rebuild that found nothing to index, so an
	// empty generation can never replace a populated one.
	ErrNoDocuments = errors.New("no documents to index")
)

// ingestExtensions are the file types picked up from the data directory.
var ingestExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// document is one source document prior to chunking.
type document struct {
	source  string
	content string
}

// IngestResult summarizes a completed rebuild.
type IngestResult struct {
	Generation int64
	Documents  int
	Chunks     int
	Duration   time.Duration
}

// ChunkWriter is the subset of Store the ingestor needs.
type ChunkWriter interface {
	CreateGeneration(ctx context.Context) (int64, error)
	InsertChunk(ctx context.Context, c Chunk) error
	CompleteGeneration(ctx context.Context, id int64) error
}

// Ingestor rebuilds the document index: it loads the corpus (local files
// plus optional remote HTML pages), chunks it, embeds every chunk, and
// persists a fresh generation. It never touches rows of earlier
// generations, so queries against the live index proceed untouched while
// a rebuild runs.
type Ingestor struct {
	store    ChunkWriter
	embedder Embedder
	dataDir  string
	urls     []string
	lock     *flock.Flock
	logger   *slog.Logger
}

// NewIngestor creates an ingestor. lockPath guards against concurrent
// rebuilds from separate processes; in-process exclusion is the reload
// coordinator's job.
func NewIngestor(store ChunkWriter, embedder Embedder, dataDir string, urls []string, lockPath string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:    store,
		embedder: embedder,
		dataDir:  dataDir,
		urls:     urls,
		lock:     flock.New(lockPath),
		logger:   logger,
	}
}

// Rebuild runs one full fetch → chunk → embed → persist cycle and returns
// the new generation. The caller publishes the generation to the pipeline;
// Rebuild itself never changes what queries see.
func (in *Ingestor) Rebuild(ctx context.Context) (IngestResult, error) {
	start := time.Now()

	locked, err := in.lock.TryLock()
	if err != nil {
		return IngestResult{}, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return IngestResult{}, ErrIngestLocked
	}
	defer func() {
		if err := in.lock.Unlock(); err != nil {
			in.logger.Warn("releasing ingest lock", "error", err)
		}
	}()

	docs, err := in.loadDocuments(ctx)
	if err != nil {
		return IngestResult{}, err
	}
	if len(docs) == 0 {
		return IngestResult{}, ErrNoDocuments
	}

	generation, err := in.store.CreateGeneration(ctx)
	if err != nil {
		return IngestResult{}, err
	}

	totalChunks := 0
	for _, doc := range docs {
		n, err := in.indexDocument(ctx, generation, doc)
		if err != nil {
			return IngestResult{}, fmt.Errorf("indexing %q: %w", doc.source, err)
		}
		totalChunks += n
	}

	if err := in.store.CompleteGeneration(ctx, generation); err != nil {
		return IngestResult{}, err
	}

	return IngestResult{
		Generation: generation,
		Documents:  len(docs),
		Chunks:     totalChunks,
		Duration:   time.Since(start),
	}, nil
}

// indexDocument chunks, embeds, and persists one document. Returns the
// number of chunks written.
func (in *Ingestor) indexDocument(ctx context.Context, generation int64, doc document) (int, error) {
	chunks := SplitText(doc.content, ChunkSize, ChunkOverlap)
	sourceHash := sha256.Sum256([]byte(doc.source))
	sourceID := hex.EncodeToString(sourceHash[:8])

	for i, content := range chunks {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("rebuild cancelled: %w", err)
		}

		vec, err := in.embedder.Embed(ctx, content)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d: %w", i, err)
		}

		err = in.store.InsertChunk(ctx, Chunk{
			ID:         fmt.Sprintf("%d:%s:%d", generation, sourceID, i),
			Generation: generation,
			Source:     doc.source,
			Index:      i,
			Content:    content,
			Embedding:  vec,
		})
		if err != nil {
			return 0, err
		}
	}

	in.logger.Debug("document indexed", "source", doc.source, "chunks", len(chunks))
	return len(chunks), nil
}

// loadDocuments gathers the corpus from the data directory and the
// configured URLs. A missing data directory is not an error as long as
// URLs are configured; an unreachable URL is logged and skipped so one
// dead source cannot block refreshing the rest.
func (in *Ingestor) loadDocuments(ctx context.Context) ([]document, error) {
	var docs []document

	if in.dataDir != "" {
		fileDocs, err := in.loadDirectory()
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}

	for _, u := range in.urls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rebuild cancelled: %w", err)
		}
		article, err := readability.FromURL(u, fetchTimeoutSeconds*time.Second)
		if err != nil {
			in.logger.Warn("skipping unreachable source", "url", u, "error", err)
			continue
		}
		content := strings.TrimSpace(article.TextContent)
		if content == "" {
			in.logger.Warn("skipping empty source", "url", u)
			continue
		}
		docs = append(docs, document{source: u, content: content})
	}

	return docs, nil
}

func (in *Ingestor) loadDirectory() ([]document, error) {
	var docs []document

	err := filepath.WalkDir(in.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if content := strings.TrimSpace(string(data)); content != "" {
			docs = append(docs, document{source: path, content: content})
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			in.logger.Warn("data directory missing, skipping local corpus", "dir", in.dataDir)
			return nil, nil
		}
		return nil, fmt.Errorf("walking data directory: %w", err)
	}
	return docs, nil
}
