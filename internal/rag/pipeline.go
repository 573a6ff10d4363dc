package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pgvector/pgvector-go"
)

// ErrNotReady indicates no index generation has been published yet.
var ErrNotReady = errors.New("no index published")

// Embedder turns text into a query vector. Satisfied by *Gemini.
type Embedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

// Generator produces an answer for a composed prompt. Satisfied by *Gemini.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher retrieves the nearest chunks of a generation. Satisfied by *Store.
type Searcher interface {
	Search(ctx context.Context, generation int64, query pgvector.Vector, k int) ([]Chunk, error)
}

// Pipeline answers questions by retrieving context from the live index
// generation and prompting the model with it.
//
// The live generation ID is held in an atomic so Publish swaps the entire
// index for all subsequent queries in one step: a query in flight keeps
// reading the generation it started with, and no reader ever observes a
// half-built generation. Reads are never blocked by a rebuild.
type Pipeline struct {
	embedder  Embedder
	generator Generator
	searcher  Searcher
	live      atomic.Int64
	logger    *slog.Logger
}

// NewPipeline creates a query pipeline. It starts unpublished; call
// Publish once a complete generation exists.
func NewPipeline(embedder Embedder, generator Generator, searcher Searcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:  embedder,
		generator: generator,
		searcher:  searcher,
		logger:    logger,
	}
}

// Ready reports whether an index generation has been published.
func (p *Pipeline) Ready() bool {
	return p.live.Load() != 0
}

// Generation returns the currently published generation ID (0 = none).
func (p *Pipeline) Generation() int64 {
	return p.live.Load()
}

// Publish atomically swaps the live index to the given generation.
// Single-writer at swap time: only the reload path calls this, and only
// after the generation is completely written.
func (p *Pipeline) Publish(generation int64) {
	old := p.live.Swap(generation)
	p.logger.Info("index generation published", "generation", generation, "previous", old)
}

// Answer runs retrieve → augment → generate for one question.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	generation := p.live.Load()
	if generation == 0 {
		return "", ErrNotReady
	}

	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embedding question: %w", err)
	}

	chunks, err := p.searcher.Search(ctx, generation, vec, RetrievalK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	prompt := buildPrompt(chunks, question, time.Now())

	p.logger.Debug("querying model",
		"generation", generation,
		"chunks", len(chunks),
		"question_length", len(question),
	)

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	if strings.TrimSpace(answer) == "" {
		return "Sorry, the model could not produce a valid answer from the available context. Please try again or rephrase your question.", nil
	}
	return answer, nil
}
