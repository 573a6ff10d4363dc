package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/dormchat/internal/log"
)

type stubEmbedder struct {
	vec pgvector.Vector
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (pgvector.Vector, error) {
	return s.vec, s.err
}

type stubGenerator struct {
	answer string
	err    error

	lastPrompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.answer, s.err
}

type stubSearcher struct {
	chunks []Chunk
	err    error

	lastGeneration int64
}

func (s *stubSearcher) Search(_ context.Context, generation int64, _ pgvector.Vector, _ int) ([]Chunk, error) {
	s.lastGeneration = generation
	return s.chunks, s.err
}

func TestPipeline_NotReady(t *testing.T) {
	p := NewPipeline(&stubEmbedder{}, &stubGenerator{}, &stubSearcher{}, log.NewNop())

	if p.Ready() {
		t.Error("Ready() before Publish = true, want false")
	}
	if _, err := p.Answer(context.Background(), "anything"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Answer() error = %v, want ErrNotReady", err)
	}
}

func TestPipeline_Publish(t *testing.T) {
	p := NewPipeline(&stubEmbedder{}, &stubGenerator{}, &stubSearcher{}, log.NewNop())

	p.Publish(7)
	if !p.Ready() {
		t.Error("Ready() after Publish = false, want true")
	}
	if got := p.Generation(); got != 7 {
		t.Errorf("Generation() = %d, want 7", got)
	}

	// A later publish replaces the live generation for new queries.
	p.Publish(8)
	if got := p.Generation(); got != 8 {
		t.Errorf("Generation() after second Publish = %d, want 8", got)
	}
}

func TestPipeline_Answer(t *testing.T) {
	searcher := &stubSearcher{chunks: []Chunk{
		{Content: "Quiet hours run\nfrom 23:00 to 07:00."},
		{Content: "The common room closes at midnight."},
	}}
	generator := &stubGenerator{answer: "Quiet hours run from 23:00 to 07:00."}
	p := NewPipeline(&stubEmbedder{}, generator, searcher, log.NewNop())
	p.Publish(3)

	got, err := p.Answer(context.Background(), "when are quiet hours?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got != generator.answer {
		t.Errorf("Answer() = %q, want %q", got, generator.answer)
	}

	if searcher.lastGeneration != 3 {
		t.Errorf("searched generation = %d, want 3", searcher.lastGeneration)
	}
	// Retrieved chunks land in the prompt with newlines collapsed.
	if !strings.Contains(generator.lastPrompt, "Quiet hours run from 23:00 to 07:00.") {
		t.Errorf("prompt missing collapsed chunk content:\n%s", generator.lastPrompt)
	}
	if !strings.Contains(generator.lastPrompt, "when are quiet hours?") {
		t.Error("prompt missing the question")
	}
}

func TestPipeline_AnswerErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		embedder  Embedder
		generator Generator
		searcher  Searcher
	}{
		{
			name:      "embedding fails",
			embedder:  &stubEmbedder{err: boom},
			generator: &stubGenerator{},
			searcher:  &stubSearcher{},
		},
		{
			name:      "retrieval fails",
			embedder:  &stubEmbedder{},
			generator: &stubGenerator{},
			searcher:  &stubSearcher{err: boom},
		},
		{
			name:      "generation fails",
			embedder:  &stubEmbedder{},
			generator: &stubGenerator{err: boom},
			searcher:  &stubSearcher{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.embedder, tt.generator, tt.searcher, log.NewNop())
			p.Publish(1)

			if _, err := p.Answer(context.Background(), "q"); !errors.Is(err, boom) {
				t.Errorf("Answer() error = %v, want wrapped %v", err, boom)
			}
		})
	}
}

func TestPipeline_BlankModelOutput(t *testing.T) {
	p := NewPipeline(&stubEmbedder{}, &stubGenerator{answer: "  \n "}, &stubSearcher{}, log.NewNop())
	p.Publish(1)

	got, err := p.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.Contains(got, "could not produce a valid answer") {
		t.Errorf("Answer() = %q, want the fallback reply", got)
	}
}
