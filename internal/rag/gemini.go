package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// Gemini adapts the google.golang.org/genai client to the two operations
// the pipeline needs: embedding text and generating an answer.
//
// Safe for concurrent use; the underlying client is.
type Gemini struct {
	client      *genai.Client
	embedModel  string
	genModel    string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger
}

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey        string
	EmbedderModel string
	ModelName     string
	Temperature   float32
	MaxTokens     int32
	Logger        *slog.Logger
}

// NewGemini creates the adapter and its underlying API client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		client:      client,
		embedModel:  cfg.EmbedderModel,
		genModel:    cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}, nil
}

// Embed generates a vector embedding for the given text, truncated to
// VectorDimension dimensions to match the pgvector schema.
func (g *Gemini) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Values), nil
}

// Generate produces the model's answer for a fully composed prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	temp := g.temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.genModel,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: g.maxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}
