package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"strings"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Generator produces an answer from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderStub      Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey      string
	EmbedModel  string
	AnswerModel string
	Dim         int
	ProjectID   string
	Provider    Provider
	Location    string
	Temperature float64
}

// NewEmbedder creates the embedding half of a provider based on configuration.
func NewEmbedder(ctx context.Context, config *ClientConfig) (Embedder, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderAnthropic:
		return nil, errors.New("anthropic has no embedding API; use openai or gemini for embeddings")
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// NewGenerator creates the answering half of a provider based on configuration.
func NewGenerator(ctx context.Context, config *ClientConfig) (Generator, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderAnthropic:
		return NewAnthropicClient(config), nil
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a stub implementation of both interfaces for testing
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 8
	}
	return &StubClient{dim: dim}
}

// Embed returns a pseudo-random vector seeded by the text, so the same
// input always lands on the same point and stays its own nearest neighbor.
func (s *StubClient) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	v := make([]float32, s.dim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v, nil
}

// Generate returns a canned answer, citing the first context block when one
// is present so the citation path can be exercised without a real model.
func (s *StubClient) Generate(_ context.Context, _ string, user string) (string, error) {
	if strings.Contains(user, "[1]") {
		return "Based on the provided context, see [1].", nil
	}
	return "I don't know; no relevant context was provided.", nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
