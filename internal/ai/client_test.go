package ai

import (
	"context"
	"strings"
	"testing"
)

// Test Provider constants
func TestProviderConstants(t *testing.T) {
	tests := []struct {
		provider Provider
		expected string
	}{
		{ProviderOpenAI, "openai"},
		{ProviderGemini, "gemini"},
		{ProviderAnthropic, "anthropic"},
		{ProviderStub, "stub"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if string(tt.provider) != tt.expected {
				t.Errorf("Provider constant mismatch. Expected: %s, Got: %s", tt.expected, string(tt.provider))
			}
		})
	}
}

// Test ClientConfig struct
func TestClientConfig(t *testing.T) {
	config := &ClientConfig{
		APIKey:      "test-api-key",
		EmbedModel:  "test-embed-model",
		AnswerModel: "test-answer-model",
		Dim:         512,
		ProjectID:   "test-project",
		Provider:    ProviderOpenAI,
		Location:    "us-central1",
		Temperature: 0.5,
	}

	if config.APIKey != "test-api-key" {
		t.Errorf("Expected APIKey 'test-api-key', got '%s'", config.APIKey)
	}
	if config.EmbedModel != "test-embed-model" {
		t.Errorf("Expected EmbedModel 'test-embed-model', got '%s'", config.EmbedModel)
	}
	if config.AnswerModel != "test-answer-model" {
		t.Errorf("Expected AnswerModel 'test-answer-model', got '%s'", config.AnswerModel)
	}
	if config.Dim != 512 {
		t.Errorf("Expected Dim 512, got %d", config.Dim)
	}
	if config.ProjectID != "test-project" {
		t.Errorf("Expected ProjectID 'test-project', got '%s'", config.ProjectID)
	}
	if config.Provider != ProviderOpenAI {
		t.Errorf("Expected Provider 'openai', got '%s'", config.Provider)
	}
	if config.Location != "us-central1" {
		t.Errorf("Expected Location 'us-central1', got '%s'", config.Location)
	}
	if config.Temperature != 0.5 {
		t.Errorf("Expected Temperature 0.5, got %v", config.Temperature)
	}
}

// Test NewEmbedder function
func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name        string
		config      *ClientConfig
		expectError bool
		errorMsg    string
		clientType  string
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
			errorMsg:    "client config is required",
		},
		{
			name: "openai provider",
			config: &ClientConfig{
				Provider: ProviderOpenAI,
				APIKey:   "test-key",
				Dim:      512,
			},
			expectError: false,
			clientType:  "*ai.OpenAIClient",
		},
		{
			name: "gemini provider",
			config: &ClientConfig{
				Provider: ProviderGemini,
				APIKey:   "test-key",
				Dim:      768,
			},
			expectError: false,
			clientType:  "*ai.GeminiClient",
		},
		{
			name: "anthropic provider cannot embed",
			config: &ClientConfig{
				Provider: ProviderAnthropic,
				APIKey:   "test-key",
			},
			expectError: true,
			errorMsg:    "anthropic has no embedding API",
		},
		{
			name: "stub provider",
			config: &ClientConfig{
				Provider: ProviderStub,
				Dim:      256,
			},
			expectError: false,
			clientType:  "*ai.StubClient",
		},
		{
			name: "unsupported provider",
			config: &ClientConfig{
				Provider: Provider("unsupported"),
				Dim:      512,
			},
			expectError: true,
			errorMsg:    "unsupported provider: unsupported",
		},
		{
			name: "empty provider",
			config: &ClientConfig{
				Provider: Provider(""),
				Dim:      512,
			},
			expectError: true,
			errorMsg:    "unsupported provider: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewEmbedder(context.Background(), tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
				if client != nil {
					t.Errorf("Expected nil client when error occurs, got %v", client)
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				if client == nil {
					t.Errorf("Expected client instance, got nil")
				}
				// Check client type
				clientTypeName := ""
				switch client.(type) {
				case *OpenAIClient:
					clientTypeName = "*ai.OpenAIClient"
				case *GeminiClient:
					clientTypeName = "*ai.GeminiClient"
				case *StubClient:
					clientTypeName = "*ai.StubClient"
				default:
					clientTypeName = "unknown"
				}
				if clientTypeName != tt.clientType {
					t.Errorf("Expected client type '%s', got '%s'", tt.clientType, clientTypeName)
				}
			}
		})
	}
}

// Test NewGenerator function
func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ClientConfig
		expectError bool
		errorMsg    string
		clientType  string
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
			errorMsg:    "client config is required",
		},
		{
			name: "openai provider",
			config: &ClientConfig{
				Provider: ProviderOpenAI,
				APIKey:   "test-key",
			},
			expectError: false,
			clientType:  "*ai.OpenAIClient",
		},
		{
			name: "gemini provider",
			config: &ClientConfig{
				Provider: ProviderGemini,
				APIKey:   "test-key",
			},
			expectError: false,
			clientType:  "*ai.GeminiClient",
		},
		{
			name: "anthropic provider",
			config: &ClientConfig{
				Provider: ProviderAnthropic,
				APIKey:   "test-key",
			},
			expectError: false,
			clientType:  "*ai.AnthropicClient",
		},
		{
			name: "stub provider",
			config: &ClientConfig{
				Provider: ProviderStub,
			},
			expectError: false,
			clientType:  "*ai.StubClient",
		},
		{
			name: "unsupported provider",
			config: &ClientConfig{
				Provider: Provider("nope"),
			},
			expectError: true,
			errorMsg:    "unsupported provider: nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewGenerator(context.Background(), tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			clientTypeName := ""
			switch client.(type) {
			case *OpenAIClient:
				clientTypeName = "*ai.OpenAIClient"
			case *GeminiClient:
				clientTypeName = "*ai.GeminiClient"
			case *AnthropicClient:
				clientTypeName = "*ai.AnthropicClient"
			case *StubClient:
				clientTypeName = "*ai.StubClient"
			default:
				clientTypeName = "unknown"
			}
			if clientTypeName != tt.clientType {
				t.Errorf("Expected client type '%s', got '%s'", tt.clientType, clientTypeName)
			}
		})
	}
}

// Test StubClient creation
func TestNewStubClient(t *testing.T) {
	tests := []struct {
		name        string
		dim         int
		expectedDim int
	}{
		{"default dimension", 512, 512},
		{"small dimension", 128, 128},
		{"large dimension", 1536, 1536},
		{"zero dimension clamps", 0, 8},
		{"negative dimension clamps", -1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewStubClient(tt.dim)

			// NewStubClient always returns a valid instance
			if client.dim != tt.expectedDim {
				t.Errorf("Expected dimension %d, got %d", tt.expectedDim, client.dim)
			}
			if client.Dim() != tt.expectedDim {
				t.Errorf("Expected Dim() to return %d, got %d", tt.expectedDim, client.Dim())
			}
		})
	}
}

// Test StubClient Embed method
func TestStubClient_Embed(t *testing.T) {
	tests := []struct {
		name string
		dim  int
		text string
	}{
		{"empty text", 512, ""},
		{"short text", 256, "hello"},
		{"long text", 768, "This is a longer text that should still return a valid embedding vector"},
		{"multiline text", 384, "Line 1\nLine 2\nLine 3"},
		{"special characters", 128, "Hello! @#$%^&*()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewStubClient(tt.dim)
			ctx := context.Background()
			embedding, err := client.Embed(ctx, tt.text)

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if len(embedding) != tt.dim {
				t.Errorf("Expected embedding length %d, got %d", tt.dim, len(embedding))
			}
			// Values stay in [-1, 1)
			for i, val := range embedding {
				if val < -1 || val >= 1 {
					t.Errorf("Expected value in [-1, 1), got %f at index %d", val, i)
				}
			}
		})
	}
}

// Test that stub embeddings are deterministic per input
func TestStubClient_EmbedDeterminism(t *testing.T) {
	client := NewStubClient(64)
	ctx := context.Background()

	first, err := client.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := client.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Expected deterministic embedding, mismatch at index %d: %f vs %f", i, first[i], second[i])
		}
	}

	// Case and surrounding whitespace are normalized away
	normalized, err := client.Embed(ctx, "  The Quick Brown Fox  ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range first {
		if first[i] != normalized[i] {
			t.Fatalf("Expected normalized input to embed identically, mismatch at index %d", i)
		}
	}

	// Different inputs should land on different points
	other, err := client.Embed(ctx, "a completely different sentence")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	same := true
	for i := range first {
		if first[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Expected different inputs to produce different embeddings")
	}
}

// Test StubClient Generate method
func TestStubClient_Generate(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		expected string
	}{
		{
			name:     "prompt with context blocks",
			user:     "Context:\n[1] Some chunk text\n\nQuestion: what is this?",
			expected: "Based on the provided context, see [1].",
		},
		{
			name:     "prompt without context blocks",
			user:     "Question with no context at all",
			expected: "I don't know; no relevant context was provided.",
		},
		{
			name:     "empty prompt",
			user:     "",
			expected: "I don't know; no relevant context was provided.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewStubClient(512)
			ctx := context.Background()

			answer, err := client.Generate(ctx, "system prompt", tt.user)

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if answer != tt.expected {
				t.Errorf("Expected answer '%s', got '%s'", tt.expected, answer)
			}
		})
	}
}

// Test interface compliance across providers
func TestInterfaceCompliance(t *testing.T) {
	var _ Embedder = &StubClient{}
	var _ Generator = &StubClient{}
	var _ Embedder = &OpenAIClient{}
	var _ Generator = &OpenAIClient{}
	var _ Embedder = &GeminiClient{}
	var _ Generator = &GeminiClient{}
	var _ Generator = &AnthropicClient{}

	client := NewStubClient(256)

	// Test Embed method
	embedding, err := client.Embed(context.Background(), "test")
	if err != nil {
		t.Errorf("Expected no error from Embed, got: %v", err)
	}
	if len(embedding) != 256 {
		t.Errorf("Expected embedding length 256, got %d", len(embedding))
	}

	// Test Generate method
	answer, err := client.Generate(context.Background(), "system", "user")
	if err != nil {
		t.Errorf("Expected no error from Generate, got: %v", err)
	}
	if answer == "" {
		t.Errorf("Expected non-empty answer")
	}

	// Test Dim method
	if client.Dim() != 256 {
		t.Errorf("Expected Dim() to return 256, got %d", client.Dim())
	}
}

// Benchmark tests
func BenchmarkNewStubClient(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewStubClient(512)
	}
}

func BenchmarkStubClient_Embed(b *testing.B) {
	client := NewStubClient(512)
	ctx := context.Background()
	text := "This is a test text for embedding benchmark"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = client.Embed(ctx, text)
	}
}

func BenchmarkNewEmbedder(b *testing.B) {
	config := &ClientConfig{
		Provider: ProviderStub,
		Dim:      512,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewEmbedder(context.Background(), config)
	}
}

// Test edge cases and error conditions
func TestEdgeCases(t *testing.T) {
	t.Run("StubClient with very large dimension", func(t *testing.T) {
		client := NewStubClient(100000)
		embedding, err := client.Embed(context.Background(), "test")
		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if len(embedding) != 100000 {
			t.Errorf("Expected embedding length 100000, got %d", len(embedding))
		}
	})

	t.Run("Provider type conversion", func(t *testing.T) {
		provider := Provider("custom")
		if string(provider) != "custom" {
			t.Errorf("Expected string conversion 'custom', got '%s'", string(provider))
		}
	})
}

// Test concurrent access to StubClient
func TestStubClientConcurrency(t *testing.T) {
	client := NewStubClient(512)
	ctx := context.Background()

	// Test concurrent Embed calls
	t.Run("concurrent embeds", func(t *testing.T) {
		done := make(chan bool, 10)

		for i := 0; i < 10; i++ {
			go func(id int) {
				defer func() { done <- true }()

				embedding, err := client.Embed(ctx, "test text")
				if err != nil {
					t.Errorf("Goroutine %d: Expected no error, got: %v", id, err)
				}
				if len(embedding) != 512 {
					t.Errorf("Goroutine %d: Expected embedding length 512, got %d", id, len(embedding))
				}
			}(i)
		}

		// Wait for all goroutines to complete
		for i := 0; i < 10; i++ {
			<-done
		}
	})

	// Test concurrent Generate calls
	t.Run("concurrent generates", func(t *testing.T) {
		done := make(chan bool, 10)

		for i := 0; i < 10; i++ {
			go func(id int) {
				defer func() { done <- true }()

				answer, err := client.Generate(ctx, "system", "user prompt [1]")
				if err != nil {
					t.Errorf("Goroutine %d: Expected no error, got: %v", id, err)
				}
				if answer != "Based on the provided context, see [1]." {
					t.Errorf("Goroutine %d: Unexpected answer '%s'", id, answer)
				}
			}(i)
		}

		// Wait for all goroutines to complete
		for i := 0; i < 10; i++ {
			<-done
		}
	})
}
