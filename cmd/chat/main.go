package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/docchat/docchat/internal/ai"
	"github.com/docchat/docchat/internal/chat"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/retriever"
	"github.com/docchat/docchat/internal/store"
	"github.com/docchat/docchat/internal/tui"
)

// aiConfig maps the loaded configuration onto one provider's client config.
func aiConfig(cfg config.Specification, provider, apiKey string) (*ai.ClientConfig, error) {
	var p ai.Provider
	switch strings.ToLower(provider) {
	case "openai":
		p = ai.ProviderOpenAI
	case "gemini", "google":
		p = ai.ProviderGemini
	case "anthropic", "claude":
		p = ai.ProviderAnthropic
	case "stub":
		p = ai.ProviderStub
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	return &ai.ClientConfig{
		APIKey:      apiKey,
		EmbedModel:  cfg.EmbedModel,
		AnswerModel: cfg.AnswerModel,
		Dim:         cfg.Dim,
		ProjectID:   cfg.ProjectID,
		Location:    cfg.Location,
		Provider:    p,
		Temperature: cfg.Temperature,
	}, nil
}

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docchat", pflag.ExitOnError)
	ingestPath := fs.String("ingest", "", "file or directory to ingest before starting the chat")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	embedCfg, err := aiConfig(cfg, cfg.Provider, cfg.APIKey)
	if err != nil {
		log.Fatalf("Failed to configure embedding provider: %v", err)
	}
	embedder, err := ai.NewEmbedder(ctx, embedCfg)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	answerProvider := cfg.AnswerProvider
	if answerProvider == "" {
		answerProvider = cfg.Provider
	}
	answerKey := cfg.AnswerAPIKey
	if answerKey == "" {
		answerKey = cfg.APIKey
	}
	genCfg, err := aiConfig(cfg, answerProvider, answerKey)
	if err != nil {
		log.Fatalf("Failed to configure answer provider: %v", err)
	}
	generator, err := ai.NewGenerator(ctx, genCfg)
	if err != nil {
		log.Fatalf("Failed to create answer client: %v", err)
	}

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, embedder.Dim()); err != nil {
		log.Fatal(err)
	}

	if *ingestPath != "" {
		svc := ingest.New(st, embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedRPS)
		info, err := os.Stat(*ingestPath)
		if err != nil {
			log.Fatal(err)
		}
		if info.IsDir() {
			if err := svc.IngestDir(ctx, *ingestPath); err != nil {
				log.Fatalf("ingest failed: %v", err)
			}
		} else {
			if _, err := svc.IngestFile(ctx, *ingestPath); err != nil {
				log.Fatalf("ingest failed: %v", err)
			}
		}
	}

	retrieverSvc := retriever.NewService(embedder, st, cfg.Hybrid)
	pipeline := chat.NewPipeline(retrieverSvc, generator, cfg.TopK, cfg.Window)

	// Structured logs would tear up the terminal while the program owns it.
	zerolog.SetGlobalLevel(zerolog.Disabled)

	m := tui.New(pipeline)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
