package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/docchat/docchat/internal/ai"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/store"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docchat-ingest", pflag.ExitOnError)
	path := fs.String("path", "", "file or directory to ingest")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	if *path == "" {
		if args := fs.Args(); len(args) > 0 {
			*path = args[0]
		}
	}
	if *path == "" {
		log.Fatal("no input: pass --path or a positional file/directory argument")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	provider := strings.ToLower(cfg.Provider)
	log.Printf("using provider: %s", provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			Provider:   ai.ProviderOpenAI,
		}
	case "gemini", "google":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderGemini,
		}
	case "stub":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}
	default:
		log.Fatalf("unsupported provider: %s", provider)
	}

	ctx := context.Background()

	embedder, err := ai.NewEmbedder(ctx, clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if embedder.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, embedder.Dim()); err != nil {
		log.Fatal(err)
	}

	svc := ingest.New(st, embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedRPS)

	info, err := os.Stat(*path)
	if err != nil {
		log.Fatal(err)
	}
	if info.IsDir() {
		if err := svc.IngestDir(ctx, *path); err != nil {
			log.Fatal(err)
		}
		return
	}

	doc, err := svc.IngestFile(ctx, *path)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("ingested %s: %d chunks (document %s)\n", doc.Filename, doc.ChunkCount, doc.ID)
}
