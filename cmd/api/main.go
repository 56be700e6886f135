package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docchat/docchat/internal/ai"
	"github.com/docchat/docchat/internal/auth"
	"github.com/docchat/docchat/internal/chat"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/retriever"
	"github.com/docchat/docchat/internal/store"
	"github.com/docchat/docchat/pkg/models"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"
)

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string                  `json:"session_id"`
	Answer    string                  `json:"answer"`
	Citations []models.Citation       `json:"citations"`
	Retrieval []models.RetrievedChunk `json:"retrieval"`
}

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

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbedding), errors.Is(err, models.ErrVectorStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", 500)
	}
}

func main() {
	_ = godotenv.Load()

	// Create flagset for configuration
	fs := pflag.NewFlagSet("docchat-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting docchat api")

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

	// Initialize auth with configuration
	auth.InitializeAuth(cfg.Auth.JwtSecret, cfg.Auth.Password, cfg.Auth.Enabled)

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	// Use the embedding client's dimension for database migration
	dim := embedder.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", cfg.EmbedModel).Msg("embedding client initialized")

	if err := st.Migrate(ctx, dim); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ingestSvc := ingest.New(st, embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedRPS)
	retrieverSvc := retriever.NewService(embedder, st, cfg.Hybrid)
	pipeline := chat.NewPipeline(retrieverSvc, generator, cfg.TopK, cfg.Window)
	sessions := chat.NewRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	// Auth status endpoint (always available)
	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"enabled": auth.IsAuthEnabled()})
	})

	// Authentication endpoints (only if auth is enabled)
	if auth.IsAuthEnabled() {
		logger.Info().Msg("authentication is enabled")

		mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "POST" {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			var req struct {
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}

			token, err := auth.Login(req.Password)
			if err != nil {
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     "auth_token",
				Value:    token,
				Path:     "/",
				MaxAge:   86400, // 24 hours
				HttpOnly: true,
				Secure:   strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"),
				SameSite: http.SameSiteLaxMode,
			})

			writeJSON(w, auth.AuthResponse{User: auth.User{Name: "owner"}, Token: token})
		})

		mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "POST" {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			// Clear cookie
			http.SetCookie(w, &http.Cookie{
				Name:   "auth_token",
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			w.WriteHeader(http.StatusOK)
		})
	} else {
		logger.Info().Msg("authentication is disabled - running in open mode")
	}

	mux.HandleFunc("/documents", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			docs, err := st.ListDocuments(ctx)
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			if docs == nil {
				docs = []models.Document{}
			}
			writeJSON(w, docs)

		case "POST":
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				http.Error(w, "Invalid multipart form", http.StatusBadRequest)
				return
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "Missing file field", http.StatusBadRequest)
				return
			}
			defer func() {
				if err := file.Close(); err != nil {
					logger.Error().Err(err).Msg("failed to close upload")
				}
			}()

			data, err := io.ReadAll(file)
			if err != nil {
				http.Error(w, "Failed to read upload", http.StatusBadRequest)
				return
			}
			if len(data) == 0 {
				http.Error(w, "Empty file", http.StatusBadRequest)
				return
			}

			// Embedding every chunk of a large document takes a while.
			ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
			defer cancel()

			doc, err := ingestSvc.IngestBytes(ctx, header.Filename, data)
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, doc)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/documents/", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/documents/"), "/")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		switch r.Method {
		case "GET":
			doc, ok, err := st.GetDocument(ctx, id)
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, doc)

		case "DELETE":
			deleted, err := st.DeleteDocument(ctx, id)
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			if !deleted {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/search", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}
		k := cfg.TopK
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}
		window := cfg.Window
		if v := r.URL.Query().Get("w"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				window = n
			}
		}
		opt := store.QueryOpts{DocumentID: r.URL.Query().Get("doc")}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		res, err := retrieverSvc.Retrieve(ctx, q, k, window, opt)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		// full payload (but never an empty body)
		w.Header().Set("Content-Type", "application/json")
		if res == nil {
			if _, err := w.Write([]byte("[]")); err != nil {
				http.Error(w, "Failed to write response", http.StatusInternalServerError)
				return
			}
		} else {
			for i := range res {
				if res[i].Score != nil && (math.IsNaN(*res[i].Score) || math.IsInf(*res[i].Score, 0)) {
					res[i].Score = nil
				}
			}
			if err := json.NewEncoder(w).Encode(res); err != nil {
				logger.Error().Err(err).Msg("failed to encode response")
				// fallback to an empty JSON array if encoding or writing fails
				_, _ = w.Write([]byte("[]"))
			}
		}

		hlog.FromRequest(r).Info().Str("path", "/search").Str("q", q).Int("k", k).Int("w", window).Dur("dur", time.Since(start)).Msg("served")
	}))

	mux.HandleFunc("/chat", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		sess := sessions.GetOrCreate(req.SessionID)

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()
		answer, err := pipeline.Ask(ctx, sess, req.Message)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		writeJSON(w, chatResponse{
			SessionID: sess.ID,
			Answer:    answer.Text,
			Citations: answer.Citations,
			Retrieval: answer.Retrieved,
		})
	}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
