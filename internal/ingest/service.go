package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/docchat/docchat/internal/ai"
	"github.com/docchat/docchat/internal/extract"
	"github.com/docchat/docchat/internal/store"
	"github.com/docchat/docchat/pkg/models"
	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Service ingests documents: extract text, chunk it, embed every chunk and
// store the result.
type Service struct {
	Store        store.DocumentStore
	Embedder     ai.Embedder
	ChunkSize    int
	ChunkOverlap int
	Limiter      *rate.Limiter
	Walker       FileSystemWalker
	FileReader   FileReader
}

// New creates a new ingest Service. embedRPS caps embedding calls per second.
func New(s store.DocumentStore, embedder ai.Embedder, chunkSize, chunkOverlap, embedRPS int) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if embedRPS <= 0 {
		embedRPS = 8
	}
	return &Service{
		Store:        s,
		Embedder:     embedder,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Limiter:      rate.NewLimiter(rate.Limit(embedRPS), embedRPS),
		Walker:       &DefaultFileSystemWalker{},
		FileReader:   &DefaultFileReader{},
	}
}

// chunkID returns the deterministic id for a document's chunk.
func chunkID(documentID string, seq int) string {
	h := sha1.Sum([]byte(documentID + "#" + fmt.Sprintf("%d", seq)))
	return hex.EncodeToString(h[:])
}

// IngestBytes runs the full pipeline for one document: extract text, chunk,
// embed every chunk, then replace any previous document with the same
// filename. Nothing is written unless every chunk embeds successfully.
func (s *Service) IngestBytes(ctx context.Context, filename string, data []byte) (models.Document, error) {
	base := filepath.Base(filename)

	format, err := extract.DetectFormat(base)
	if err != nil {
		return models.Document{}, err
	}
	text, err := extract.Text(format, data)
	if err != nil {
		return models.Document{}, err
	}

	pieces := Chunk(text, s.ChunkSize, s.ChunkOverlap)
	if len(pieces) == 0 {
		return models.Document{}, fmt.Errorf("%w: document %q has no extractable text", models.ErrInvalidInput, base)
	}

	doc := models.Document{
		ID:       uuid.NewString(),
		Filename: base,
		Format:   format,
	}

	vecs := make([][]float32, len(pieces))
	for i, p := range pieces {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return models.Document{}, err
			}
		}
		vec, err := s.Embedder.Embed(ctx, p.Content)
		if err != nil {
			return models.Document{}, fmt.Errorf("%w: chunk %d of %q: %v", models.ErrEmbedding, i, base, err)
		}
		vecs[i] = vec
	}

	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.Chunk{
			ID:         chunkID(doc.ID, i),
			DocumentID: doc.ID,
			Seq:        i,
			Content:    p.Content,
			TokenCount: p.TokenCount,
		}
	}

	if err := s.Store.ReplaceDocumentByFilename(ctx, doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: replace document: %v", models.ErrVectorStore, err)
	}
	if err := s.Store.InsertChunks(ctx, chunks, vecs); err != nil {
		return models.Document{}, fmt.Errorf("%w: insert chunks: %v", models.ErrVectorStore, err)
	}

	doc.ChunkCount = len(chunks)
	log.Info().Str("filename", base).
		Str("format", format).
		Int("chunks", len(chunks)).
		Msg("document ingested")
	return doc, nil
}

// IngestFile ingests a single document from disk.
func (s *Service) IngestFile(ctx context.Context, path string) (models.Document, error) {
	b, err := s.FileReader.ReadFile(path)
	if err != nil {
		return models.Document{}, err
	}
	return s.IngestBytes(ctx, path, b)
}

// IngestDir walks root and ingests every supported document under it,
// fanning files out to a small worker pool.
func (s *Service) IngestDir(ctx context.Context, root string) error {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8 // Cap at 8 to avoid overwhelming the AI API
	}

	log.Info().Int("workers", numWorkers).Str("root", root).Msg("starting concurrent ingest")

	workChan := make(chan string, numWorkers*2) // Buffer to keep workers busy
	errorChan := make(chan error, 1)
	var ingested atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Debug().Int("worker", workerID).Msg("worker started")

			for path := range workChan {
				if _, err := s.IngestFile(ctx, path); err != nil {
					select {
					case errorChan <- err:
					default:
						// Error channel is full, log the error
						log.Error().Err(err).Str("path", path).Msg("worker ingest error")
					}
					continue
				}
				ingested.Add(1)
			}

			log.Debug().Int("worker", workerID).Msg("worker finished")
		}(i)
	}

	walkErr := s.Walker.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			// Handle test case where de might be nil (for MockFileSystemWalker)
			if de != nil && de.IsDir() {
				return nil
			}
			if shouldSkip(path) {
				return nil
			}

			select {
			case workChan <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()

	log.Info().Int64("documents", ingested.Load()).Msg("ingest finished")

	select {
	case err := <-errorChan:
		if err != nil {
			return err
		}
	default:
	}

	return walkErr
}

// shouldSkip returns true if the file at path should not be ingested.
func shouldSkip(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	p := strings.ToLower(path)
	if strings.Contains(p, "/.git/") || strings.Contains(p, "/node_modules/") {
		return true
	}
	if _, err := extract.DetectFormat(base); err != nil {
		return true
	}
	return false
}
