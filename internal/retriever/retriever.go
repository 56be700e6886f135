// Package retriever implements adjacency-aware retrieval: the nearest
// chunks to a query, each widened with the chunks around it so the answer
// generator sees local document context instead of isolated fragments.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/docchat/docchat/internal/ai"
	"github.com/docchat/docchat/internal/store"
	"github.com/docchat/docchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// Defaults used by callers that do not configure retrieval explicitly.
const (
	DefaultTopK   = 5
	DefaultWindow = 1
)

type Service struct {
	Embedder ai.Embedder
	Store    store.DocumentStore

	// Hybrid blends lexical rank into the vector score. When false the
	// store ranks by cosine similarity alone.
	Hybrid bool
}

// NewService creates a new retrieval service with the provided embedder and store
func NewService(embedder ai.Embedder, s store.DocumentStore, hybrid bool) *Service {
	return &Service{
		Embedder: embedder,
		Store:    s,
		Hybrid:   hybrid,
	}
}

// Retrieve embeds query, asks the store for the topK nearest chunks and
// widens every hit by window chunks of surrounding text on both sides.
//
// The result is grouped by document: groups are ordered by their best
// direct-hit score descending (groups with equal scores keep hit order),
// chunks within a group by ascending sequence index. Chunks pulled in only
// as neighbors of a hit carry a nil score.
func (s *Service) Retrieve(ctx context.Context, query string, topK, window int, opt store.QueryOpts) ([]models.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", models.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", models.ErrInvalidInput, topK)
	}
	if window < 0 {
		return nil, fmt.Errorf("%w: window must be non-negative, got %d", models.ErrInvalidInput, window)
	}

	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}

	opt.QueryText = ""
	if s.Hybrid {
		opt.QueryText = query
	}
	hits, err := s.Store.Nearest(ctx, vec, topK, opt)
	if err != nil {
		return nil, fmt.Errorf("%w: nearest: %v", models.ErrVectorStore, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ranges, err := s.expand(ctx, hits, window)
	if err != nil {
		return nil, err
	}

	out := merge(hits, ranges)
	log.Debug().Int("hits", len(hits)).Int("chunks", len(out)).Msg("retrieval complete")
	return out, nil
}

// expand fetches the adjacency range around every hit, one range lookup per
// hit running concurrently. Any failure fails the whole call so a partial
// context never reaches the generator.
func (s *Service) expand(ctx context.Context, hits []models.ScoredChunk, window int) ([][]models.Chunk, error) {
	ranges := make([][]models.Chunk, len(hits))
	if window == 0 {
		return ranges, nil
	}

	errs := make([]error, len(hits))
	var wg sync.WaitGroup
	for i, h := range hits {
		wg.Add(1)
		go func(i int, c models.Chunk) {
			defer wg.Done()
			lo := c.Seq - window
			if lo < 0 {
				lo = 0
			}
			ranges[i], errs[i] = s.Store.GetRange(ctx, c.DocumentID, lo, c.Seq+window)
		}(i, h.Chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: expand window: %v", models.ErrVectorStore, err)
		}
	}
	return ranges, nil
}

// docGroup collects the retrieved chunks of one document, keyed by sequence
// index so overlapping windows deduplicate naturally.
type docGroup struct {
	bestScore float64
	chunks    map[int]models.RetrievedChunk
}

// merge combines direct hits and their adjacency ranges into the final
// ordered sequence, deduplicating by (document, seq). A chunk that is both
// a direct hit and a neighbor of another hit stays a direct hit with its
// original score.
func merge(hits []models.ScoredChunk, ranges [][]models.Chunk) []models.RetrievedChunk {
	groups := make(map[string]*docGroup)
	var order []*docGroup

	for _, h := range hits {
		g, ok := groups[h.Chunk.DocumentID]
		if !ok {
			g = &docGroup{
				bestScore: h.Score,
				chunks:    make(map[int]models.RetrievedChunk),
			}
			groups[h.Chunk.DocumentID] = g
			order = append(order, g)
		}
		if h.Score > g.bestScore {
			g.bestScore = h.Score
		}
		if _, seen := g.chunks[h.Chunk.Seq]; seen {
			continue
		}
		score := h.Score
		g.chunks[h.Chunk.Seq] = models.RetrievedChunk{
			Chunk:    h.Chunk,
			Filename: h.Filename,
			Score:    &score,
			Direct:   true,
		}
	}

	for i, h := range hits {
		g := groups[h.Chunk.DocumentID]
		for _, c := range ranges[i] {
			if _, seen := g.chunks[c.Seq]; seen {
				continue
			}
			g.chunks[c.Seq] = models.RetrievedChunk{
				Chunk:    c,
				Filename: h.Filename,
			}
		}
	}

	// Groups enter order at their first hit, so a stable sort keeps the
	// earlier-ranked group in front when best scores are equal.
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].bestScore > order[b].bestScore
	})

	out := make([]models.RetrievedChunk, 0, len(hits))
	for _, g := range order {
		seqs := make([]int, 0, len(g.chunks))
		for seq := range g.chunks {
			seqs = append(seqs, seq)
		}
		sort.Ints(seqs)
		for _, seq := range seqs {
			out = append(out, g.chunks[seq])
		}
	}
	return out
}
