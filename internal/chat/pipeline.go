// Package chat turns a question into a cited answer: retrieve context,
// prompt the generator, resolve the citations the answer makes and append
// the exchange to the caller's session.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docchat/docchat/internal/ai"
	"github.com/docchat/docchat/internal/retriever"
	"github.com/docchat/docchat/internal/store"
	"github.com/docchat/docchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// Retriever is the retrieval dependency of the pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK, window int, opt store.QueryOpts) ([]models.RetrievedChunk, error)
}

type Pipeline struct {
	Retriever Retriever
	Generator ai.Generator
	TopK      int
	Window    int
}

// NewPipeline creates a new chat pipeline with the provided retriever and generator
func NewPipeline(r Retriever, g ai.Generator, topK, window int) *Pipeline {
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}
	if window < 0 {
		window = retriever.DefaultWindow
	}
	return &Pipeline{
		Retriever: r,
		Generator: g,
		TopK:      topK,
		Window:    window,
	}
}

// Ask answers question from the session's document corpus and appends the
// exchange to the session. A failed turn appends nothing: the session only
// ever holds completed exchanges.
func (p *Pipeline) Ask(ctx context.Context, sess *Session, question string) (models.Answer, error) {
	if sess == nil {
		return models.Answer{}, fmt.Errorf("%w: session is required", models.ErrInvalidInput)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Answer{}, fmt.Errorf("%w: empty question", models.ErrInvalidInput)
	}

	retrieved, err := p.Retriever.Retrieve(ctx, question, p.TopK, p.Window, store.QueryOpts{})
	if err != nil {
		return models.Answer{}, err
	}

	contextText, markers := formatContext(retrieved)
	text, err := p.Generator.Generate(ctx, systemPrompt, userPrompt(question, contextText))
	if err != nil {
		return models.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	citations, err := ResolveCitations(text, markers)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("answer cites outside the retrieval result")
		return models.Answer{}, err
	}

	now := time.Now()
	sess.Turns = append(sess.Turns,
		Turn{Role: RoleUser, Content: question, At: now},
		Turn{Role: RoleAssistant, Content: text, Citations: citations, At: now},
	)
	sess.LastRetrieval = retrieved

	return models.Answer{
		Text:      text,
		Citations: citations,
		Retrieved: retrieved,
	}, nil
}
