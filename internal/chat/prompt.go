package chat

import (
	"fmt"
	"strings"

	"github.com/docchat/docchat/pkg/models"
)

const systemPrompt = `You are a helpful assistant that answers questions about the user's documents.
Answer using only the provided context passages. After each statement, cite the passages supporting it with their bracketed numbers, like [1] or [2]. Passages wrapped in (... ...) are surrounding text included for context only and cannot be cited.
If the context does not contain the answer, say you don't know instead of guessing.`

// formatContext renders a retrieval result for the model. Chunks are
// already grouped by document and in reading order; direct hits get a
// citation marker, neighbors are wrapped so the model can read but not
// cite them. Returns the rendered text and the marker table.
func formatContext(retrieved []models.RetrievedChunk) (string, map[int]models.RetrievedChunk) {
	var sb strings.Builder
	markers := make(map[int]models.RetrievedChunk)
	marker := 0

	for i := 0; i < len(retrieved); {
		// One document group is a run of chunks with the same document id.
		j := i
		best := 0.0
		for j < len(retrieved) && retrieved[j].Chunk.DocumentID == retrieved[i].Chunk.DocumentID {
			if retrieved[j].Direct && retrieved[j].Score != nil && *retrieved[j].Score > best {
				best = *retrieved[j].Score
			}
			j++
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("--- Document: %s (Relevance: %.2f) ---\n", retrieved[i].Filename, best))

		for ; i < j; i++ {
			rc := retrieved[i]
			if rc.Direct {
				marker++
				markers[marker] = rc
				sb.WriteString(fmt.Sprintf("[%d] %s\n", marker, rc.Chunk.Content))
			} else {
				sb.WriteString(fmt.Sprintf("(... %s ...)\n", rc.Chunk.Content))
			}
		}
	}

	return sb.String(), markers
}

// userPrompt builds the user message from the question and the rendered
// context.
func userPrompt(question, contextText string) string {
	if contextText == "" {
		contextText = "(no relevant passages were found)"
	}
	return fmt.Sprintf("Context:\n\n%s\n\nQuestion: %s", contextText, question)
}
