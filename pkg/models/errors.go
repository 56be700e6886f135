package models

import "errors"

// Error kinds shared across packages. Callers classify failures with
// errors.Is; producers wrap these with fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidInput marks a request rejected before any external call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbedding marks a failure of the embedding provider.
	ErrEmbedding = errors.New("embedding service")

	// ErrVectorStore marks a failure of the chunk store.
	ErrVectorStore = errors.New("vector store")

	// ErrUnknownChunk marks an answer citing a chunk that is not part of
	// the retrieval result it was generated from.
	ErrUnknownChunk = errors.New("unknown chunk")

	// ErrUnsupportedFormat marks a file whose extension maps to no extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotFound marks a lookup of a document that does not exist.
	ErrNotFound = errors.New("not found")
)
