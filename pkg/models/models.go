package models

import "time"

type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a direct similarity hit with its document's filename joined in.
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// RetrievedChunk is one entry of a retrieval result after adjacency expansion.
// Score is nil for chunks pulled in only as neighbors of a direct hit.
type RetrievedChunk struct {
	Chunk    Chunk    `json:"chunk"`
	Filename string   `json:"filename"`
	Score    *float64 `json:"score"`
	Direct   bool     `json:"direct"`
}

// Citation maps a bracket marker in an answer back to the chunk it cites.
type Citation struct {
	Marker     int    `json:"marker"`
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Seq        int    `json:"seq"`
}

type Answer struct {
	Text      string           `json:"text"`
	Citations []Citation       `json:"citations"`
	Retrieved []RetrievedChunk `json:"retrieved"`
}
