package chat

import (
	"time"

	"github.com/docchat/docchat/pkg/models"
	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation. Assistant turns carry the
// citations their answer was generated with.
type Turn struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Citations []models.Citation `json:"citations,omitempty"`
	At        time.Time         `json:"at"`
}

// Session holds one conversation: its turns and the retrieval behind the
// last answer. Sessions are owned by the caller; the pipeline reads and
// appends but never stores one.
type Session struct {
	ID            string                  `json:"id"`
	Turns         []Turn                  `json:"turns"`
	LastRetrieval []models.RetrievedChunk `json:"last_retrieval,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// NewSession creates an empty session with a fresh id.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
}
