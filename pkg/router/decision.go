package router

import (
	"time"

	"github.com/google/uuid"
)

// Decision records the outcome of routing one message.
//
// A decision is immutable once recorded, except for the later attachment of
// feedback via the Correct field.
type Decision struct {
	ID            string             `json:"id"`
	ChatContextID string             `json:"chat_context_id,omitempty"`
	UserMessage   string             `json:"user_message"`
	TierUsed      int                `json:"tier_used"`
	SelectedAgent string             `json:"selected_agent,omitempty"`
	Confidence    float64            `json:"confidence"`
	BM25Scores    map[string]float64 `json:"bm25_scores,omitempty"`
	EmbedScores   map[string]float64 `json:"embedding_scores,omitempty"`
	LatencyMs     int64              `json:"latency_ms"`
	Correct       *bool              `json:"correct,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func newDecision(contextID, message string) *Decision {
	return &Decision{
		ID:            uuid.NewString(),
		ChatContextID: contextID,
		UserMessage:   message,
		CreatedAt:     time.Now().UTC(),
	}
}
