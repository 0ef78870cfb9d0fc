package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/catalog"
	"github.com/johndosdos/astrochat/internal/reveal"
)

// ChatMessage is the client-facing view of one message, used for JSON
// responses and rendered websocket/SSE fragments.
type ChatMessage struct {
	ID     uuid.UUID `json:"id"`
	Sender string    `json:"sender"`
	// Content is the part of the gist revealed so far.
	Content    string    `json:"content"`
	Revealing  bool      `json:"revealing"`
	Affordance string    `json:"affordance"`
	DeepDive   string    `json:"deep_dive,omitempty"`
	Locked     bool      `json:"locked"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	// Products are the remedies named in the visible text.
	Products []catalog.Product `json:"suggested_products,omitempty"`
}

// FromView converts a resolved message view. Oracle and astrologer messages
// suggest products once their text is fully shown; a locked deep dive is
// never scanned.
func FromView(v reveal.View) ChatMessage {
	cm := ChatMessage{
		ID:         v.Message.ID,
		Sender:     v.Message.Sender.String(),
		Content:    v.Visible,
		Revealing:  v.Revealing,
		Affordance: v.Affordance.String(),
		DeepDive:   v.DeepDive,
		Locked:     v.Message.Locked,
		Status:     v.Message.Status.String(),
		CreatedAt:  v.Message.CreatedAt,
	}

	switch v.Message.Sender {
	case reveal.AiOracle, reveal.HumanAstrologer:
		if !v.Revealing {
			cm.Products = catalog.Suggest(v.Visible + "\n" + v.DeepDive)
		}
	}
	return cm
}
