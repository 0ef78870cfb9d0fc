package chat

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/johndosdos/astrochat/internal/model"
)

// Client is one live connection of a user, websocket or SSE.
type Client struct {
	UserID   uuid.UUID
	Username string
	Send     chan model.Event

	messageLim *rate.Limiter
}

// NewClient returns a new instance of Client.
func NewClient(userID uuid.UUID, username string) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		Send:     make(chan model.Event, 64),
	}
}

// SetMessageLimiter allows requests messages per window, in bursts of up to
// requests.
func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	c.messageLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// AllowMessage reports whether the client may send another message now. A
// client without a limiter is never limited.
func (c *Client) AllowMessage() bool {
	if c.messageLim == nil {
		return true
	}
	return c.messageLim.Allow()
}
