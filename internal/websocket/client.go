package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/chat"
	"github.com/johndosdos/astrochat/internal/model"
	"github.com/johndosdos/astrochat/internal/view"
)

// Service is the part of the chat service driven by a connection.
type Service interface {
	Ask(ctx context.Context, userID uuid.UUID, text string) (chat.AskResult, error)
	Unlock(ctx context.Context, userID, messageID uuid.UUID) (model.ChatMessage, error)
}

// Hub is the part of the chat hub a connection talks to.
type Hub interface {
	Leave(c *chat.Client)
	PublishTo(c *chat.Client, ev model.Event)
}

// Conn binds a websocket connection to a registered hub client.
type Conn struct {
	conn   *websocket.Conn
	client *chat.Client
	hub    Hub
	svc    Service

	// penalty is how long a rate-limited client is asked to wait.
	penalty    time.Duration
	timeWarned time.Time
}

func NewConn(conn *websocket.Conn, client *chat.Client, hub Hub, svc Service) *Conn {
	return &Conn{
		conn:    conn,
		client:  client,
		hub:     hub,
		svc:     svc,
		penalty: 10 * time.Second,
	}
}

// WriteMessage renders every event of the client to the outgoing websocket
// stream as an htmx out-of-band fragment.
func (c *Conn) WriteMessage(ctx context.Context) {
	for {
		select {
		case ev, ok := <-c.client.Send:
			// The hub closes the channel on leave and shutdown.
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}

			if err := c.write(ctx, ev); err != nil {
				slog.WarnContext(ctx, "failed to write event",
					"error", err,
					slog.String("kind", string(ev.Kind)),
					slog.String("user_id", c.client.UserID.String()))
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}

func (c *Conn) write(ctx context.Context, ev model.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	w, err := c.conn.Writer(writeCtx, websocket.MessageText)
	if err != nil {
		return fmt.Errorf("internal/websocket: failed to return a writer: %w", err)
	}

	if err := view.Live(ev).Render(writeCtx, w); err != nil {
		w.Close()
		return fmt.Errorf("internal/websocket: failed to render event: %w", err)
	}

	return w.Close()
}

func (c *Conn) notify(text string) {
	c.hub.PublishTo(c.client, model.Event{Kind: model.EventNotice, Text: text})
}

// warnRateLimited tells the client how long to wait, at most once per
// penalty window.
func (c *Conn) warnRateLimited() {
	if time.Since(c.timeWarned) < c.penalty {
		return
	}
	c.timeWarned = time.Now()
	c.notify(fmt.Sprintf("You are sending messages too fast. Wait %d seconds.", int(c.penalty.Seconds())))
}
