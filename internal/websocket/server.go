package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/chat"
	"github.com/johndosdos/astrochat/internal/model"
)

const failureText = "Something went wrong. Please try again."

// ReadMessage reads the incoming frames from the websocket stream until the
// connection closes. Every frame is handled before the next one is read.
func (c *Conn) ReadMessage(ctx context.Context) {
	defer func() {
		c.hub.Leave(c.client)
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				slog.WarnContext(ctx, "websocket read failed", "error", err)
			}
			return
		}

		// The app only supports text format for now...
		if msgType != websocket.MessageText {
			continue
		}

		// HTMX's ws-send attribute also sends a HEADERS field along with the
		// form values.
		var frame model.ClientFrame
		if err := json.Unmarshal(p, &frame); err != nil {
			slog.WarnContext(ctx, "failed to process frame from client", "error", err)
			continue
		}

		if !c.client.AllowMessage() {
			c.warnRateLimited()
			continue
		}

		c.handle(ctx, frame)
	}
}

func (c *Conn) handle(ctx context.Context, frame model.ClientFrame) {
	userID := c.client.UserID

	switch frame.Type {
	case model.FrameAsk, "":
		_, err := c.svc.Ask(ctx, userID, frame.Content)
		switch {
		case err == nil, errors.Is(err, chat.ErrEmptyMessage):
		case errors.Is(err, chat.ErrQuotaExhausted):
			c.notify(chat.QuotaNotice)
		default:
			slog.ErrorContext(ctx, "failed to answer question",
				slog.String("user_id", userID.String()),
				"error", err)
			c.notify(failureText)
		}

	case model.FrameUnlock:
		id, err := uuid.Parse(frame.MessageID)
		if err != nil {
			slog.WarnContext(ctx, "invalid message id in unlock frame",
				slog.String("message_id", frame.MessageID))
			return
		}
		_, err = c.svc.Unlock(ctx, userID, id)
		switch {
		case err == nil, errors.Is(err, chat.ErrNotFound):
		case errors.Is(err, chat.ErrPaymentRequired):
			c.notify(chat.PaywallNotice)
		default:
			slog.ErrorContext(ctx, "failed to unlock message",
				slog.String("message_id", id.String()),
				"error", err)
			c.notify(failureText)
		}

	default:
		slog.WarnContext(ctx, "unknown frame type", slog.String("type", frame.Type))
	}
}
