package handler

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/chat"
	ws "github.com/johndosdos/astrochat/internal/websocket"
)

// ServeWs handles the client's websocket connection upgrade.
func ServeWs(hub *chat.Hub, svc ChatService, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		acc, err := svc.Account(ctx, userID)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			slog.ErrorContext(ctx, "failed to load account", "error", err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Printf("failed to upgrade connection to websocket: %v", err)
			return
		}
		slog.InfoContext(ctx, "upgraded connection", slog.String("username", acc.Username))

		// We'll register our new client to the central hub.
		c := chat.NewClient(userID, acc.Username)
		c.SetMessageLimiter(30, time.Minute)
		if !hub.Join(c) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// We block on ReadMessage() because the request context will be
		// canceled as soon we return from the handler.
		wc := ws.NewConn(conn, c, hub, svc)
		go wc.WriteMessage(ctx)
		wc.ReadMessage(ctx)
	}
}
