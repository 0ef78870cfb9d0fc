package handler

import (
	"bytes"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/chat"
	"github.com/johndosdos/astrochat/internal/view"
)

// StreamSSE pushes the same fragments as the websocket over server-sent
// events, for clients that only listen.
func StreamSSE(hub *chat.Hub, svc ChatService) http.HandlerFunc {
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

		// We'll register our new client to the central hub.
		c := chat.NewClient(userID, acc.Username)
		if !hub.Join(c) {
			http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
			return
		}
		defer hub.Leave(c)

		w.Header().Set("X-Accel-Buffering", "no")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		if err := rc.Flush(); err != nil {
			log.Printf("%v", err)
			return
		}
		slog.InfoContext(ctx, "sse client connected", slog.String("username", c.Username))

		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-c.Send:
				if !ok {
					return
				}

				var dataBuf bytes.Buffer
				if err := view.Live(ev).Render(ctx, &dataBuf); err != nil {
					log.Printf("failed to render component: %v", err)
					continue
				}

				data := bytes.ReplaceAll(dataBuf.Bytes(), []byte("\n"), []byte(" "))

				fmt.Fprintf(w, "event: %s\n", ev.Kind) //nolint:errcheck
				fmt.Fprintf(w, "data: %s\n\n", data)   //nolint:errcheck

				if err := rc.Flush(); err != nil {
					log.Printf("could not flush buffer to writer: %+v", err)
					return
				}

			case <-ticker.C:
				fmt.Fprint(w, ": \n\n") //nolint:errcheck
				if err := rc.Flush(); err != nil {
					log.Printf("could not flush buffer to writer: %+v", err)
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}
