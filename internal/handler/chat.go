// Package handler holds the HTTP handlers of the app.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/chat"
	"github.com/johndosdos/astrochat/internal/model"
	"github.com/johndosdos/astrochat/internal/view"
)

// ChatService is what the handlers need from *chat.Service.
type ChatService interface {
	Ask(ctx context.Context, userID uuid.UUID, text string) (chat.AskResult, error)
	Unlock(ctx context.Context, userID, messageID uuid.UUID) (model.ChatMessage, error)
	Upgrade(ctx context.Context, userID uuid.UUID, plan chat.Plan) (model.Account, error)
	History(ctx context.Context, userID uuid.UUID) ([]model.ChatMessage, error)
	Account(ctx context.Context, userID uuid.UUID) (model.Account, error)
	Connect(ctx context.Context, userID uuid.UUID, astrologerID string) (*model.ChatMessage, error)
	Disconnect(ctx context.Context, userID uuid.UUID) (model.ChatMessage, error)
	Reply(ctx context.Context, astrologerID string, userID uuid.UUID, text, productID string) (model.ChatMessage, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// ServeChat renders the chat page.
func ServeChat(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Redirect(w, r, "/account/login", http.StatusSeeOther)
			return
		}

		acc, err := svc.Account(ctx, userID)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			slog.ErrorContext(ctx, "failed to load account", "error", err)
			return
		}

		if err := view.ChatLayout(acc).Render(ctx, w); err != nil {
			log.Printf("handler/chat: failed to render chat layout: %v", err)
		}
	}
}

// ServeMessages loads the conversation of the current user, as bubbles for
// htmx or as JSON when asked for.
func ServeMessages(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		msgs, err := svc.History(ctx, userID)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			slog.ErrorContext(ctx, "failed to load messages", "error", err)
			return
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, msgs)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		if err := view.MessageList(msgs).Render(ctx, w); err != nil {
			log.Printf("failed to render messages: %v", err)
		}
	}
}

type askRequest struct {
	Content string `json:"content"`
}

// SubmitMessage asks the oracle a question. The answer keeps revealing over
// the live connections after the response.
func SubmitMessage(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		var req askRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form data.", http.StatusBadRequest)
				return
			}
			req.Content = r.PostFormValue("content")
		}

		res, err := svc.Ask(ctx, userID, req.Content)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrEmptyMessage):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is empty"})
			return
		case errors.Is(err, chat.ErrQuotaExhausted):
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: chat.QuotaNotice})
			return
		default:
			http.Error(w, "Server error.", http.StatusInternalServerError)
			slog.ErrorContext(ctx, "failed to answer question", "error", err)
			return
		}

		writeJSON(w, http.StatusCreated, res)
	}
}

// SubmitUnlock unlocks a deep dive. Users without premium access get 402 and
// a notice on their live connections pointing at the upgrade.
func SubmitUnlock(svc ChatService, pub chat.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		messageID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message id"})
			return
		}

		cm, err := svc.Unlock(ctx, userID, messageID)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "message not found"})
			return
		case errors.Is(err, chat.ErrPaymentRequired):
			pub.Publish(model.Event{UserID: userID, Kind: model.EventNotice, Text: chat.PaywallNotice})
			writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: chat.PaywallNotice})
			return
		default:
			http.Error(w, "Server error.", http.StatusInternalServerError)
			slog.ErrorContext(ctx, "failed to unlock message", "error", err)
			return
		}

		writeJSON(w, http.StatusOK, cm)
	}
}
