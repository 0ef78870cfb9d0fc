package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/catalog"
	"github.com/johndosdos/astrochat/internal/chat"
)

// ServeAstrologers lists the astrologers available for a consultation.
func ServeAstrologers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalog.Astrologers())
	}
}

func consultError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, chat.ErrAlreadyConnected):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "end your current session first"})
	case errors.Is(err, chat.ErrAstrologerOffline):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "astrologer is offline"})
	case errors.Is(err, chat.ErrNotConnected):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no active session"})
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is empty"})
	default:
		http.Error(w, "Server error.", http.StatusInternalServerError)
		slog.ErrorContext(r.Context(), "consultation request failed", "error", err)
	}
}

// SubmitConnect starts or resumes a consultation with an astrologer.
func SubmitConnect(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		msg, err := svc.Connect(ctx, userID, chi.URLParam(r, "id"))
		if err != nil {
			consultError(w, r, err)
			return
		}
		if msg == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// SubmitDisconnect ends the current consultation.
func SubmitDisconnect(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		msg, err := svc.Disconnect(ctx, userID)
		if err != nil {
			consultError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// PanelAuth guards the astrologer panel with a shared bearer token.
func PanelAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "Unauthorized.", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubmitReply posts an astrologer's reply, optionally recommending a
// product, into a user's conversation.
func SubmitReply(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			return
		}

		msg, err := svc.Reply(ctx, chi.URLParam(r, "astrologerID"), userID,
			r.PostFormValue("content"), r.PostFormValue("product"))
		if err != nil {
			consultError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
