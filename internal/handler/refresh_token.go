package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/johndosdos/astrochat/internal/auth"
)

// RefreshToken issues a new JWT from the refresh token cookie.
func RefreshToken(db auth.TokenStore, s auth.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RefreshSession(w, r, db, s); err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				log.Printf("handler/refresh token: %v", err)
			}
			w.Header().Set("HX-Redirect", "/account/login")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
