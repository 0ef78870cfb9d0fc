// Package internal holds the request middleware shared by every protected
// route.
package internal

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johndosdos/astrochat/internal/auth"
)

// Middleware validates the client's JWT. An invalid or missing JWT is renewed
// from the refresh token; without one the client is sent to the login page.
func Middleware(db auth.TokenStore, s auth.Settings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check JWT if it exists. If valid, append user ID to context and
			// serve the next handler.
			if jwtCookie, err := r.Cookie(auth.AccessCookie); err == nil {
				userID, err := auth.ValidateJWT(jwtCookie.Value, s.Secret)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
					return
				}
			}

			userID, err := auth.RefreshSession(w, r, db, s)
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					slog.ErrorContext(r.Context(), "failed to refresh session", "error", err)
				}
				redirectToLogin(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/account/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/account/login", http.StatusSeeOther)
}
