package handler

import (
	"net/http"

	"github.com/johndosdos/astrochat/internal/auth"
)

// ServeRoot sends clients with a session cookie to the chat, where the
// middleware validates it, and everyone else to the login page.
func ServeRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, jwtErr := r.Cookie(auth.AccessCookie)
		_, refreshErr := r.Cookie(auth.RefreshCookie)
		if jwtErr != nil && refreshErr != nil {
			http.Redirect(w, r, "/account/login", http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, "/chat", http.StatusSeeOther)
	}
}
