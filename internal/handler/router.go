package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/johndosdos/astrochat/internal"
	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/chat"
)

// Deps are the dependencies of the routes.
type Deps struct {
	Store          AccountStore
	Chat           ChatService
	Hub            *chat.Hub
	Auth           auth.Settings
	AllowedOrigins []string
	// Limit guards the account forms, typically per client IP.
	Limit func(http.Handler) http.Handler
	// PanelToken enables the astrologer panel routes. Empty disables them.
	PanelToken string
}

// NewRouter wires every route of the app.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger"},
		ExposedHeaders:   []string{"HX-Redirect"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limit := d.Limit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/", ServeRoot())

	r.Route("/account", func(r chi.Router) {
		r.Get("/login", ServeLoginPage())
		r.Get("/signup", ServeSignupPage())
		r.With(limit).Post("/login", SubmitLoginForm(d.Store, d.Auth))
		r.With(limit).Post("/signup", SubmitSignupForm(d.Store))
		r.Post("/logout", SubmitLogoutReq(d.Store))
		r.Post("/refresh", RefreshToken(d.Store, d.Auth))

		r.Group(func(r chi.Router) {
			r.Use(internal.Middleware(d.Store, d.Auth))
			r.Get("/", ServeAccount(d.Chat))
			r.Post("/upgrade", SubmitUpgrade(d.Chat))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(internal.Middleware(d.Store, d.Auth))

		r.Get("/chat", ServeChat(d.Chat))
		r.Get("/chat/messages", ServeMessages(d.Chat))
		r.Post("/chat/messages", SubmitMessage(d.Chat))
		r.Post("/chat/messages/{id}/unlock", SubmitUnlock(d.Chat, d.Hub))
		r.Get("/chat/stream", StreamSSE(d.Hub, d.Chat))
		r.Get("/ws", ServeWs(d.Hub, d.Chat, originHosts(d.AllowedOrigins)))

		r.Get("/astrologers", ServeAstrologers())
		r.Post("/astrologers/disconnect", SubmitDisconnect(d.Chat))
		r.Post("/astrologers/{id}/connect", SubmitConnect(d.Chat))
	})

	if d.PanelToken != "" {
		r.Route("/panel", func(r chi.Router) {
			r.Use(PanelAuth(d.PanelToken))
			r.Post("/astrologers/{astrologerID}/consultations/{userID}/reply", SubmitReply(d.Chat))
		})
	}

	return r
}

// originHosts turns allowed origins into the host patterns the websocket
// handshake checks.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
