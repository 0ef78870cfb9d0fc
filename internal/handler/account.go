package handler

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/chat"
	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/view"
)

// AccountStore is the persistence behind signup, login and logout.
// *database.Queries implements it.
type AccountStore interface {
	auth.TokenStore
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	CreatePassword(ctx context.Context, arg database.CreatePasswordParams) (database.Password, error)
	GetUserWithPasswordByEmail(ctx context.Context, email string) (database.GetUserWithPasswordByEmailRow, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

func ServeLoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.Login().Render(r.Context(), w); err != nil {
			log.Printf("failed to render component: %v", err)
		}
	}
}

func renderFormError(w http.ResponseWriter, r *http.Request, msg string) {
	if err := view.ErrorMsg(msg).Render(r.Context(), w); err != nil {
		log.Printf("failed to render component: %v", err)
	}
}

// SubmitLoginForm handles user login.
func SubmitLoginForm(db AccountStore, s auth.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			log.Printf("failed to parse form values: %v", err)
			return
		}

		email := strings.TrimSpace(r.PostFormValue("email"))
		password := r.PostFormValue("password")

		user, err := db.GetUserWithPasswordByEmail(ctx, email)
		if err != nil {
			renderFormError(w, r, "Invalid email or password.")
			slog.InfoContext(ctx, "login with unknown email", "error", err)
			return
		}

		ok, err := auth.CheckPasswordHash(password, user.HashedPassword)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			log.Printf("cannot verify password, hash may be corrupted: %v", err)
			return
		}
		if !ok {
			renderFormError(w, r, "Invalid email or password.")
			return
		}

		if err := auth.SetTokensAndCookies(w, r, db, s, user.UserID.Bytes); err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			log.Printf("%v", err)
			return
		}

		w.Header().Set("HX-Redirect", "/chat")
		w.WriteHeader(http.StatusOK)

		slog.InfoContext(ctx, "user logged in",
			slog.String("username", user.Username))
	}
}

func ServeSignupPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.Signup().Render(r.Context(), w); err != nil {
			log.Printf("failed to render component: %v", err)
		}
	}
}

// SubmitSignupForm handles user account creation.
func SubmitSignupForm(db AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			log.Printf("failed to parse form values: %v", err)
			return
		}

		username := strings.TrimSpace(r.PostFormValue("username"))
		email := strings.TrimSpace(r.PostFormValue("email"))
		password := r.PostFormValue("password")
		confirmPw := r.PostFormValue("confirm_password")

		switch {
		case username == "":
			renderFormError(w, r, "Please tell us your name.")
			return
		case !validEmail(email):
			renderFormError(w, r, "Please enter a valid email.")
			return
		case len(password) < 8:
			renderFormError(w, r, "Password must be at least 8 characters.")
			return
		case password != confirmPw:
			renderFormError(w, r, "Passwords do not match!")
			return
		}

		hashedPw, err := auth.HashPassword(password)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			log.Printf("argon2id hash creation failed: %v", err)
			return
		}

		user, err := db.CreateUser(ctx, database.CreateUserParams{
			UserID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
			Username: username,
			Email:    email,
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				renderFormError(w, r, "An account with this name or email already exists.")
				return
			}
			http.Error(w, "Database error.", http.StatusInternalServerError)
			log.Printf("failed to create user entry in database: %v", err)
			return
		}

		_, err = db.CreatePassword(ctx, database.CreatePasswordParams{
			UserID:         user.UserID,
			HashedPassword: hashedPw,
			CreatedAt:      pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
		})
		if err != nil {
			http.Error(w, "Database error.", http.StatusInternalServerError)
			log.Printf("failed to create password entry in database: %v", err)
			return
		}

		w.Header().Set("HX-Redirect", "/account/login")
		w.WriteHeader(http.StatusOK)

		slog.InfoContext(ctx, "user signed up",
			slog.String("username", user.Username))
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// SubmitLogoutReq revokes the user's refresh token, and redirects the user
// to the login page.
func SubmitLogoutReq(db AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if refreshTok, err := r.Cookie(auth.RefreshCookie); err == nil {
			if err := db.RevokeRefreshToken(ctx, refreshTok.Value); err != nil {
				log.Printf("failed to process token revocation: %v", err)
			}
		}

		auth.SetCookie(w, auth.AccessCookie, "", -1)
		auth.SetCookie(w, auth.RefreshCookie, "", -1)
		w.Header().Set("HX-Redirect", "/account/login")
		w.WriteHeader(http.StatusOK)

		slog.InfoContext(ctx, "user logged out")
	}
}

// ServeAccount returns the account summary as JSON.
func ServeAccount(svc ChatService) http.HandlerFunc {
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

		writeJSON(w, http.StatusOK, acc)
	}
}

// SubmitUpgrade completes a purchase. Payment is simulated: every request
// succeeds.
func SubmitUpgrade(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			return
		}

		planValue := r.PostFormValue("plan")
		if planValue == "" {
			planValue = string(chat.PlanSubscription)
		}
		plan, err := chat.ParsePlan(planValue)
		if err != nil {
			http.Error(w, "Unknown plan.", http.StatusBadRequest)
			return
		}

		acc, err := svc.Upgrade(ctx, userID, plan)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			slog.ErrorContext(ctx, "failed to upgrade account", "error", err)
			return
		}

		if isHTMX(r) {
			if err := view.AccountBadge(acc).Render(ctx, w); err != nil {
				log.Printf("failed to render component: %v", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}
