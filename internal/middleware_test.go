package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/testutil"
)

func helper(t *testing.T,
	ctx context.Context,
	userID uuid.UUID,
	queries *database.Queries,
	s auth.Settings,
	refreshTokenExp, jwtExp time.Duration,
	isCookieEmpty bool) (*http.Request, *httptest.ResponseRecorder) {

	req := httptest.NewRequest(http.MethodGet, "/chat", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	if isCookieEmpty {
		return req, rec
	}

	jwtStr, err := auth.MakeJWT(userID, s.Secret, s.Issuer, jwtExp)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	refreshTokenStr, err := auth.MakeRefreshToken(ctx, queries, userID, refreshTokenExp)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: jwtStr})
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: refreshTokenStr})

	return req, rec
}

func TestMiddleware(t *testing.T) {
	db := testutil.DbInit(t)
	queries := database.New(db)
	s := auth.DefaultSettings("middleware-secret", "astrochat")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := queries.CreateUser(ctx, database.CreateUserParams{
		UserID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Username: "dummy",
		Email:    "dummy@test.com",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %+v", err)
	}

	tests := []struct {
		Name              string
		jwtExp            time.Duration
		refreshTokenExp   time.Duration
		isCookieEmpty     bool
		htmx              bool
		wantHandlerCalled bool
		wantCode          int
	}{
		{"valid_JWT", 5 * time.Minute, 7 * 24 * time.Hour, false, false, true, http.StatusOK},
		{"expired_JWT", -1 * time.Second, 7 * 24 * time.Hour, false, false, true, http.StatusOK},
		{"expired_JWT_and_refresh_token", -1 * time.Second, -1 * time.Second, false, false, false, http.StatusSeeOther},
		{"empty_cookies", 0, 0, true, false, false, http.StatusSeeOther},
		{"empty_cookies_htmx", 0, 0, true, true, false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			req, rec := helper(t, ctx, user.UserID.Bytes, queries, s, tt.refreshTokenExp, tt.jwtExp, tt.isCookieEmpty)
			if tt.htmx {
				req.Header.Set("HX-Request", "true")
			}

			isHandlerCalled := false
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				isHandlerCalled = true
				if got, err := auth.GetUserFromContext(r.Context()); err != nil || got != uuid.UUID(user.UserID.Bytes) {
					t.Errorf("GetUserFromContext() = %v, %v", got, err)
				}
				w.WriteHeader(http.StatusOK)
			})

			handler := Middleware(queries, s)(nextHandler)
			handler.ServeHTTP(rec, req)

			if isHandlerCalled != tt.wantHandlerCalled {
				t.Errorf("nextHandler called = %v, want %v", isHandlerCalled, tt.wantHandlerCalled)
			}

			if rec.Code != tt.wantCode {
				t.Errorf("want %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}
