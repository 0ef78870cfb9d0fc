package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/testutil"
)

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]database.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]database.RefreshToken)}
}

func (m *memTokenStore) CreateRefreshToken(_ context.Context, arg database.CreateRefreshTokenParams) (database.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok := database.RefreshToken{
		Token:     arg.Token,
		UserID:    arg.UserID,
		CreatedAt: arg.CreatedAt,
		ExpiresAt: arg.ExpiresAt,
	}
	m.tokens[arg.Token] = tok
	return tok, nil
}

func (m *memTokenStore) GetRefreshToken(_ context.Context, token string) (database.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[token]
	if !ok || !tok.ExpiresAt.Time.After(time.Now()) {
		return database.RefreshToken{}, pgx.ErrNoRows
	}
	return tok, nil
}

func TestHashPassword(t *testing.T) {
	t.Run("unique hashes", func(t *testing.T) {
		pw := "password1234"
		hash, err := HashPassword(pw)
		if err != nil {
			t.Fatalf("password hash fail #1: %+v", err)
		}

		hash2, err := HashPassword(pw)
		if err != nil {
			t.Fatalf("password hash fail #2: %+v", err)
		}

		if hash == hash2 {
			t.Fatalf("hash and hash2 are the same hashes; should be different: %s, %s", hash, hash2)
		}
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := HashPassword("")
		if err != nil {
			t.Errorf("HashPassword() failed on empty string: %+v", err)
		}
	})
}

func TestCheckPasswordHash(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		checkPw   string
		hash      string
		wantErr   bool
		wantMatch bool
	}{
		{"correct pw", "mypassword1234", "mypassword1234", "", false, true},
		{"incorrect pw", "mypassword1234", "passwordDD1234", "", false, false},
		{"wrong hash", "mypassword1234", "passwordDD1234", "not-a-hash", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hash string
			var err error

			if tt.hash != "" {
				hash = tt.hash
			} else {
				hash, err = HashPassword(tt.password)
				if err != nil {
					t.Fatalf("%+v", err)
				}
			}

			isMatch, err := CheckPasswordHash(tt.checkPw, hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckPasswordHash() error = %+v", err)
			}
			if isMatch != tt.wantMatch {
				t.Errorf("CheckPasswordHash() = %v, want %v", isMatch, tt.wantMatch)
			}
		})
	}
}

func TestJWT(t *testing.T) {
	tests := []struct {
		name           string
		makeSecret     string
		validateSecret string
		expiresIn      time.Duration
		wantErr        bool
	}{
		{"Valid_JWT", "validtokensecret", "validtokensecret", 15 * time.Second, false},
		{"Incorrect_secret", "validtokensecret", "fakesecret", 15 * time.Second, true},
		{"Expired_token", "validtokensecret", "validtokensecret", -1 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.New()
			tokenString, err := MakeJWT(userID, tt.makeSecret, "astrochat", tt.expiresIn)
			if err != nil {
				t.Fatalf("MakeJWT() error = %+v", err)
			}

			gotUserID, err := ValidateJWT(tokenString, tt.validateSecret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateJWT() error = %+v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && gotUserID != userID {
				t.Errorf("want = %+v, got = %+v", userID, gotUserID)
			}
		})
	}

	t.Run("Corrupt_token", func(t *testing.T) {
		_, err := ValidateJWT("corrupttoken", "validtokensecret")
		if err == nil {
			t.Fatal("ValidateJWT(): expected error but got none")
		}
	})
}

func TestGetUserFromContext(t *testing.T) {
	t.Run("is_valid_UUID", func(t *testing.T) {
		wantUserID := uuid.New()
		gotUserID, err := GetUserFromContext(WithUser(context.Background(), wantUserID))
		if err != nil {
			t.Fatalf("GetUserFromContext(): expected userID but got error = %+v", err)
		}
		if gotUserID != wantUserID {
			t.Errorf("want %+v but got %+v", wantUserID, gotUserID)
		}
	})

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"invalid_UUID", context.WithValue(context.Background(), UserIDKey, "not-UUID")},
		{"nil_UUID", context.WithValue(context.Background(), UserIDKey, uuid.Nil)},
		{"no_context", context.Background()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GetUserFromContext(tt.ctx); err == nil {
				t.Fatal("GetUserFromContext(): expected error but got none")
			}
		})
	}
}

func TestRefreshSession(t *testing.T) {
	store := newMemTokenStore()
	s := DefaultSettings("secret", "astrochat")
	userID := uuid.New()

	t.Run("valid_refresh_token", func(t *testing.T) {
		tok, err := MakeRefreshToken(context.Background(), store, userID, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: tok})
		rec := httptest.NewRecorder()

		got, err := RefreshSession(rec, req, store, s)
		require.NoError(t, err)
		assert.Equal(t, userID, got)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, AccessCookie, cookies[0].Name)

		jwtUser, err := ValidateJWT(cookies[0].Value, s.Secret)
		require.NoError(t, err)
		assert.Equal(t, userID, jwtUser)
	})

	t.Run("expired_refresh_token", func(t *testing.T) {
		tok, err := MakeRefreshToken(context.Background(), store, userID, -time.Second)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: tok})

		_, err = RefreshSession(httptest.NewRecorder(), req, store, s)
		assert.True(t, errors.Is(err, ErrNoSession))
	})

	t.Run("no_cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		_, err := RefreshSession(httptest.NewRecorder(), req, store, s)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestMakeRefreshToken(t *testing.T) {
	db := testutil.DbInit(t)
	queries := database.New(db)

	user, err := queries.CreateUser(context.Background(), database.CreateUserParams{
		UserID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Username: "dummy",
		Email:    "dummy@test.com",
	})
	if err != nil {
		t.Fatalf("failed to create user: %+v", err)
	}

	tests := []struct {
		name      string
		expiresIn time.Duration
		revoke    bool
		wantFound bool
	}{
		{"valid_refresh_token", 7 * 24 * time.Hour, false, true},
		{"expired_token", -1 * time.Millisecond, false, false},
		{"revoked_token", 7 * 24 * time.Hour, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			tokenString, err := MakeRefreshToken(ctx, queries, user.UserID.Bytes, tt.expiresIn)
			if err != nil {
				t.Fatalf("MakeRefreshToken() unexpected error = %+v", err)
			}

			if tt.revoke {
				if err := queries.RevokeRefreshToken(ctx, tokenString); err != nil {
					t.Fatalf("RevokeRefreshToken() unexpected error = %+v", err)
				}
			}

			tokenFromDB, err := queries.GetRefreshToken(ctx, tokenString)
			if !tt.wantFound {
				if !errors.Is(err, pgx.ErrNoRows) {
					t.Fatalf("GetRefreshToken() error = %+v, want pgx.ErrNoRows", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetRefreshToken() unexpected error = %+v", err)
			}
			if tokenFromDB.Token != tokenString {
				t.Errorf("got = %s, want = %s", tokenFromDB.Token, tokenString)
			}
		})
	}
}
