// Package auth handles passwords, access tokens and refresh tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/database"
)

type ContextKey string

const UserIDKey ContextKey = "userID"

// Settings are the token parameters shared by the account handlers and the
// middleware.
type Settings struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultSettings uses a five minute access token and a seven day refresh
// token.
func DefaultSettings(secret, issuer string) Settings {
	return Settings{
		Secret:     secret,
		Issuer:     issuer,
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// TokenStore persists refresh tokens.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, arg database.CreateRefreshTokenParams) (database.RefreshToken, error)
	GetRefreshToken(ctx context.Context, token string) (database.RefreshToken, error)
}

func HashPassword(password string) (string, error) {
	hashedPw, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("internal/auth: pw hash failed: %w", err)
	}

	return hashedPw, nil
}

func CheckPasswordHash(password, hash string) (bool, error) {
	isMatch, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("internal/auth: pw and hash comparison failed: %w", err)
	}

	return isMatch, nil
}

func MakeJWT(userID uuid.UUID, tokenSecret, issuer string, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	})

	return token.SignedString([]byte(tokenSecret))
}

func ValidateJWT(tokenString, tokenSecret string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(tokenSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to parse token: %w", err)
	}

	if !token.Valid {
		return uuid.UUID{}, errors.New("internal/auth: token is invalid")
	}

	if claims.Subject == "" {
		return uuid.UUID{}, errors.New("internal/auth: subject claim is missing")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: invalid subject claim: %w", err)
	}

	return userID, nil
}

// MakeRefreshToken stores a new random refresh token for userID.
func MakeRefreshToken(ctx context.Context, db TokenStore, userID uuid.UUID, expiresIn time.Duration) (string, error) {
	rnd := make([]byte, 32)

	// rand.Read() never returns an error.
	_, _ = rand.Read(rnd)
	rndStr := hex.EncodeToString(rnd)

	now := time.Now().UTC()
	refreshToken, err := db.CreateRefreshToken(ctx, database.CreateRefreshTokenParams{
		Token:     rndStr,
		UserID:    pgtype.UUID{Bytes: userID, Valid: true},
		CreatedAt: pgtype.Timestamptz{Time: now, Valid: true},
		ExpiresAt: pgtype.Timestamptz{Time: now.Add(expiresIn), Valid: true},
	})
	if err != nil {
		return "", fmt.Errorf("internal/auth: failed to store refresh token: %w", err)
	}

	return refreshToken.Token, nil
}

// GetUserFromContext returns the user id placed on the context by the
// middleware.
func GetUserFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.UUID{}, errors.New("internal/auth: no user id in context")
	}

	return userID, nil
}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
