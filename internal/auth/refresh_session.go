package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	AccessCookie  = "jwt"
	RefreshCookie = "refresh_token"
)

// ErrNoSession is returned when the request carries no usable refresh token.
var ErrNoSession = errors.New("internal/auth: no session")

// SetTokensAndCookies issues a fresh access token and refresh token for
// userID and sets both cookies.
func SetTokensAndCookies(w http.ResponseWriter, r *http.Request, db TokenStore, s Settings, userID uuid.UUID) error {
	refreshToken, err := MakeRefreshToken(r.Context(), db, userID, s.RefreshTTL)
	if err != nil {
		return err
	}

	jwtString, err := MakeJWT(userID, s.Secret, s.Issuer, s.AccessTTL)
	if err != nil {
		return fmt.Errorf("internal/auth: failed to make JWT: %w", err)
	}

	SetCookie(w, AccessCookie, jwtString, s.AccessTTL)
	SetCookie(w, RefreshCookie, refreshToken, s.RefreshTTL)

	return nil
}

// RefreshSession issues a new access token from the refresh token cookie.
func RefreshSession(w http.ResponseWriter, r *http.Request, db TokenStore, s Settings) (uuid.UUID, error) {
	refreshTokCookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		return uuid.UUID{}, ErrNoSession
	}

	refreshToken, err := db.GetRefreshToken(r.Context(), refreshTokCookie.Value)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: failed to retrieve refresh token: %v", ErrNoSession, err)
	}

	userID := uuid.UUID(refreshToken.UserID.Bytes)
	jwtString, err := MakeJWT(userID, s.Secret, s.Issuer, s.AccessTTL)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to make JWT: %w", err)
	}

	SetCookie(w, AccessCookie, jwtString, s.AccessTTL)

	return userID, nil
}

// SetCookie sets a session cookie. A negative maxAge clears it.
func SetCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	seconds := int(maxAge.Seconds())
	if maxAge < 0 {
		seconds = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   seconds,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
