// Package entitlement answers whether a user currently has premium access.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/database"
)

// Tier is the membership tier chosen at onboarding.
type Tier string

const (
	TierFree     Tier = "free"
	TierMember21 Tier = "member21"
	TierPremium  Tier = "premium"
)

// ParseTier maps a stored tier to a Tier. Unknown values are free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierMember21, TierPremium:
		return Tier(s)
	}
	return TierFree
}

// Profile is the entitlement-relevant part of a user.
type Profile struct {
	IsPremium          bool
	Tier               Tier
	AdminImpersonating bool
	BonusQuestions     int
}

// FromUser builds a Profile from a stored user.
func FromUser(u database.User) Profile {
	return Profile{
		IsPremium:          u.IsPremium,
		Tier:               ParseTier(u.Tier),
		AdminImpersonating: u.AdminImpersonating,
		BonusQuestions:     int(u.BonusQuestions),
	}
}

// HasPremiumAccess is the single premium predicate of the application. The
// member21 tier gets the membership perks but not the deep dives.
func (p Profile) HasPremiumAccess() bool {
	return p.IsPremium || p.Tier == TierPremium || p.AdminImpersonating
}

// UserGetter loads a user by id.
type UserGetter interface {
	GetUserById(ctx context.Context, userID pgtype.UUID) (database.User, error)
}

// Lookup reads the current profile of userID.
func Lookup(ctx context.Context, db UserGetter, userID uuid.UUID) (Profile, error) {
	u, err := db.GetUserById(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return Profile{}, fmt.Errorf("internal/entitlement: failed to get user %s: %w", userID, err)
	}
	return FromUser(u), nil
}

// Live is a reveal.Entitlement that re-reads the user's profile on every
// evaluation, so an upgrade shows on screen without reloading anything.
type Live struct {
	db      UserGetter
	userID  uuid.UUID
	timeout time.Duration
}

func NewLive(db UserGetter, userID uuid.UUID) *Live {
	return &Live{
		db:      db,
		userID:  userID,
		timeout: 2 * time.Second,
	}
}

// HasPremiumAccess treats a failed lookup as no premium access.
func (l *Live) HasPremiumAccess() bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	p, err := Lookup(ctx, l.db, l.userID)
	if err != nil {
		slog.WarnContext(ctx, "entitlement lookup failed",
			slog.String("user_id", l.userID.String()),
			"error", err)
		return false
	}
	return p.HasPremiumAccess()
}
