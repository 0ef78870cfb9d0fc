package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"

	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/reveal"
)

var _ reveal.Entitlement = (*Live)(nil)
var _ reveal.Entitlement = Profile{}

type userStub struct {
	user  database.User
	err   error
	calls int
}

func (s *userStub) GetUserById(_ context.Context, _ pgtype.UUID) (database.User, error) {
	s.calls++
	return s.user, s.err
}

func TestHasPremiumAccess(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    bool
	}{
		{"free", Profile{Tier: TierFree}, false},
		{"member21", Profile{Tier: TierMember21}, false},
		{"premium_tier", Profile{Tier: TierPremium}, true},
		{"is_premium_flag", Profile{IsPremium: true, Tier: TierFree}, true},
		{"admin_impersonating", Profile{AdminImpersonating: true}, true},
		{"bonus_questions_do_not_count", Profile{BonusQuestions: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.HasPremiumAccess())
		})
	}
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierPremium, ParseTier("premium"))
	assert.Equal(t, TierMember21, ParseTier("member21"))
	assert.Equal(t, TierFree, ParseTier("free"))
	assert.Equal(t, TierFree, ParseTier("platinum"))
}

func TestLiveRereadsEveryTime(t *testing.T) {
	stub := &userStub{user: database.User{Tier: "free"}}
	live := NewLive(stub, uuid.New())

	assert.False(t, live.HasPremiumAccess())

	stub.user.IsPremium = true
	assert.True(t, live.HasPremiumAccess())
	assert.Equal(t, 2, stub.calls)
}

func TestLiveLookupFailure(t *testing.T) {
	stub := &userStub{err: pgx.ErrNoRows}
	live := NewLive(stub, uuid.New())
	assert.False(t, live.HasPremiumAccess())

	_, err := Lookup(context.Background(), stub, uuid.New())
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}
