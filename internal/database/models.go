package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Consultation struct {
	UserID       pgtype.UUID
	AstrologerID string
	StartedAt    pgtype.Timestamptz
}

type DailyUsage struct {
	UserID    pgtype.UUID
	Day       pgtype.Date
	Questions int32
}

type Message struct {
	MessageID    pgtype.UUID
	UserID       pgtype.UUID
	Sender       string
	Content      string
	Locked       bool
	UnlockStatus string
	CreatedAt    pgtype.Timestamptz
}

type Password struct {
	UserID         pgtype.UUID
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

type RefreshToken struct {
	Token     string
	UserID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
	ExpiresAt pgtype.Timestamptz
	RevokedAt pgtype.Timestamptz
}

type User struct {
	UserID             pgtype.UUID
	Username           string
	Email              string
	IsPremium          bool
	Tier               string
	AdminImpersonating bool
	BonusQuestions     int32
	CreatedAt          pgtype.Timestamptz
	UpdatedAt          pgtype.Timestamptz
}
