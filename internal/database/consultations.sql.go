package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const startConsultation = `-- name: StartConsultation :one
INSERT INTO consultations (user_id, astrologer_id, started_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING
RETURNING user_id, astrologer_id, started_at`

type StartConsultationParams struct {
	UserID       pgtype.UUID
	AstrologerID string
	StartedAt    pgtype.Timestamptz
}

// StartConsultation returns pgx.ErrNoRows when the user already has one.
func (q *Queries) StartConsultation(ctx context.Context, arg StartConsultationParams) (Consultation, error) {
	row := q.db.QueryRow(ctx, startConsultation, arg.UserID, arg.AstrologerID, arg.StartedAt)
	var i Consultation
	err := row.Scan(&i.UserID, &i.AstrologerID, &i.StartedAt)
	return i, err
}

const getConsultation = `-- name: GetConsultation :one
SELECT user_id, astrologer_id, started_at
FROM consultations
WHERE user_id = $1`

func (q *Queries) GetConsultation(ctx context.Context, userID pgtype.UUID) (Consultation, error) {
	row := q.db.QueryRow(ctx, getConsultation, userID)
	var i Consultation
	err := row.Scan(&i.UserID, &i.AstrologerID, &i.StartedAt)
	return i, err
}

const endConsultation = `-- name: EndConsultation :one
DELETE FROM consultations
WHERE user_id = $1
RETURNING user_id, astrologer_id, started_at`

func (q *Queries) EndConsultation(ctx context.Context, userID pgtype.UUID) (Consultation, error) {
	row := q.db.QueryRow(ctx, endConsultation, userID)
	var i Consultation
	err := row.Scan(&i.UserID, &i.AstrologerID, &i.StartedAt)
	return i, err
}
