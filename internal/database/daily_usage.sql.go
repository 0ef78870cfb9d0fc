package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getDailyUsage = `-- name: GetDailyUsage :one
SELECT COALESCE(
    (SELECT questions FROM daily_usage WHERE user_id = $1 AND day = $2),
    0
)::INTEGER AS questions`

type GetDailyUsageParams struct {
	UserID pgtype.UUID
	Day    pgtype.Date
}

func (q *Queries) GetDailyUsage(ctx context.Context, arg GetDailyUsageParams) (int32, error) {
	row := q.db.QueryRow(ctx, getDailyUsage, arg.UserID, arg.Day)
	var questions int32
	err := row.Scan(&questions)
	return questions, err
}

const incrementDailyUsage = `-- name: IncrementDailyUsage :one
INSERT INTO daily_usage (user_id, day, questions)
VALUES ($1, $2, 1)
ON CONFLICT (user_id, day)
DO UPDATE SET questions = daily_usage.questions + 1
RETURNING questions`

type IncrementDailyUsageParams struct {
	UserID pgtype.UUID
	Day    pgtype.Date
}

func (q *Queries) IncrementDailyUsage(ctx context.Context, arg IncrementDailyUsageParams) (int32, error) {
	row := q.db.QueryRow(ctx, incrementDailyUsage, arg.UserID, arg.Day)
	var questions int32
	err := row.Scan(&questions)
	return questions, err
}
