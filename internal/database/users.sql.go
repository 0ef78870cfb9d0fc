package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `user_id, username, email, is_premium, tier, admin_impersonating, bonus_questions, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.UserID,
		&i.Username,
		&i.Email,
		&i.IsPremium,
		&i.Tier,
		&i.AdminImpersonating,
		&i.BonusQuestions,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (user_id, username, email)
VALUES ($1, $2, $3)
RETURNING ` + userColumns

type CreateUserParams struct {
	UserID   pgtype.UUID
	Username string
	Email    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.UserID, arg.Username, arg.Email)
	return scanUser(row)
}

const getUserById = `-- name: GetUserById :one
SELECT ` + userColumns + `
FROM users
WHERE user_id = $1`

func (q *Queries) GetUserById(ctx context.Context, userID pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserById, userID)
	return scanUser(row)
}

const getUserWithPasswordByEmail = `-- name: GetUserWithPasswordByEmail :one
SELECT u.user_id, u.username, u.email, p.hashed_password
FROM users u
JOIN passwords p ON p.user_id = u.user_id
WHERE u.email = $1`

type GetUserWithPasswordByEmailRow struct {
	UserID         pgtype.UUID
	Username       string
	Email          string
	HashedPassword string
}

func (q *Queries) GetUserWithPasswordByEmail(ctx context.Context, email string) (GetUserWithPasswordByEmailRow, error) {
	row := q.db.QueryRow(ctx, getUserWithPasswordByEmail, email)
	var i GetUserWithPasswordByEmailRow
	err := row.Scan(
		&i.UserID,
		&i.Username,
		&i.Email,
		&i.HashedPassword,
	)
	return i, err
}

const createPassword = `-- name: CreatePassword :one
INSERT INTO passwords (user_id, hashed_password, created_at)
VALUES ($1, $2, $3)
RETURNING user_id, hashed_password, created_at`

type CreatePasswordParams struct {
	UserID         pgtype.UUID
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

func (q *Queries) CreatePassword(ctx context.Context, arg CreatePasswordParams) (Password, error) {
	row := q.db.QueryRow(ctx, createPassword, arg.UserID, arg.HashedPassword, arg.CreatedAt)
	var i Password
	err := row.Scan(&i.UserID, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const setPremium = `-- name: SetPremium :one
UPDATE users
SET is_premium = $2, tier = $3, updated_at = NOW()
WHERE user_id = $1
RETURNING ` + userColumns

type SetPremiumParams struct {
	UserID    pgtype.UUID
	IsPremium bool
	Tier      string
}

func (q *Queries) SetPremium(ctx context.Context, arg SetPremiumParams) (User, error) {
	row := q.db.QueryRow(ctx, setPremium, arg.UserID, arg.IsPremium, arg.Tier)
	return scanUser(row)
}

const setAdminImpersonating = `-- name: SetAdminImpersonating :exec
UPDATE users
SET admin_impersonating = $2, updated_at = NOW()
WHERE user_id = $1`

type SetAdminImpersonatingParams struct {
	UserID             pgtype.UUID
	AdminImpersonating bool
}

func (q *Queries) SetAdminImpersonating(ctx context.Context, arg SetAdminImpersonatingParams) error {
	_, err := q.db.Exec(ctx, setAdminImpersonating, arg.UserID, arg.AdminImpersonating)
	return err
}

const addBonusQuestions = `-- name: AddBonusQuestions :one
UPDATE users
SET bonus_questions = bonus_questions + $2, updated_at = NOW()
WHERE user_id = $1
RETURNING ` + userColumns

type AddBonusQuestionsParams struct {
	UserID pgtype.UUID
	Count  int32
}

func (q *Queries) AddBonusQuestions(ctx context.Context, arg AddBonusQuestionsParams) (User, error) {
	row := q.db.QueryRow(ctx, addBonusQuestions, arg.UserID, arg.Count)
	return scanUser(row)
}

const useBonusQuestion = `-- name: UseBonusQuestion :one
UPDATE users
SET bonus_questions = bonus_questions - 1, updated_at = NOW()
WHERE user_id = $1 AND bonus_questions > 0
RETURNING bonus_questions`

// UseBonusQuestion returns pgx.ErrNoRows when the user has none left.
func (q *Queries) UseBonusQuestion(ctx context.Context, userID pgtype.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, useBonusQuestion, userID)
	var bonusQuestions int32
	err := row.Scan(&bonusQuestions)
	return bonusQuestions, err
}
