package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (message_id, user_id, sender, content, locked, unlock_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING message_id, user_id, sender, content, locked, unlock_status, created_at`

type CreateMessageParams struct {
	MessageID    pgtype.UUID
	UserID       pgtype.UUID
	Sender       string
	Content      string
	Locked       bool
	UnlockStatus string
	CreatedAt    pgtype.Timestamptz
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage,
		arg.MessageID,
		arg.UserID,
		arg.Sender,
		arg.Content,
		arg.Locked,
		arg.UnlockStatus,
		arg.CreatedAt,
	)
	var i Message
	err := row.Scan(
		&i.MessageID,
		&i.UserID,
		&i.Sender,
		&i.Content,
		&i.Locked,
		&i.UnlockStatus,
		&i.CreatedAt,
	)
	return i, err
}

const listMessagesByUser = `-- name: ListMessagesByUser :many
SELECT message_id, user_id, sender, content, locked, unlock_status, created_at
FROM (
    SELECT seq, message_id, user_id, sender, content, locked, unlock_status, created_at
    FROM messages
    WHERE user_id = $1
    ORDER BY seq DESC
    LIMIT $2
) recent
ORDER BY seq ASC`

type ListMessagesByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
}

// ListMessagesByUser returns the latest messages of a user, oldest first.
func (q *Queries) ListMessagesByUser(ctx context.Context, arg ListMessagesByUserParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		var i Message
		if err := rows.Scan(
			&i.MessageID,
			&i.UserID,
			&i.Sender,
			&i.Content,
			&i.Locked,
			&i.UnlockStatus,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateMessageLock = `-- name: UpdateMessageLock :exec
UPDATE messages
SET locked = $3, unlock_status = $4
WHERE message_id = $1 AND user_id = $2`

type UpdateMessageLockParams struct {
	MessageID    pgtype.UUID
	UserID       pgtype.UUID
	Locked       bool
	UnlockStatus string
}

func (q *Queries) UpdateMessageLock(ctx context.Context, arg UpdateMessageLockParams) error {
	_, err := q.db.Exec(ctx, updateMessageLock,
		arg.MessageID,
		arg.UserID,
		arg.Locked,
		arg.UnlockStatus,
	)
	return err
}
