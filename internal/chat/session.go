package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/reveal"
)

// Session is the in-memory conversation of one user. Its machine holds the
// messages, their lock state and the running reveals.
type Session struct {
	UserID  uuid.UUID
	machine *reveal.Machine
	ent     reveal.Entitlement

	ctx    context.Context
	cancel context.CancelFunc

	// askMu serialises questions, unlocks and upgrades of this user.
	askMu sync.Mutex

	// loadMu guards the one-time history restore, which may wait on the
	// database.
	loadMu sync.Mutex
	loaded bool

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// load restores the stored history into the machine once. History is
// displayed right away: old messages appear in full and only messages
// younger than the fresh window animate.
func (s *Session) load(ctx context.Context, store Store, limit int) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.loaded {
		return nil
	}

	rows, err := store.ListMessagesByUser(ctx, database.ListMessagesByUserParams{
		UserID: pgUUID(s.UserID),
		Limit:  int32(limit),
	})
	if err != nil {
		return fmt.Errorf("internal/chat: failed to load history: %w", err)
	}

	for _, row := range rows {
		sender, err := reveal.ParseSenderKind(row.Sender)
		if err != nil {
			slog.WarnContext(ctx, "skipping stored message", "error", err)
			continue
		}
		status, err := reveal.ParseUnlockStatus(row.UnlockStatus)
		if err != nil {
			slog.WarnContext(ctx, "unknown unlock status, treating as none", "error", err)
			status = reveal.StatusNone
		}

		msg := s.machine.Restore(row.MessageID.Bytes, row.Content, sender, row.CreatedAt.Time, row.Locked, status)
		s.machine.Display(s.ctx, msg.ID)
	}

	s.loaded = true
	return nil
}

func (s *Session) close() {
	s.cancel()
	s.machine.Close()
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
