package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/catalog"
	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/model"
	"github.com/johndosdos/astrochat/internal/reveal"
)

const recommendText = "I highly recommend you use this spiritual remedy for your current dosha."

// Connect starts a consultation with a human astrologer. The session fee is
// settled before the call, so connecting always succeeds for an online
// astrologer. Connecting again to the same astrologer resumes the
// consultation and returns a nil message.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID, astrologerID string) (*model.ChatMessage, error) {
	astro, ok := catalog.FindAstrologer(astrologerID)
	if !ok {
		return nil, ErrNotFound
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess.askMu.Lock()
	defer sess.askMu.Unlock()

	current, err := s.store.GetConsultation(ctx, pgUUID(userID))
	switch {
	case err == nil && current.AstrologerID == astro.ID:
		return nil, nil
	case err == nil:
		return nil, ErrAlreadyConnected
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("internal/chat: failed to read consultation: %w", err)
	}

	if !astro.Online {
		return nil, ErrAstrologerOffline
	}

	_, err = s.store.StartConsultation(ctx, database.StartConsultationParams{
		UserID:       pgUUID(userID),
		AstrologerID: astro.ID,
		StartedAt:    pgtype.Timestamptz{Time: s.opts.Now(), Valid: true},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyConnected
	}
	if err != nil {
		return nil, fmt.Errorf("internal/chat: failed to start consultation: %w", err)
	}

	slog.InfoContext(ctx, "consultation started",
		slog.String("user_id", userID.String()),
		slog.String("astrologer_id", astro.ID),
		slog.Float64("session_price", astro.SessionPrice()))

	cm, err := s.post(ctx, sess, fmt.Sprintf("You are now connected to %s. Your session has started.", astro.Name), reveal.System)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// Disconnect ends the current consultation of userID.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) (model.ChatMessage, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return model.ChatMessage{}, err
	}

	sess.askMu.Lock()
	defer sess.askMu.Unlock()

	ended, err := s.store.EndConsultation(ctx, pgUUID(userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChatMessage{}, ErrNotConnected
	}
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("internal/chat: failed to end consultation: %w", err)
	}

	name := ended.AstrologerID
	if astro, ok := catalog.FindAstrologer(ended.AstrologerID); ok {
		name = astro.Name
	}

	slog.InfoContext(ctx, "consultation ended",
		slog.String("user_id", userID.String()),
		slog.String("astrologer_id", ended.AstrologerID))

	return s.post(ctx, sess, fmt.Sprintf("Your session with %s has ended. Thank you for consulting.", name), reveal.System)
}

// Reply posts an astrologer's answer into the conversation of userID. A
// productID appends that remedy to the reply. Astrologer messages are never
// locked and never animated.
func (s *Service) Reply(ctx context.Context, astrologerID string, userID uuid.UUID, text, productID string) (model.ChatMessage, error) {
	text = s.clean(text)

	if productID != "" {
		product, ok := catalog.FindProduct(productID)
		if !ok {
			return model.ChatMessage{}, ErrNotFound
		}
		if text == "" {
			text = recommendText
		}
		text += "\n\nRecommended remedy: " + product.Name
	}
	if text == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	current, err := s.store.GetConsultation(ctx, pgUUID(userID))
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && current.AstrologerID != astrologerID) {
		return model.ChatMessage{}, ErrNotConnected
	}
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("internal/chat: failed to read consultation: %w", err)
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return model.ChatMessage{}, err
	}

	sess.askMu.Lock()
	defer sess.askMu.Unlock()

	return s.post(ctx, sess, text, reveal.HumanAstrologer)
}
