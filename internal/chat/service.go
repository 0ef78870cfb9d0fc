// Package chat runs the live conversations: one reveal machine per user,
// the oracle round trip of a question, the daily quota and the hub that
// pushes every change to the user's open tabs.
package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/microcosm-cc/bluemonday"

	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/entitlement"
	"github.com/johndosdos/astrochat/internal/model"
	"github.com/johndosdos/astrochat/internal/oracle"
	"github.com/johndosdos/astrochat/internal/reading"
	"github.com/johndosdos/astrochat/internal/reveal"
)

var (
	ErrQuotaExhausted  = errors.New("internal/chat: daily question quota exhausted")
	ErrPaymentRequired = errors.New("internal/chat: premium access required")
	ErrNotFound        = errors.New("internal/chat: message not found")
	ErrEmptyMessage    = errors.New("internal/chat: empty message")
	ErrUnknownPlan     = errors.New("internal/chat: unknown plan")

	ErrAlreadyConnected  = errors.New("internal/chat: already in a consultation")
	ErrNotConnected      = errors.New("internal/chat: no consultation with this astrologer")
	ErrAstrologerOffline = errors.New("internal/chat: astrologer is offline")
)

// Notices shown to the user when a question or an unlock is refused.
const (
	QuotaNotice   = "You have used today's questions. Upgrade for more guidance from the stars."
	PaywallNotice = "The deep dive is sealed. Upgrade to Premium to read it."
)

// Store is the persistence the service needs. *database.Queries implements
// it.
type Store interface {
	entitlement.UserGetter
	CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error)
	ListMessagesByUser(ctx context.Context, arg database.ListMessagesByUserParams) ([]database.Message, error)
	UpdateMessageLock(ctx context.Context, arg database.UpdateMessageLockParams) error
	GetDailyUsage(ctx context.Context, arg database.GetDailyUsageParams) (int32, error)
	IncrementDailyUsage(ctx context.Context, arg database.IncrementDailyUsageParams) (int32, error)
	UseBonusQuestion(ctx context.Context, userID pgtype.UUID) (int32, error)
	SetPremium(ctx context.Context, arg database.SetPremiumParams) (database.User, error)
	AddBonusQuestions(ctx context.Context, arg database.AddBonusQuestionsParams) (database.User, error)
	StartConsultation(ctx context.Context, arg database.StartConsultationParams) (database.Consultation, error)
	GetConsultation(ctx context.Context, userID pgtype.UUID) (database.Consultation, error)
	EndConsultation(ctx context.Context, userID pgtype.UUID) (database.Consultation, error)
}

// Publisher pushes events to the live clients of a user.
type Publisher interface {
	Publish(ev model.Event)
}

// Options tunes a Service. Zero values fall back to the defaults.
type Options struct {
	RevealInterval time.Duration
	FreshWindow    time.Duration
	// Override enables the hidden trigger phrase; nil disables it.
	Override *reveal.TriggerOverride

	// HistoryLimit is how many stored messages are restored into a session.
	HistoryLimit int
	// PromptHistory is how many earlier turns are sent to the generator.
	PromptHistory int

	FreeDailyQuestions    int
	PremiumDailyQuestions int

	// SessionTTL is how long an untouched session stays in memory.
	SessionTTL time.Duration
	Now        func() time.Time
}

func (o *Options) defaults() {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.PromptHistory <= 0 {
		o.PromptHistory = 10
	}
	if o.FreeDailyQuestions <= 0 {
		o.FreeDailyQuestions = 1
	}
	if o.PremiumDailyQuestions <= 0 {
		o.PremiumDailyQuestions = 10
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Plan is an upgrade offered to the user.
type Plan string

const (
	// PlanSubscription grants premium access.
	PlanSubscription Plan = "subscription"
	// PlanQuestion buys one extra question.
	PlanQuestion Plan = "question"
)

func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanSubscription, PlanQuestion:
		return Plan(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
}

// AskResult is what a question added to the conversation.
type AskResult struct {
	// Question is the user's message. Unset when the input fired the trigger
	// phrase, which is never stored.
	Question *model.ChatMessage `json:"question,omitempty"`
	// Reading is the oracle's answer, still revealing when returned.
	Reading *model.ChatMessage `json:"reading,omitempty"`
	// Notice is the system message of a fired trigger phrase.
	Notice *model.ChatMessage `json:"notice,omitempty"`
	// Unlocked lists the messages the trigger phrase unlocked.
	Unlocked []uuid.UUID `json:"unlocked,omitempty"`
}

// Service owns the sessions of every active user.
type Service struct {
	store     Store
	gen       oracle.Generator
	pub       Publisher
	opts      Options
	sanitizer *bluemonday.Policy

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewService returns a new instance of Service.
func NewService(store Store, gen oracle.Generator, pub Publisher, opts Options) *Service {
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		store:     store,
		gen:       gen,
		pub:       pub,
		opts:      opts,
		sanitizer: bluemonday.StrictPolicy(),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// session returns the live session of userID, creating it and restoring
// its history on first use.
func (s *Service) session(ctx context.Context, userID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = s.newSession(userID)
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	sess.touch(s.opts.Now())

	if err := sess.load(ctx, s.store, s.opts.HistoryLimit); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) newSession(userID uuid.UUID) *Session {
	ctx, cancel := context.WithCancel(s.ctx)
	sess := &Session{
		UserID: userID,
		ent:    entitlement.NewLive(s.store, userID),
		ctx:    ctx,
		cancel: cancel,
	}
	sess.machine = reveal.New(reveal.Config{
		RevealInterval: s.opts.RevealInterval,
		FreshWindow:    s.opts.FreshWindow,
		Now:            s.opts.Now,
		Override:       s.opts.Override,
		OnProgress: func(id uuid.UUID) {
			s.publishView(sess, id, model.EventUpdate)
		},
	})
	return sess
}

func (s *Service) view(sess *Session, id uuid.UUID) (model.ChatMessage, bool) {
	return s.resolve(sess, id, sess.ent)
}

func (s *Service) resolve(sess *Session, id uuid.UUID, ent reveal.Entitlement) (model.ChatMessage, bool) {
	v, ok := sess.machine.View(id, ent)
	if !ok {
		return model.ChatMessage{}, false
	}
	return model.FromView(v), true
}

// renderPass reads the entitlement once for a batch of views.
func renderPass(sess *Session) reveal.Entitlement {
	premium := sess.ent.HasPremiumAccess()
	return reveal.EntitlementFunc(func() bool { return premium })
}

// snapshot resolves msg through its session. A session closed while the
// message was being made no longer holds it; the message is then shown in
// full.
func (s *Service) snapshot(sess *Session, msg reveal.Message) model.ChatMessage {
	if cm, ok := s.view(sess, msg.ID); ok {
		return cm
	}
	return model.FromView(reveal.Resolve(msg, reveal.Progress{Visible: msg.Gist()}, sess.ent))
}

func (s *Service) publishView(sess *Session, id uuid.UUID, kind model.EventKind) {
	cm, ok := s.view(sess, id)
	if !ok {
		return
	}
	s.pub.Publish(model.Event{UserID: sess.UserID, Kind: kind, Message: &cm})
}

// clean strips any markup from user input and keeps the plain text.
// Rendering escapes it again.
func (s *Service) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

// Ask submits a user input. Input matching the trigger phrase unlocks the
// waiting messages and never reaches the generator. Anything else is a
// question: it is stored, charged against the quota and answered by the
// oracle, whose reading starts revealing before Ask returns. During a
// consultation a question is only stored, for the astrologer to answer.
func (s *Service) Ask(ctx context.Context, userID uuid.UUID, text string) (AskResult, error) {
	text = s.clean(text)
	if text == "" {
		return AskResult{}, ErrEmptyMessage
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return AskResult{}, err
	}

	sess.askMu.Lock()
	defer sess.askMu.Unlock()

	if n, ok := sess.machine.SubmitUserInput(text); ok {
		return s.triggered(ctx, sess, n)
	}

	// During a consultation the question goes to the astrologer instead.
	consult, err := s.store.GetConsultation(ctx, pgUUID(userID))
	switch {
	case err == nil:
		q, err := s.post(ctx, sess, text, reveal.User)
		if err != nil {
			return AskResult{}, err
		}
		slog.InfoContext(ctx, "question sent to astrologer",
			slog.String("user_id", userID.String()),
			slog.String("astrologer_id", consult.AstrologerID))
		return AskResult{Question: &q}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return AskResult{}, fmt.Errorf("internal/chat: failed to read consultation: %w", err)
	}

	profile, err := entitlement.Lookup(ctx, s.store, userID)
	if err != nil {
		return AskResult{}, fmt.Errorf("internal/chat: failed to read entitlement: %w", err)
	}

	used, err := s.store.GetDailyUsage(ctx, database.GetDailyUsageParams{
		UserID: pgUUID(userID),
		Day:    s.today(),
	})
	if err != nil {
		return AskResult{}, fmt.Errorf("internal/chat: failed to read daily usage: %w", err)
	}
	if int(used) >= s.dailyLimit(profile) && profile.BonusQuestions <= 0 {
		return AskResult{}, ErrQuotaExhausted
	}

	// Earlier turns are collected before the question joins the machine.
	history := s.promptHistory(sess)
	opening := !hasReading(sess.machine.Messages())

	q, err := s.post(ctx, sess, text, reveal.User)
	if err != nil {
		return AskResult{}, err
	}

	raw, genErr := s.gen.Generate(ctx, oracle.Prompt{
		Question: text,
		History:  history,
		Now:      s.opts.Now(),
	})
	if genErr != nil {
		slog.WarnContext(ctx, "oracle generation failed",
			slog.String("user_id", userID.String()),
			"error", genErr)
		raw = oracle.FallbackText(genErr)
	}

	// Entitlement is sampled once here; the lock decision stays fixed.
	policy := reveal.LockPaywall
	if opening && s.opts.Override != nil {
		policy = reveal.LockChallenge
	}
	answer := sess.machine.Create(raw, reveal.AiOracle, s.opts.Now(), profile.HasPremiumAccess(), policy)
	if err := s.persist(ctx, userID, answer); err != nil {
		sess.machine.Remove(answer.ID)
		return AskResult{}, err
	}

	if genErr == nil {
		if err := s.charge(ctx, userID, used, profile); err != nil {
			slog.ErrorContext(ctx, "failed to charge question",
				slog.String("user_id", userID.String()),
				"error", err)
		}
	}

	// The new bubble goes out before its first tick.
	s.publishView(sess, answer.ID, model.EventMessage)
	if r := sess.machine.Display(sess.ctx, answer.ID); r != nil {
		select {
		case <-r.Done():
			s.publishView(sess, answer.ID, model.EventUpdate)
		default:
		}
	}
	s.publishAccount(ctx, userID)

	slog.InfoContext(ctx, "oracle answered",
		slog.String("user_id", userID.String()),
		slog.Int("question_words", reading.Words(text)),
		slog.Bool("locked", answer.Locked),
		slog.String("status", answer.Status.String()))

	a := s.snapshot(sess, answer)
	return AskResult{Question: &q, Reading: &a}, nil
}

func (s *Service) triggered(ctx context.Context, sess *Session, n reveal.Notification) (AskResult, error) {
	for _, id := range n.Unlocked {
		s.persistUnlock(ctx, sess, id)
		s.publishView(sess, id, model.EventUpdate)
	}

	if err := s.persist(ctx, sess.UserID, n.Message); err != nil {
		slog.ErrorContext(ctx, "failed to store trigger notice", "error", err)
	}
	sess.machine.Display(sess.ctx, n.Message.ID)
	s.publishView(sess, n.Message.ID, model.EventMessage)

	slog.InfoContext(ctx, "trigger phrase fired",
		slog.String("user_id", sess.UserID.String()),
		slog.Int("unlocked", len(n.Unlocked)))

	notice := s.snapshot(sess, n.Message)
	return AskResult{Notice: &notice, Unlocked: n.Unlocked}, nil
}

// Unlock reveals the deep dive of a message for an entitled user. Without
// premium access it returns ErrPaymentRequired and nothing changes.
func (s *Service) Unlock(ctx context.Context, userID, messageID uuid.UUID) (model.ChatMessage, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return model.ChatMessage{}, err
	}

	sess.askMu.Lock()
	defer sess.askMu.Unlock()

	if _, ok := sess.machine.Get(messageID); !ok {
		return model.ChatMessage{}, ErrNotFound
	}

	profile, err := entitlement.Lookup(ctx, s.store, userID)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("internal/chat: failed to read entitlement: %w", err)
	}
	if !profile.HasPremiumAccess() {
		return model.ChatMessage{}, ErrPaymentRequired
	}

	if sess.machine.Unlock(messageID) {
		s.persistUnlock(ctx, sess, messageID)
	}
	s.publishView(sess, messageID, model.EventUpdate)

	cm, _ := s.view(sess, messageID)
	return cm, nil
}

// Upgrade applies a successful purchase. A subscription grants premium
// access, so every locked message of a live session is republished with
// its deep dive visible.
func (s *Service) Upgrade(ctx context.Context, userID uuid.UUID, plan Plan) (model.Account, error) {
	switch plan {
	case PlanSubscription:
		_, err := s.store.SetPremium(ctx, database.SetPremiumParams{
			UserID:    pgUUID(userID),
			IsPremium: true,
			Tier:      string(entitlement.TierPremium),
		})
		if err != nil {
			return model.Account{}, fmt.Errorf("internal/chat: failed to set premium: %w", err)
		}
	case PlanQuestion:
		_, err := s.store.AddBonusQuestions(ctx, database.AddBonusQuestionsParams{
			UserID: pgUUID(userID),
			Count:  1,
		})
		if err != nil {
			return model.Account{}, fmt.Errorf("internal/chat: failed to add question: %w", err)
		}
	default:
		return model.Account{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}

	slog.InfoContext(ctx, "account upgraded",
		slog.String("user_id", userID.String()),
		slog.String("plan", string(plan)))

	if plan == PlanSubscription {
		if sess := s.live(userID); sess != nil {
			ent := renderPass(sess)
			for _, msg := range sess.machine.Messages() {
				if !msg.Locked {
					continue
				}
				if cm, ok := s.resolve(sess, msg.ID, ent); ok {
					s.pub.Publish(model.Event{UserID: userID, Kind: model.EventUpdate, Message: &cm})
				}
			}
		}
	}

	acc, err := s.Account(ctx, userID)
	if err != nil {
		return model.Account{}, err
	}
	s.pub.Publish(model.Event{UserID: userID, Kind: model.EventAccount, Account: &acc})
	return acc, nil
}

// History returns the conversation of userID as currently visible.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]model.ChatMessage, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	ent := renderPass(sess)
	msgs := sess.machine.Messages()
	out := make([]model.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if cm, ok := s.resolve(sess, msg.ID, ent); ok {
			out = append(out, cm)
		}
	}
	return out, nil
}

// Account summarises the entitlement and remaining questions of userID.
func (s *Service) Account(ctx context.Context, userID uuid.UUID) (model.Account, error) {
	u, err := s.store.GetUserById(ctx, pgUUID(userID))
	if err != nil {
		return model.Account{}, fmt.Errorf("internal/chat: failed to get user: %w", err)
	}
	profile := entitlement.FromUser(u)

	used, err := s.store.GetDailyUsage(ctx, database.GetDailyUsageParams{
		UserID: pgUUID(userID),
		Day:    s.today(),
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("internal/chat: failed to read daily usage: %w", err)
	}

	left := max(s.dailyLimit(profile)-int(used), 0) + profile.BonusQuestions

	return model.Account{
		UserID:           userID,
		Username:         u.Username,
		IsPremium:        profile.IsPremium,
		Tier:             string(profile.Tier),
		HasPremiumAccess: profile.HasPremiumAccess(),
		QuestionsLeft:    left,
		BonusQuestions:   profile.BonusQuestions,
	}, nil
}

func (s *Service) publishAccount(ctx context.Context, userID uuid.UUID) {
	acc, err := s.Account(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "failed to refresh account", "error", err)
		return
	}
	s.pub.Publish(model.Event{UserID: userID, Kind: model.EventAccount, Account: &acc})
}

func (s *Service) live(userID uuid.UUID) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// Run evicts idle sessions until ctx is cancelled, then stops every
// running reveal.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle()
		case <-ctx.Done():
			s.Close()
			return
		}
	}
}

func (s *Service) evictIdle() {
	cutoff := s.opts.Now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	candidates := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.Unlock()

	var idle []*Session
	for _, sess := range candidates {
		if !sess.idleSince().Before(cutoff) {
			continue
		}
		// The session may have been replaced or touched since the snapshot.
		s.mu.Lock()
		if s.sessions[sess.UserID] == sess && sess.idleSince().Before(cutoff) {
			delete(s.sessions, sess.UserID)
			idle = append(idle, sess)
		}
		s.mu.Unlock()
	}

	for _, sess := range idle {
		sess.close()
	}
	if len(idle) > 0 {
		slog.Info("evicted idle sessions", slog.Int("count", len(idle)))
	}
}

// Close stops every session.
func (s *Service) Close() {
	s.cancel()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func (s *Service) persist(ctx context.Context, userID uuid.UUID, msg reveal.Message) error {
	_, err := s.store.CreateMessage(ctx, database.CreateMessageParams{
		MessageID:    pgUUID(msg.ID),
		UserID:       pgUUID(userID),
		Sender:       msg.Sender.String(),
		Content:      msg.RawText(),
		Locked:       msg.Locked,
		UnlockStatus: msg.Status.String(),
		CreatedAt:    pgtype.Timestamptz{Time: msg.CreatedAt, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("internal/chat: failed to store message: %w", err)
	}
	return nil
}

// post adds a message that never locks, stores it and shows it in full on
// every live client.
func (s *Service) post(ctx context.Context, sess *Session, text string, sender reveal.SenderKind) (model.ChatMessage, error) {
	msg := sess.machine.Create(text, sender, s.opts.Now(), false, reveal.LockPaywall)
	if err := s.persist(ctx, sess.UserID, msg); err != nil {
		sess.machine.Remove(msg.ID)
		return model.ChatMessage{}, err
	}
	sess.machine.Display(sess.ctx, msg.ID)
	s.publishView(sess, msg.ID, model.EventMessage)
	return s.snapshot(sess, msg), nil
}

func (s *Service) persistUnlock(ctx context.Context, sess *Session, id uuid.UUID) {
	msg, ok := sess.machine.Get(id)
	if !ok {
		return
	}
	err := s.store.UpdateMessageLock(ctx, database.UpdateMessageLockParams{
		MessageID:    pgUUID(id),
		UserID:       pgUUID(sess.UserID),
		Locked:       msg.Locked,
		UnlockStatus: msg.Status.String(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to store unlock",
			slog.String("message_id", id.String()),
			"error", err)
	}
}

// charge spends the daily allowance first and bonus questions after it.
func (s *Service) charge(ctx context.Context, userID uuid.UUID, used int32, p entitlement.Profile) error {
	if int(used) < s.dailyLimit(p) {
		_, err := s.store.IncrementDailyUsage(ctx, database.IncrementDailyUsageParams{
			UserID: pgUUID(userID),
			Day:    s.today(),
		})
		return err
	}

	_, err := s.store.UseBonusQuestion(ctx, pgUUID(userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrQuotaExhausted
	}
	return err
}

func (s *Service) dailyLimit(p entitlement.Profile) int {
	if p.HasPremiumAccess() {
		return s.opts.PremiumDailyQuestions
	}
	return s.opts.FreeDailyQuestions
}

func (s *Service) today() pgtype.Date {
	y, m, d := s.opts.Now().UTC().Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// promptHistory returns the latest user and oracle turns of the session.
func (s *Service) promptHistory(sess *Session) []oracle.Turn {
	var turns []oracle.Turn
	for _, msg := range sess.machine.Messages() {
		switch msg.Sender {
		case reveal.User:
			turns = append(turns, oracle.Turn{Role: oracle.RoleUser, Text: msg.RawText()})
		case reveal.AiOracle:
			turns = append(turns, oracle.Turn{Role: oracle.RoleModel, Text: msg.RawText()})
		}
	}
	if len(turns) > s.opts.PromptHistory {
		turns = turns[len(turns)-s.opts.PromptHistory:]
	}
	return turns
}

func hasReading(msgs []reveal.Message) bool {
	for _, msg := range msgs {
		if msg.Sender == reveal.AiOracle {
			return true
		}
	}
	return false
}
