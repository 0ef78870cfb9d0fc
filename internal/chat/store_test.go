package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/model"
	"github.com/johndosdos/astrochat/internal/oracle"
)

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]database.User
	messages []database.Message
	usage    map[string]int32
	consults map[uuid.UUID]database.Consultation
	lookups  int
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]database.User),
		usage:    make(map[string]int32),
		consults: make(map[uuid.UUID]database.Consultation),
	}
}

func (s *memStore) addUser(username string, premium bool) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	tier := "free"
	if premium {
		tier = "premium"
	}
	s.users[id] = database.User{
		UserID:    pgUUID(id),
		Username:  username,
		Email:     username + "@test.com",
		IsPremium: premium,
		Tier:      tier,
	}
	return id
}

func (s *memStore) message(id uuid.UUID) (database.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.MessageID.Bytes == id {
			return m, true
		}
	}
	return database.Message{}, false
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memStore) userLookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// slowHistory holds the history load of one user until release is closed.
type slowHistory struct {
	*memStore
	slow    uuid.UUID
	entered chan struct{}
	release chan struct{}
}

func (s *slowHistory) ListMessagesByUser(ctx context.Context, arg database.ListMessagesByUserParams) ([]database.Message, error) {
	if arg.UserID.Bytes == s.slow {
		close(s.entered)
		<-s.release
	}
	return s.memStore.ListMessagesByUser(ctx, arg)
}

func usageKey(userID pgtype.UUID, day pgtype.Date) string {
	return uuid.UUID(userID.Bytes).String() + day.Time.Format(time.DateOnly)
}

func (s *memStore) GetUserById(ctx context.Context, userID pgtype.UUID) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	u, ok := s.users[userID.Bytes]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *memStore) CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := database.Message(arg)
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) ListMessagesByUser(ctx context.Context, arg database.ListMessagesByUserParams) ([]database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Message
	for _, m := range s.messages {
		if m.UserID == arg.UserID {
			out = append(out, m)
		}
	}
	if len(out) > int(arg.Limit) {
		out = out[len(out)-int(arg.Limit):]
	}
	return out, nil
}

func (s *memStore) UpdateMessageLock(ctx context.Context, arg database.UpdateMessageLockParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.MessageID == arg.MessageID && m.UserID == arg.UserID {
			s.messages[i].Locked = arg.Locked
			s.messages[i].UnlockStatus = arg.UnlockStatus
		}
	}
	return nil
}

func (s *memStore) GetDailyUsage(ctx context.Context, arg database.GetDailyUsageParams) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[usageKey(arg.UserID, arg.Day)], nil
}

func (s *memStore) IncrementDailyUsage(ctx context.Context, arg database.IncrementDailyUsageParams) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := usageKey(arg.UserID, arg.Day)
	s.usage[k]++
	return s.usage[k], nil
}

func (s *memStore) UseBonusQuestion(ctx context.Context, userID pgtype.UUID) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID.Bytes]
	if !ok || u.BonusQuestions <= 0 {
		return 0, pgx.ErrNoRows
	}
	u.BonusQuestions--
	s.users[userID.Bytes] = u
	return u.BonusQuestions, nil
}

func (s *memStore) SetPremium(ctx context.Context, arg database.SetPremiumParams) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[arg.UserID.Bytes]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	u.IsPremium = arg.IsPremium
	u.Tier = arg.Tier
	s.users[arg.UserID.Bytes] = u
	return u, nil
}

func (s *memStore) AddBonusQuestions(ctx context.Context, arg database.AddBonusQuestionsParams) (database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[arg.UserID.Bytes]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	u.BonusQuestions += arg.Count
	s.users[arg.UserID.Bytes] = u
	return u, nil
}

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// generator counts calls and answers with fn.
type generator struct {
	mu    sync.Mutex
	calls []oracle.Prompt
	fn    func(p oracle.Prompt) (string, error)
}

func answer(text string) *generator {
	return &generator{fn: func(oracle.Prompt) (string, error) { return text, nil }}
}

func (g *generator) Generate(ctx context.Context, p oracle.Prompt) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, p)
	g.mu.Unlock()
	return g.fn(p)
}

func (g *generator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (s *memStore) StartConsultation(ctx context.Context, arg database.StartConsultationParams) (database.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consults[arg.UserID.Bytes]; ok {
		return database.Consultation{}, pgx.ErrNoRows
	}
	c := database.Consultation(arg)
	s.consults[arg.UserID.Bytes] = c
	return c, nil
}

func (s *memStore) GetConsultation(ctx context.Context, userID pgtype.UUID) (database.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consults[userID.Bytes]
	if !ok {
		return database.Consultation{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *memStore) EndConsultation(ctx context.Context, userID pgtype.UUID) (database.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consults[userID.Bytes]
	if !ok {
		return database.Consultation{}, pgx.ErrNoRows
	}
	delete(s.consults, userID.Bytes)
	return c, nil
}
