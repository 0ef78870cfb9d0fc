package reveal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/reading"
)

const (
	DefaultRevealInterval = 50 * time.Millisecond
	DefaultFreshWindow    = 60 * time.Second
)

// Config tunes a Machine. The zero value uses the defaults and has the
// trigger override disabled.
type Config struct {
	// RevealInterval is the delay between two revealed tokens.
	RevealInterval time.Duration
	// FreshWindow is how young a message must be, at first display, to be
	// animated.
	FreshWindow time.Duration
	// Now is the wall clock.
	Now func() time.Time
	// Override enables the hidden trigger phrase. nil disables it.
	Override *TriggerOverride
	// OnProgress is called outside the machine lock after every reveal tick.
	OnProgress func(id uuid.UUID)
}

// Progress is the ephemeral reveal state of a displayed message.
type Progress struct {
	Visible   string
	Revealing bool
}

type entry struct {
	msg       Message
	displayed bool
	progress  Progress
	tokens    []string
	next      int
	reveal    *Reveal
}

// advance appends the next token and reports whether the reveal is over.
func (e *entry) advance() bool {
	if e.next < len(e.tokens) {
		e.progress.Visible += e.tokens[e.next]
		e.next++
	}
	if e.next < len(e.tokens) {
		return false
	}
	e.progress.Revealing = false
	e.tokens = nil
	return true
}

// Machine holds the messages of one conversation. Every transition runs
// under a single mutex, so two transitions never interleave.
type Machine struct {
	cfg Config

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	order   []uuid.UUID
	closed  bool
}

// New returns a Machine ready for use.
func New(cfg Config) *Machine {
	if cfg.RevealInterval <= 0 {
		cfg.RevealInterval = DefaultRevealInterval
	}
	if cfg.FreshWindow <= 0 {
		cfg.FreshWindow = DefaultFreshWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Machine{
		cfg:     cfg,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Create ingests a new message. The deep dive is locked when it exists and
// the user had no premium access at creation time; policy then decides
// whether the lock is a paywall or a challenge. A closed machine still
// returns the message but does not hold it.
func (m *Machine) Create(raw string, sender SenderKind, createdAt time.Time, hasPremium bool, policy LockPolicy) Message {
	msg := newMessage(uuid.New(), raw, sender, createdAt)
	msg.Locked = sender == AiOracle && msg.Unlockable() && !hasPremium
	if msg.Locked && policy == LockChallenge {
		msg.Status = StatusWaitingForTrigger
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(msg)

	return msg
}

// Restore re-adds a message loaded from history. The stored lock state is
// kept unless it breaks an invariant. Restoring an id twice returns the
// message already held.
func (m *Machine) Restore(id uuid.UUID, raw string, sender SenderKind, createdAt time.Time, locked bool, status UnlockStatus) Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		return e.msg
	}

	msg := newMessage(id, raw, sender, createdAt)
	msg.Locked = locked
	msg.Status = status
	msg.normalize()
	m.add(msg)

	return msg
}

func (m *Machine) add(msg Message) {
	if m.closed {
		return
	}
	m.entries[msg.ID] = &entry{msg: msg}
	m.order = append(m.order, msg.ID)
}

// Get returns the current snapshot of a message.
func (m *Machine) Get(id uuid.UUID) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return Message{}, false
	}
	return e.msg, true
}

// Messages returns every message in creation order.
func (m *Machine) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].msg)
	}
	return out
}

// Unlock clears the lock of a message. Unknown ids and unlocked messages are
// left alone. It reports whether anything changed.
func (m *Machine) Unlock(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return false
	}
	return e.msg.unlock()
}

// Display marks a message as shown. A fresh oracle message starts its
// progressive reveal; anything else is shown in full at once. Displaying a
// message again returns the handle of its first display. It returns nil for
// unknown ids.
func (m *Machine) Display(ctx context.Context, id uuid.UUID) *Reveal {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || m.closed {
		return nil
	}
	if e.displayed {
		return e.reveal
	}
	e.displayed = true

	gist := e.msg.Gist()
	if e.msg.Sender != AiOracle || gist == "" || !m.fresh(e.msg) {
		e.progress = Progress{Visible: gist}
		e.reveal = finishedReveal()
		return e.reveal
	}

	e.tokens = reading.Tokens(gist)
	e.progress = Progress{Revealing: true}
	e.reveal = startReveal(ctx, m.cfg.RevealInterval, func() bool {
		return m.tick(id)
	})

	return e.reveal
}

func (m *Machine) fresh(msg Message) bool {
	return m.cfg.Now().Sub(msg.CreatedAt) < m.cfg.FreshWindow
}

// tick reveals one more token of a message. It reports true once there is
// nothing left to do, including when the message is gone.
func (m *Machine) tick(id uuid.UUID) bool {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return true
	}
	done := e.advance()
	m.mu.Unlock()

	if m.cfg.OnProgress != nil {
		m.cfg.OnProgress(id)
	}

	return done
}

// Progress returns the reveal state of a displayed message.
func (m *Machine) Progress(id uuid.UUID) (Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || !e.displayed {
		return Progress{}, false
	}
	return e.progress, true
}

// Remove drops a message and stops its reveal.
func (m *Machine) Remove(id uuid.UUID) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
		for i, v := range m.order {
			if v == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	// The reveal goroutine may be waiting on m.mu inside tick, so it is
	// stopped only after the lock is released.
	if ok && e.reveal != nil {
		e.reveal.Stop()
	}
}

// Close stops every running reveal and drops all messages.
func (m *Machine) Close() {
	m.mu.Lock()
	var reveals []*Reveal
	for _, e := range m.entries {
		if e.reveal != nil {
			reveals = append(reveals, e.reveal)
		}
	}
	m.entries = make(map[uuid.UUID]*entry)
	m.order = nil
	m.closed = true
	m.mu.Unlock()

	for _, r := range reveals {
		r.Stop()
	}
}
