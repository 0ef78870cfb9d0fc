// Package reveal decides how much of an oracle reading a user can see: the
// progressive reveal of the gist and whether the deep dive is visible,
// behind a paywall teaser, or behind a hidden challenge.
package reveal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/reading"
)

// SenderKind identifies who authored a message. Only AiOracle messages take
// part in locking and the progressive reveal.
type SenderKind int

const (
	User SenderKind = iota
	AiOracle
	System
	HumanAstrologer
)

func (s SenderKind) String() string {
	switch s {
	case User:
		return "user"
	case AiOracle:
		return "oracle"
	case System:
		return "system"
	case HumanAstrologer:
		return "astrologer"
	}
	return fmt.Sprintf("sender(%d)", int(s))
}

// ParseSenderKind is the inverse of SenderKind.String.
func ParseSenderKind(s string) (SenderKind, error) {
	switch s {
	case "user":
		return User, nil
	case "oracle":
		return AiOracle, nil
	case "system":
		return System, nil
	case "astrologer":
		return HumanAstrologer, nil
	}
	return User, fmt.Errorf("internal/reveal: unknown sender kind %q", s)
}

// UnlockStatus tracks the hidden trigger flow of a locked message.
type UnlockStatus int

const (
	StatusNone UnlockStatus = iota
	StatusWaitingForTrigger
	StatusComplete
)

func (s UnlockStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusWaitingForTrigger:
		return "waiting_for_trigger"
	case StatusComplete:
		return "complete"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseUnlockStatus is the inverse of UnlockStatus.String.
func ParseUnlockStatus(s string) (UnlockStatus, error) {
	switch s {
	case "none":
		return StatusNone, nil
	case "waiting_for_trigger":
		return StatusWaitingForTrigger, nil
	case "complete":
		return StatusComplete, nil
	}
	return StatusNone, fmt.Errorf("internal/reveal: unknown unlock status %q", s)
}

// LockPolicy is chosen by the caller when a message is created and decides
// how a locked message is gated.
type LockPolicy int

const (
	// LockPaywall gates the deep dive behind the purchase/upgrade path.
	LockPaywall LockPolicy = iota
	// LockChallenge gates the deep dive behind the trigger phrase.
	LockChallenge
)

// Message is a snapshot of a chat message. The machine owns the live copy;
// callers only ever see values.
type Message struct {
	ID        uuid.UUID
	Sender    SenderKind
	CreatedAt time.Time
	Locked    bool
	Status    UnlockStatus

	raw     string
	reading reading.Reading
}

func newMessage(id uuid.UUID, raw string, sender SenderKind, createdAt time.Time) Message {
	msg := Message{
		ID:        id,
		Sender:    sender,
		CreatedAt: createdAt,
		raw:       raw,
	}

	// Only oracle readings are split. Anything else is all gist.
	if sender == AiOracle {
		msg.reading = reading.Split(raw)
	} else {
		msg.reading = reading.Reading{Gist: raw}
	}

	return msg
}

// RawText returns the text exactly as the generator produced it.
func (m Message) RawText() string { return m.raw }

// Gist returns the always visible part of the message.
func (m Message) Gist() string { return m.reading.Gist }

// DeepDive returns the paywalled continuation, or "" when there is none.
func (m Message) DeepDive() string { return m.reading.DeepDive }

// Unlockable reports whether the message has a deep dive to protect.
func (m Message) Unlockable() bool { return m.reading.Unlockable() }

// normalize enforces the lock invariants on a message built from outside
// input, such as a row loaded from history.
func (m *Message) normalize() {
	if !m.Unlockable() || m.Sender != AiOracle {
		m.Locked = false
	}
	if !m.Locked && m.Status == StatusWaitingForTrigger {
		m.Status = StatusNone
	}
}

func (m *Message) unlock() bool {
	if !m.Locked {
		return false
	}
	m.Locked = false
	if m.Status == StatusWaitingForTrigger {
		m.Status = StatusComplete
	}
	return true
}

// Entitlement answers whether the current user has premium access. It is
// consulted on every evaluation and never cached into a message.
type Entitlement interface {
	HasPremiumAccess() bool
}

// EntitlementFunc adapts a plain function to Entitlement.
type EntitlementFunc func() bool

func (f EntitlementFunc) HasPremiumAccess() bool { return f() }

// NoPremium is the entitlement of a user without premium access.
var NoPremium Entitlement = EntitlementFunc(func() bool { return false })

// EffectiveLocked reports whether the deep dive of msg must stay hidden from
// a user with the given entitlement. A nil entitlement counts as no premium.
func EffectiveLocked(msg Message, ent Entitlement) bool {
	if !msg.Unlockable() {
		return false
	}
	if ent != nil && ent.HasPremiumAccess() {
		return false
	}
	return msg.Locked
}
