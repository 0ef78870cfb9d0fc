package reveal

import "github.com/google/uuid"

// Affordance tells the rendering layer what to draw below the gist.
type Affordance int

const (
	// AffordanceNone means the message has no deep dive.
	AffordanceNone Affordance = iota
	// AffordancePending means the gist is still being revealed; nothing is
	// drawn for the deep dive yet.
	AffordancePending
	// AffordanceVisible means the deep dive is shown.
	AffordanceVisible
	// AffordanceTeaser means a paywall teaser whose purchase calls Unlock.
	AffordanceTeaser
	// AffordanceChallenge means the deep dive waits for the trigger phrase.
	AffordanceChallenge
)

func (a Affordance) String() string {
	switch a {
	case AffordanceNone:
		return "none"
	case AffordancePending:
		return "pending"
	case AffordanceVisible:
		return "visible"
	case AffordanceTeaser:
		return "teaser"
	case AffordanceChallenge:
		return "challenge"
	}
	return "unknown"
}

// View is everything the rendering layer needs for one message.
type View struct {
	Message    Message
	Visible    string
	Revealing  bool
	Affordance Affordance
	// DeepDive is only set when Affordance is AffordanceVisible.
	DeepDive string
}

// Resolve computes the view of msg for its reveal progress and the current
// entitlement.
func Resolve(msg Message, p Progress, ent Entitlement) View {
	v := View{
		Message:   msg,
		Visible:   p.Visible,
		Revealing: p.Revealing,
	}

	switch {
	case !msg.Unlockable():
		v.Affordance = AffordanceNone
	case p.Revealing:
		v.Affordance = AffordancePending
	case !EffectiveLocked(msg, ent):
		v.Affordance = AffordanceVisible
		v.DeepDive = msg.DeepDive()
	case msg.Status == StatusWaitingForTrigger:
		v.Affordance = AffordanceChallenge
	default:
		v.Affordance = AffordanceTeaser
	}

	return v
}

// View resolves a message held by the machine. A message that has not been
// displayed yet shows nothing and keeps its deep dive pending.
func (m *Machine) View(id uuid.UUID, ent Entitlement) (View, bool) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return View{}, false
	}
	msg, p, displayed := e.msg, e.progress, e.displayed
	m.mu.Unlock()

	if !displayed {
		v := View{Message: msg}
		if msg.Unlockable() {
			v.Affordance = AffordancePending
		}
		return v, true
	}

	// The entitlement may hit storage, so it is read outside the lock.
	return Resolve(msg, p, ent), true
}
