package reveal

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultTriggerPrefixes are the command-like words that fire the override.
var DefaultTriggerPrefixes = []string{
	"SELECT", "DROP", "INSERT", "UPDATE", "DELETE", "UNION", "TRUNCATE", "ALTER",
}

// sqlClauses are the words one of which must follow a default prefix for the
// input to read as a statement rather than a sentence.
var sqlClauses = map[string][]string{
	"SELECT":   {"FROM"},
	"DROP":     {"TABLE", "DATABASE", "SCHEMA"},
	"INSERT":   {"INTO"},
	"UPDATE":   {"SET"},
	"DELETE":   {"FROM"},
	"UNION":    {"SELECT"},
	"TRUNCATE": {"TABLE"},
	"ALTER":    {"TABLE"},
}

// TriggerOverride is the developer/demo override: typing something that
// looks like SQL unlocks every challenge-gated message. It bypasses payment
// entirely and has nothing to do with entitlement. A Machine without one
// never reacts to user input.
type TriggerOverride struct {
	prefixes []string
}

// NewTriggerOverride returns an override matching the given prefixes, or
// DefaultTriggerPrefixes when none are given.
func NewTriggerOverride(prefixes ...string) *TriggerOverride {
	o := &TriggerOverride{}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			o.prefixes = append(o.prefixes, p)
		}
	}
	if len(o.prefixes) == 0 {
		o.prefixes = append(o.prefixes, DefaultTriggerPrefixes...)
	}
	return o
}

// Matches reports whether input starts with one of the prefixes as a whole
// word, ignoring case and leading whitespace. After an SQL keyword the input
// must also carry a statement shape: a matching clause word (SELECT ... FROM,
// DROP TABLE, UPDATE ... SET), a ";" or a "*", or a literal right after
// SELECT. Questions ending in "?" never match.
func (o *TriggerOverride) Matches(input string) bool {
	input = strings.TrimSpace(input)
	if strings.HasSuffix(input, "?") {
		return false
	}
	for _, p := range o.prefixes {
		if len(input) < len(p) || !strings.EqualFold(input[:len(p)], p) {
			continue
		}
		rest := input[len(p):]
		if rest != "" {
			r, _ := utf8.DecodeRuneInString(rest)
			if isWordRune(r) {
				continue
			}
		}
		if statementShaped(strings.ToUpper(p), rest) {
			return true
		}
	}
	return false
}

func statementShaped(keyword, rest string) bool {
	clauses, ok := sqlClauses[keyword]
	if !ok {
		return true
	}
	if strings.ContainsAny(rest, ";*") {
		return true
	}

	words := strings.FieldsFunc(rest, func(r rune) bool { return !isWordRune(r) })
	if keyword == "SELECT" && len(words) > 0 {
		if r, _ := utf8.DecodeRuneInString(words[0]); unicode.IsDigit(r) {
			return true
		}
	}
	for _, w := range words {
		for _, c := range clauses {
			if strings.EqualFold(w, c) {
				return true
			}
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Notification is the outcome of a fired override.
type Notification struct {
	// Message is the system message added to the conversation.
	Message Message
	// Unlocked lists the messages that were unlocked, in creation order.
	Unlocked []uuid.UUID
}

// SubmitUserInput runs the hidden trigger check on a user input before it is
// forwarded to the text generator. When the input does not fire the override
// it returns false and nothing changes. Otherwise every message waiting for
// the trigger is unlocked and exactly one system notification is added.
func (m *Machine) SubmitUserInput(text string) (Notification, bool) {
	if m.cfg.Override == nil || !m.cfg.Override.Matches(text) {
		return Notification{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var unlocked []uuid.UUID
	for _, id := range m.order {
		e := m.entries[id]
		if e.msg.Status != StatusWaitingForTrigger {
			continue
		}
		e.msg.unlock()
		unlocked = append(unlocked, id)
	}

	msg := newMessage(uuid.New(), triggerNotice(len(unlocked)), System, m.cfg.Now())
	m.add(msg)

	return Notification{Message: msg, Unlocked: unlocked}, true
}

func triggerNotice(n int) string {
	switch n {
	case 0:
		return "Query executed. 0 rows affected: no sealed deep dives were waiting."
	case 1:
		return "Injection accepted. 1 sealed deep dive retrieved."
	}
	return fmt.Sprintf("Injection accepted. %d sealed deep dives retrieved.", n)
}
