// Package oracle produces astrology readings from a text generator.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role is the author of a conversation turn as the generator sees it.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one earlier exchange sent along as context.
type Turn struct {
	Role Role
	Text string
}

// Prompt is a single question with its conversation context.
type Prompt struct {
	Question string
	History  []Turn
	Now      time.Time
}

// Text returns the question with the current time prefixed, so the
// generator can reason about transits.
func (p Prompt) Text() string {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	return fmt.Sprintf("[Current Real-Time: %s] %s", now.Format("Monday, January 2, 2006 15:04 MST"), p.Question)
}

// Generator turns a prompt into a raw reading. The reading may contain a
// "Deep Dive:" section.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

var (
	// ErrOverloaded is returned once every retry hit a rate limit or an
	// overloaded upstream.
	ErrOverloaded = errors.New("internal/oracle: generator overloaded")
	// ErrEmpty is returned when the generator answered without text.
	ErrEmpty = errors.New("internal/oracle: empty reading")
)

const (
	overloadedText = "The cosmic energies are overwhelming right now (High Traffic). Please try asking again in a few moments."
	emptyText      = "The stars are clouded... I cannot see the answer right now."
	failureText    = "A cosmic interference disrupted my connection. Please try again."
)

// FallbackText is the reading shown to the user in place of a failed
// generation.
func FallbackText(err error) string {
	switch {
	case errors.Is(err, ErrOverloaded):
		return overloadedText
	case errors.Is(err, ErrEmpty):
		return emptyText
	}
	return failureText
}

// SystemInstruction frames the generator as the oracle and asks for the
// gist/deep dive layout the reveal relies on.
const SystemInstruction = `You are a warm, practical Vedic astrologer and Vastu consultant.
Use simple English and explain the astrological reason behind every prediction.
Separate paragraphs with blank lines and use **bold** for key terms.
Answer with a short reading first. Then write a line starting with "Deep Dive:"
followed by the detailed analysis and remedies.`

// Canned is a Generator that answers from a fixed list of readings, in
// order. It is used when no generator API key is configured.
type Canned struct {
	Readings []string

	mu   sync.Mutex
	next int
}

func (c *Canned) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	readings := c.Readings
	if len(readings) == 0 {
		readings = defaultReadings
	}

	c.mu.Lock()
	r := readings[c.next%len(readings)]
	c.next++
	c.mu.Unlock()

	if strings.TrimSpace(r) == "" {
		return "", ErrEmpty
	}
	return r, nil
}

var defaultReadings = []string{
	"Namaste ji. **Saturn** is moving through your **10th House**, so work feels heavy but it is building something lasting.\n\n" +
		"Keep your commitments small and steady this week.\n\n" +
		"Deep Dive: Saturn rewards discipline. Light a sesame oil lamp on Saturday evenings and keep your desk facing **North** to support career growth.",
	"My dear friend, the **Moon** in your **4th House** turns your attention to home and family.\n\n" +
		"Spend an evening with your parents.\n\n" +
		"Deep Dive: Clear clutter from the **North-East** corner of your home and place a bowl of water there to calm the mind.",
	"Beta, **Venus** brings harmony to your relationships right now. Speak openly and the air will clear.",
}
