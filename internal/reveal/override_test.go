package reveal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerOverrideMatches(t *testing.T) {
	o := NewTriggerOverride()

	tests := []struct {
		input string
		want  bool
	}{
		{"SELECT * FROM stars", true},
		{"select deep_dive from readings", true},
		{"   DrOp table fate;", true},
		{"UNION SELECT secrets", true},
		{"delete;", true},
		{"DELETE FROM readings", true},
		{"INSERT INTO stars VALUES (1)", true},
		{"update\tsigns SET fate = 'good'", true},
		{"truncate table fate", true},
		{"SELECT 1", true},
		{"UNION", false},
		{"update\tsigns", false},
		{"Update me on my career this year", false},
		{"Select the best day for my wedding", false},
		{"Delete my worries: all of them", false},
		{"Drop everything and tell me about Venus", false},
		{"Select the sign I get along with from the zodiac?", false},
		{"selective memory", false},
		{"dropped my phone", false},
		{"SELECT_ALL", false},
		{"please SELECT", false},
		{"", false},
		{"what is my rising sign?", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, o.Matches(tt.input))
		})
	}
}

func TestNewTriggerOverrideCustomPrefixes(t *testing.T) {
	o := NewTriggerOverride(" open sesame ", "")
	assert.True(t, o.Matches("Open Sesame please"))
	assert.False(t, o.Matches("SELECT 1"))

	o = NewTriggerOverride("", "  ")
	assert.True(t, o.Matches("SELECT 1"), "blank prefixes fall back to the defaults")

	o = NewTriggerOverride("select")
	assert.False(t, o.Matches("select a good day"), "sql keywords keep their statement shape")
}

func TestSubmitUserInputDisabled(t *testing.T) {
	m := New(Config{Now: fixedClock(epoch)})
	defer m.Close()

	msg := m.Create(sampleReading, AiOracle, epoch, false, LockChallenge)

	_, handled := m.SubmitUserInput("SELECT * FROM deep_dives")
	assert.False(t, handled)

	got, _ := m.Get(msg.ID)
	assert.True(t, got.Locked)
	assert.Equal(t, StatusWaitingForTrigger, got.Status)
	assert.Len(t, m.Messages(), 1)
}

func TestSubmitUserInputScope(t *testing.T) {
	m := New(Config{Now: fixedClock(epoch), Override: NewTriggerOverride()})
	defer m.Close()

	challenge1 := m.Create(sampleReading, AiOracle, epoch, false, LockChallenge)
	paywall := m.Create(sampleReading, AiOracle, epoch, false, LockPaywall)
	challenge2 := m.Create(sampleReading, AiOracle, epoch, false, LockChallenge)
	plain := m.Create("no deep dive here", AiOracle, epoch, false, LockChallenge)

	_, handled := m.SubmitUserInput("what about Mercury retrograde?")
	assert.False(t, handled)

	n, handled := m.SubmitUserInput("SELECT deep_dive FROM readings")
	require.True(t, handled)
	assert.Equal(t, []uuid.UUID{challenge1.ID, challenge2.ID}, n.Unlocked)

	assert.Equal(t, System, n.Message.Sender)
	assert.Equal(t, "Injection accepted. 2 sealed deep dives retrieved.", n.Message.RawText())

	for _, id := range n.Unlocked {
		got, _ := m.Get(id)
		assert.False(t, got.Locked)
		assert.Equal(t, StatusComplete, got.Status)
	}

	got, _ := m.Get(paywall.ID)
	assert.True(t, got.Locked, "paywalled messages are untouched")
	assert.Equal(t, StatusNone, got.Status)

	got, _ = m.Get(plain.ID)
	assert.False(t, got.Locked)
	assert.Equal(t, StatusNone, got.Status)

	msgs := m.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, n.Message.ID, msgs[4].ID)
}

func TestSubmitUserInputSingle(t *testing.T) {
	m := New(Config{Now: fixedClock(epoch), Override: NewTriggerOverride()})
	defer m.Close()

	m.Create(sampleReading, AiOracle, epoch, false, LockChallenge)

	n, handled := m.SubmitUserInput("drop table horoscopes")
	require.True(t, handled)
	assert.Len(t, n.Unlocked, 1)
	assert.Equal(t, "Injection accepted. 1 sealed deep dive retrieved.", n.Message.RawText())
}

func TestSubmitUserInputNothingPending(t *testing.T) {
	m := New(Config{Now: fixedClock(epoch), Override: NewTriggerOverride()})
	defer m.Close()

	locked := m.Create(sampleReading, AiOracle, epoch, false, LockPaywall)
	before := m.Messages()

	n, handled := m.SubmitUserInput("SELECT 1")
	require.True(t, handled)
	assert.Empty(t, n.Unlocked)
	assert.Equal(t, "Query executed. 0 rows affected: no sealed deep dives were waiting.", n.Message.RawText())

	after := m.Messages()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)])

	got, _ := m.Get(locked.ID)
	assert.True(t, got.Locked)
}

func TestSubmitUserInputAfterUnlock(t *testing.T) {
	m := New(Config{Now: fixedClock(epoch.Add(time.Hour)), Override: NewTriggerOverride()})
	defer m.Close()

	msg := m.Create(sampleReading, AiOracle, epoch, false, LockChallenge)
	m.Display(context.Background(), msg.ID)

	_, handled := m.SubmitUserInput("SELECT deep_dive FROM readings")
	require.True(t, handled)

	v, _ := m.View(msg.ID, NoPremium)
	assert.Equal(t, AffordanceVisible, v.Affordance)
	assert.Equal(t, "secret tip", v.DeepDive)

	// A second trigger finds nothing left to unlock.
	n, _ := m.SubmitUserInput("SELECT deep_dive FROM readings")
	assert.Empty(t, n.Unlocked)
}
