package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/astrochat/internal/model"
)

func recv(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return model.Event{}
}

func quiet(t *testing.T, ch <-chan model.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	userID := uuid.New()
	a := NewClient(userID, "tab-a")
	b := NewClient(userID, "tab-b")
	other := NewClient(uuid.New(), "other")

	require.True(t, hub.Join(a))
	require.True(t, hub.Join(b))
	require.True(t, hub.Join(other))

	hub.Publish(model.Event{UserID: userID, Kind: model.EventNotice, Text: "to both tabs"})
	assert.Equal(t, "to both tabs", recv(t, a.Send).Text)
	assert.Equal(t, "to both tabs", recv(t, b.Send).Text)
	quiet(t, other.Send)

	hub.PublishTo(a, model.Event{Kind: model.EventNotice, Text: "only a"})
	ev := recv(t, a.Send)
	assert.Equal(t, "only a", ev.Text)
	assert.Equal(t, userID, ev.UserID)
	quiet(t, b.Send)

	hub.Leave(b)
	_, ok := <-b.Send
	assert.False(t, ok, "left client's channel is closed")

	// Leaving twice is harmless.
	hub.Leave(b)

	cancel()
	<-hub.done

	_, ok = <-a.Send
	assert.False(t, ok)
	_, ok = <-other.Send
	assert.False(t, ok)

	assert.False(t, hub.Join(NewClient(userID, "late")))
	hub.Leave(a)
}

func TestClientMessageLimiter(t *testing.T) {
	c := NewClient(uuid.New(), "dummy")
	assert.True(t, c.AllowMessage(), "no limiter set")

	c.SetMessageLimiter(2, time.Minute)
	assert.True(t, c.AllowMessage())
	assert.True(t, c.AllowMessage())
	assert.False(t, c.AllowMessage())
}
