package chat

import (
	"context"
	"log"
	"log/slog"

	"github.com/google/uuid"

	"github.com/johndosdos/astrochat/internal/model"
)

type delivery struct {
	ev model.Event
	// only restricts delivery to a single client when set.
	only *Client
}

type Registration struct {
	Client *Client
	Done   chan struct{}
}

// Hub fans events out to the live clients of each user. A user may be
// connected from several tabs at once.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	Register   chan Registration
	Unregister chan *Client
	events     chan delivery
	done       chan struct{}
}

// NewHub returns a new instance of Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		events:     make(chan delivery, 1024),
		done:       make(chan struct{}),
	}
}

// Join registers c and waits until the hub has taken it. It reports false
// when the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	reg := Registration{Client: c, Done: make(chan struct{})}
	select {
	case h.Register <- reg:
	case <-h.done:
		return false
	}
	<-reg.Done
	return true
}

// Leave unregisters c. It returns at once when the hub has stopped.
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for every client of ev.UserID. It never blocks;
// the event is dropped when the queue is full.
func (h *Hub) Publish(ev model.Event) {
	h.enqueue(delivery{ev: ev})
}

// PublishTo queues an event for a single client.
func (h *Hub) PublishTo(c *Client, ev model.Event) {
	ev.UserID = c.UserID
	h.enqueue(delivery{ev: ev, only: c})
}

func (h *Hub) enqueue(d delivery) {
	ev := d.ev
	select {
	case h.events <- d:
	default:
		slog.Warn("hub queue full, dropping event",
			slog.String("user_id", ev.UserID.String()),
			slog.String("kind", string(ev.Kind)))
	}
}

// Run manages incoming and outgoing hub traffic until ctx is cancelled. On
// exit every client channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case reg := <-h.Register:
			c := reg.Client
			set, ok := h.clients[c.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.UserID] = set
			}
			set[c] = struct{}{}
			close(reg.Done)

		case c := <-h.Unregister:
			set, ok := h.clients[c.UserID]
			if !ok {
				continue
			}
			if _, ok := set[c]; !ok {
				continue
			}
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.UserID)
			}
			close(c.Send)

		case d := <-h.events:
			for c := range h.clients[d.ev.UserID] {
				if d.only != nil && d.only != c {
					continue
				}
				select {
				case c.Send <- d.ev:
				default:
					log.Println("skipping event - channel full or client slow")
				}
			}

		case <-ctx.Done():
			log.Printf("context cancelled: %v", ctx.Err())
			for _, set := range h.clients {
				for c := range set {
					close(c.Send)
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]struct{})
			return
		}
	}
}
