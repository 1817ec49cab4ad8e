package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/mastidea/mastidea-server/internal/domain"
)

// sseTimeout is how long an idle updates stream stays open before the
// server closes it; clients reconnect via EventSource.
const sseTimeout = 5 * time.Minute

// UpdateHub fans idea update events out to SSE subscribers. Events for
// ideas nobody is watching are dropped; the relational store remains the
// source of truth, the hub only saves clients from polling.
type UpdateHub struct {
	mu   sync.RWMutex
	subs map[string][]chan domain.UpdateEvent // subscribers per idea
}

// NewUpdateHub creates an empty hub.
func NewUpdateHub() *UpdateHub {
	return &UpdateHub{subs: make(map[string][]chan domain.UpdateEvent)}
}

// Publish delivers an event to every subscriber of the idea without
// blocking; a subscriber with a full buffer misses the event.
func (h *UpdateHub) Publish(event domain.UpdateEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	subs := h.subs[event.IdeaID]
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a channel that receives the idea's update events.
func (h *UpdateHub) Subscribe(ideaID string) chan domain.UpdateEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan domain.UpdateEvent, 16)
	h.subs[ideaID] = append(h.subs[ideaID], ch)
	return ch
}

// Unsubscribe removes a channel from the idea's subscribers. The channel
// is left open: Publish snapshots the subscriber list outside the lock, so
// a concurrent publish may still send to a just-removed channel, and
// closing here would turn that into a panic. Abandoned channels are
// garbage collected once the reader returns.
func (h *UpdateHub) Unsubscribe(ideaID string, ch chan domain.UpdateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[ideaID]
	for i, s := range subs {
		if s == ch {
			h.subs[ideaID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// StreamSSE writes the idea's update events to the response as
// Server-Sent Events until the timeout elapses.
func (h *UpdateHub) StreamSSE(c fiber.Ctx, ideaID string) error {
	ch := h.Subscribe(ideaID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.Unsubscribe(ideaID, ch)

		writeSSE(w, domain.UpdateEvent{IdeaID: ideaID, Type: domain.EventConnected, At: time.Now()})

		timeout := time.After(sseTimeout)
		for {
			select {
			case event := <-ch:
				writeSSE(w, event)
			case <-timeout:
				return
			}
		}
	})
}

func writeSSE(w *bufio.Writer, event domain.UpdateEvent) {
	data, _ := json.Marshal(event)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, string(data))
	w.Flush()
}
