package sse

import (
	"context"
	"sync"

	"seller-portal/internal/models"
)

// clientBuffer is how many events a slow client may fall behind before
// events are dropped for it.
const clientBuffer = 16

// WorkflowEvent is one transition as streamed to dashboards.
type WorkflowEvent struct {
	Type string `json:"type"`
	models.WorkflowEventPayload
}

// Hub fans workflow events out to connected dashboards. Merchants see their
// own orders; admin subscribers see everything.
type Hub struct {
	mu        sync.RWMutex
	merchants map[string][]chan WorkflowEvent
	admins    []chan WorkflowEvent
}

func NewHub() *Hub {
	return &Hub{merchants: make(map[string][]chan WorkflowEvent)}
}

// SubscribeToMerchant returns a channel of the merchant's events. It is
// closed once ctx is done.
func (h *Hub) SubscribeToMerchant(ctx context.Context, merchantID string) <-chan WorkflowEvent {
	ch := make(chan WorkflowEvent, clientBuffer)

	h.mu.Lock()
	h.merchants[merchantID] = append(h.merchants[merchantID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		h.merchants[merchantID] = remove(h.merchants[merchantID], ch)
		if len(h.merchants[merchantID]) == 0 {
			delete(h.merchants, merchantID)
		}
		close(ch)
	}()
	return ch
}

// SubscribeAll returns a channel of every event.
func (h *Hub) SubscribeAll(ctx context.Context) <-chan WorkflowEvent {
	ch := make(chan WorkflowEvent, clientBuffer)

	h.mu.Lock()
	h.admins = append(h.admins, ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		h.admins = remove(h.admins, ch)
		close(ch)
	}()
	return ch
}

// PublishWorkflowEvent never blocks; a client whose buffer is full misses
// the event.
func (h *Hub) PublishWorkflowEvent(ctx context.Context, eventType string, payload models.WorkflowEventPayload) error {
	ev := WorkflowEvent{Type: eventType, WorkflowEventPayload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.merchants[payload.MerchantID] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range h.admins {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// ClientCount reports connected subscribers, admin streams included.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.admins)
	for _, chans := range h.merchants {
		n += len(chans)
	}
	return n
}

func remove(chans []chan WorkflowEvent, target chan WorkflowEvent) []chan WorkflowEvent {
	for i, ch := range chans {
		if ch == target {
			return append(chans[:i], chans[i+1:]...)
		}
	}
	return chans
}
