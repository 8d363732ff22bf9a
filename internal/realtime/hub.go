// Package realtime fans ledger change events out to connected clients.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"tally/internal/core"
)

const defaultBuffer = 16

// Subscription receives the events of one ledger. C is closed on Unsubscribe.
type Subscription struct {
	OwnerID int64
	C       <-chan core.ChangeEvent

	ch chan core.ChangeEvent
}

// Hub is an in-process pub/sub keyed by ledger owner. Slow subscribers lose
// events rather than blocking publishers; clients refetch on every event, so
// a dropped one is covered by the next.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int64]map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[int64]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(ownerID int64) *Subscription {
	ch := make(chan core.ChangeEvent, h.buffer)
	sub := &Subscription{OwnerID: ownerID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*Subscription]struct{})
	}
	h.subs[ownerID][sub] = struct{}{}
	return sub
}

// Unsubscribe is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.OwnerID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.OwnerID)
	}
	close(sub.ch)
}

// CloseAll ends every live subscription, which makes open streams return.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for owner, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.subs, owner)
	}
}

// PublishChange implements services.ChangePublisher.
func (h *Hub) PublishChange(ctx context.Context, ev core.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.OwnerID] {
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			slog.DebugContext(ctx, "Dropped change event for slow subscriber", "owner_id", ev.OwnerID)
		}
	}
	return nil
}

// Subscribers counts the live subscriptions of a ledger.
func (h *Hub) Subscribers(ownerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ownerID])
}

// Dropped is the number of events lost to full subscriber buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
