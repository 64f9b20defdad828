package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultSubscriptionBuffer = 64

// Hub fans events out to in-process subscribers keyed by tenant. A subscriber
// that is not keeping up loses events instead of slowing the publisher down.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[*Subscription]struct{}
	buffer int
}

type Subscription struct {
	TenantID uint

	hub     *Hub
	ch      chan Event
	once    sync.Once
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{
		subs:   make(map[uint]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for one tenant's channel.
func (h *Hub) Subscribe(tenantID uint) *Subscription {
	sub := &Subscription{
		TenantID: tenantID,
		hub:      h,
		ch:       make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[tenantID] == nil {
		h.subs[tenantID] = make(map[*Subscription]struct{})
	}
	h.subs[tenantID][sub] = struct{}{}
	return sub
}

// Publish never blocks on a subscriber.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.TenantID] {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
			slog.Debug("dropping event for slow subscriber",
				"tenant_id", event.TenantID,
				"event_id", event.ID)
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers for a tenant.
func (h *Hub) SubscriberCount(tenantID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tenantID])
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped counts events that did not fit in the buffer.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subs[s.TenantID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.subs, s.TenantID)
			}
		}
		close(s.ch)
	})
}
