package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
)

// Event is one snapshot delivered to a subscription. Exactly one of Order
// and Err is set; Err means the stored order could not be interpreted.
type Event struct {
	OrderID model.OrderID
	Order   *model.Order
	Err     error
}

// Filter selects which orders a subscription receives. A zero OrderID
// sequence is valid, so HasOrder marks an id filter explicitly.
type Filter struct {
	OrderID  model.OrderID
	HasOrder bool
	DateKey  string
}

// ForOrder watches a single order.
func ForOrder(id model.OrderID) Filter {
	return Filter{OrderID: id, HasOrder: true}
}

// ForDay watches every order of a day.
func ForDay(dateKey string) Filter {
	return Filter{DateKey: dateKey}
}

func (f Filter) matches(id model.OrderID) bool {
	if f.HasOrder {
		return f.OrderID == id
	}
	return f.DateKey == id.DateKey
}

// OrderLoader reads the current snapshot of an order.
type OrderLoader interface {
	Get(ctx context.Context, id model.OrderID) (*model.Order, error)
}

// Hub fans order changes out to subscriptions.
type Hub struct {
	loader OrderLoader

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates a Hub that loads snapshots through loader.
func NewHub(loader OrderLoader) *Hub {
	return &Hub{loader: loader, subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a subscription. It receives only changes published
// after this call returns.
func (h *Hub) Subscribe(f Filter) *Subscription {
	sub := &Subscription{filter: f, hub: h, ch: make(chan Event, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Publish loads the order named by orderRef and delivers it to every
// matching subscription.
func (h *Hub) Publish(ctx context.Context, orderRef string) {
	id, err := model.ParseOrderID(orderRef)
	if err != nil {
		log.Warn().Err(err).Str("payload", orderRef).Msg("ignoring malformed order change")
		return
	}

	targets := h.matching(id)
	if len(targets) == 0 {
		return
	}

	ev := Event{OrderID: id}
	order, err := h.loader.Get(ctx, id)
	switch {
	case err == nil:
		ev.Order = order
	case errors.Is(err, lifecycle.ErrInvalidFlags):
		ev.Err = err
	case errors.Is(err, service.ErrOrderNotFound):
		return
	default:
		log.Error().Err(err).Str("order_id", orderRef).Msg("failed to load changed order")
		return
	}

	for _, sub := range targets {
		sub.deliver(ev)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription. Later subscriptions are born closed.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *Hub) matching(id model.OrderID) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*Subscription
	for _, sub := range h.subs {
		if sub.filter.matches(id) {
			out = append(out, sub)
		}
	}
	return out
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is a cancellable stream of order snapshots. A slow reader
// only ever sees the most recent undelivered snapshot.
type Subscription struct {
	id     uint64
	filter Filter
	hub    *Hub

	mu     sync.Mutex
	ch     chan Event
	done   bool
	cancel sync.Once
}

// Events is closed once the subscription is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel stops delivery and closes Events. It is safe to call repeatedly.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.hub.remove(s.id)
		s.close()
	})
}

func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	// full: replace the stale snapshot
	select {
	case <-s.ch:
	default:
	}
	s.ch <- ev
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
