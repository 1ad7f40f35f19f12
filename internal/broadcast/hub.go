// Package broadcast delivers store change notifications to subscribers of
// one context and generates the IDs that tell contexts apart.
package broadcast

import (
	"sort"
	"sync"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// Hub fans out changes to subscribers in publish order. Delivery happens on
// a dedicated goroutine, so a subscriber may call back into the store that
// published the change. Publish never blocks on a slow subscriber.
type Hub struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []types.Change
	subs   map[uint64]func(types.Change)
	nextID uint64
	closed bool
	done   chan struct{}
}

// NewHub creates a hub and starts its delivery goroutine.
func NewHub() *Hub {
	h := &Hub{
		subs: make(map[uint64]func(types.Change)),
		done: make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	go h.run()
	return h
}

// Subscribe registers fn. The returned cancel function is idempotent. A
// change already handed to the delivery goroutine may still reach fn once
// after cancel returns.
func (h *Hub) Subscribe(fn func(types.Change)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || fn == nil {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish queues c for delivery. Changes published after Close are dropped.
func (h *Hub) Publish(c types.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.queue = append(h.queue, c)
	h.cond.Signal()
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops pending changes and all subscriptions, then stops delivery.
// Idempotent. Close does not wait for a delivery in progress.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.queue = nil
	h.subs = make(map[uint64]func(types.Change))
	h.cond.Broadcast()
}

// Done is closed when the delivery goroutine has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		h.mu.Lock()
		for len(h.queue) == 0 && !h.closed {
			h.cond.Wait()
		}
		if h.closed {
			h.mu.Unlock()
			return
		}
		c := h.queue[0]
		h.queue = h.queue[1:]
		fns := h.snapshotLocked()
		h.mu.Unlock()

		for _, fn := range fns {
			fn(c)
		}
	}
}

// snapshotLocked returns subscribers in registration order.
// The caller must hold h.mu.
func (h *Hub) snapshotLocked() []func(types.Change) {
	ids := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]func(types.Change), len(ids))
	for i, id := range ids {
		fns[i] = h.subs[id]
	}
	return fns
}
