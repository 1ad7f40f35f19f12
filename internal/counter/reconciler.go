// Package counter keeps a displayed cart counter consistent with the cart.
//
// The displayed value may run ahead of the cart through optimistic
// increments, which hide the latency of a local add. It always converges to
// the authoritative Σqty: after a debounce interval for local activity, and
// immediately when another context changes the cart.
package counter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// DefaultDebounce is the trailing delay before a local burst is reconciled.
const DefaultDebounce = 300 * time.Millisecond

// State says whether the displayed value is confirmed.
type State int

const (
	// Converged means the displayed value equals the last authoritative count.
	Converged State = iota
	// Pending means an optimistic delta has not been confirmed yet.
	Pending
)

func (s State) String() string {
	switch s {
	case Converged:
		return "converged"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// CountSource supplies the authoritative count. *cart.Repository satisfies it.
type CountSource interface {
	Count() int
}

// Frame is one render of the counter. Delta is the optimistic increment
// shown alongside Count and is zero for authoritative renders.
type Frame struct {
	Count   int
	Delta   int
	Animate bool
}

// Display is the rendering adapter for the counter.
type Display interface {
	Render(Frame)
}

// Reconciler owns the displayed counter value.
type Reconciler struct {
	mu        sync.Mutex
	source    CountSource
	display   Display
	logger    *slog.Logger
	sched     Scheduler
	delay     time.Duration
	debouncer *Debouncer
	displayed int
	state     State
	unwatch   func()
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithScheduler sets the scheduler driving the debounce timer.
func WithScheduler(s Scheduler) Option {
	return func(r *Reconciler) { r.sched = s }
}

// WithDebounce sets the debounce delay. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.delay = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler creates a reconciler reading counts from source and
// rendering to display. Call Init to show the first value.
func NewReconciler(source CountSource, display Display, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:  source,
		display: display,
		logger:  slog.Default(),
		sched:   RealScheduler{},
		delay:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.debouncer = NewDebouncer(r.sched, r.delay, func() { r.Sync(true) })
	return r
}

// Init renders the authoritative count without animation.
func (r *Reconciler) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.displayed = r.source.Count()
	r.state = Converged
	r.display.Render(Frame{Count: r.displayed})
}

// OptimisticIncrement adds by to the displayed value at once. The cart is
// not consulted.
func (r *Reconciler) OptimisticIncrement(by int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.displayed += by
	r.state = Pending
	r.display.Render(Frame{Count: r.displayed, Delta: by, Animate: true})
}

// ScheduleReconcile arms the debounced authoritative sync.
func (r *Reconciler) ScheduleReconcile() {
	r.debouncer.Trigger()
}

// OnExternalChange syncs immediately. It is the path that carries
// correctness for writes made by other contexts.
func (r *Reconciler) OnExternalChange() {
	r.Sync(true)
}

// Sync reads the authoritative count and, when it differs from the displayed
// value, renders it. The authoritative value always replaces any optimistic
// one.
func (r *Reconciler) Sync(animate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actual := r.source.Count()
	r.state = Converged
	if actual == r.displayed {
		return
	}
	r.logger.Debug("counter resync", "displayed", r.displayed, "actual", actual)
	r.displayed = actual
	r.display.Render(Frame{Count: actual, Animate: animate})
}

// Watch subscribes to store changes and syncs on every change to the cart
// key. Calling Watch again replaces the previous subscription.
func (r *Reconciler) Watch(store types.Store) (cancel func()) {
	unwatch := store.Subscribe(func(c types.Change) {
		if c.Key == types.CartKey {
			r.OnExternalChange()
		}
	})

	r.mu.Lock()
	prev := r.unwatch
	r.unwatch = unwatch
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
	return unwatch
}

// Start subscribes to store and then performs the initial sync, so a change
// made by another context in between is not missed.
func (r *Reconciler) Start(store types.Store) (cancel func()) {
	cancel = r.Watch(store)
	r.Init()
	return cancel
}

// Displayed returns the value currently shown.
func (r *Reconciler) Displayed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayed
}

// State returns whether the displayed value is confirmed.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close stops the debounce timer and the store subscription.
func (r *Reconciler) Close() {
	r.debouncer.Stop()

	r.mu.Lock()
	unwatch := r.unwatch
	r.unwatch = nil
	r.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
}
