// Package cart implements the Cart Repository: the canonical cart kept in a
// Persistent Local Store under types.CartKey, loaded on demand and flushed
// in full after every mutation.
//
// The repository serializes its own read-modify-write cycles, but there is no
// transaction spanning contexts: when two contexts mutate the cart at the
// same time, the last flush wins.
package cart

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// Repository reads and writes the cart stored at types.CartKey.
type Repository struct {
	mu     sync.Mutex
	store  types.Store
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for mutation records. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRepository creates a repository over store.
func NewRepository(store types.Store, opts ...Option) *Repository {
	r := &Repository{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init writes an empty cart when none is stored yet.
func (r *Repository) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok, err := r.store.Get(types.CartKey)
	if err != nil {
		return fmt.Errorf("init cart: %w", err)
	}
	if ok {
		return nil
	}
	return r.flush(types.Cart{})
}

// Load returns the stored cart. It fails open: an absent, unreadable or
// unparsable value loads as an empty cart. Entries that cannot be decoded,
// lack an id, or have qty below 1 are dropped, and entries sharing an
// (id, page) identity are merged.
func (r *Repository) Load() types.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Repository) load() types.Cart {
	data, ok, err := r.store.Get(types.CartKey)
	if err != nil {
		r.logger.Warn("load cart", "error", err)
		return types.Cart{}
	}
	if !ok {
		return types.Cart{}
	}
	return Decode(data)
}

// Decode parses a stored cart value with the same fail-open rules as Load.
func Decode(data []byte) types.Cart {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Cart{}
	}
	items := make(types.Cart, 0, len(raw))
	for _, rec := range raw {
		var item types.CartItem
		if err := json.Unmarshal(rec, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return normalize(items)
}

// normalize drops invalid items and merges duplicates into the first
// occurrence, keeping the order of first appearance.
func normalize(items types.Cart) types.Cart {
	out := make(types.Cart, 0, len(items))
	for _, item := range items {
		if item.ID == "" || item.Qty < 1 {
			continue
		}
		merged := false
		for i := range out {
			if out[i].ID == item.ID && out[i].PageKey == item.PageKey {
				out[i].Qty += item.Qty
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, item)
		}
	}
	return out
}

// Add adds one unit of the product. An existing item on the same page is
// incremented; failing that, a legacy item with the same id is incremented;
// otherwise a new item with qty 1 is appended. The cart is flushed before
// Add returns. The resulting item is returned.
func (r *Repository) Add(id, pageKey, name string, price float64, image *string) (types.CartItem, error) {
	if id == "" || price < 0 {
		return types.CartItem{}, types.ErrInvalidItem
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.load()
	i := c.Find(id, pageKey)
	if i >= 0 {
		c[i].Qty++
	} else {
		c = append(c, types.CartItem{
			ID:      id,
			PageKey: pageKey,
			Name:    name,
			Price:   price,
			Image:   image,
			Qty:     1,
		})
		i = len(c) - 1
	}
	if err := r.flush(c); err != nil {
		return types.CartItem{}, err
	}
	r.logger.Debug("cart add", "id", id, "page", pageKey, "qty", c[i].Qty, "legacy", c[i].IsLegacy())
	return c[i], nil
}

// SetQty overwrites the quantity of the item at index. A qty of 0 or less
// removes the item.
func (r *Repository) SetQty(index, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.load()
	if index < 0 || index >= len(c) {
		return fmt.Errorf("set qty %d: %w", index, types.ErrIndexOutOfRange)
	}
	return r.setQty(c, index, qty)
}

// Remove deletes the item at index, shifting later items down.
func (r *Repository) Remove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.load()
	if index < 0 || index >= len(c) {
		return fmt.Errorf("remove %d: %w", index, types.ErrIndexOutOfRange)
	}
	return r.remove(c, index)
}

// SetQtyByKey is SetQty addressed by identity, using the same lookup as Add.
func (r *Repository) SetQtyByKey(id, pageKey string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.load()
	i := c.Find(id, pageKey)
	if i < 0 {
		return fmt.Errorf("set qty %s: %w", id, types.ErrItemNotFound)
	}
	return r.setQty(c, i, qty)
}

// RemoveByKey is Remove addressed by identity, using the same lookup as Add.
func (r *Repository) RemoveByKey(id, pageKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.load()
	i := c.Find(id, pageKey)
	if i < 0 {
		return fmt.Errorf("remove %s: %w", id, types.ErrItemNotFound)
	}
	return r.remove(c, i)
}

// Replace stores items as the whole cart after normalizing them.
func (r *Repository) Replace(items types.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush(normalize(items))
}

// Count returns Σqty over a fresh load.
func (r *Repository) Count() int {
	return r.Load().Count()
}

func (r *Repository) setQty(c types.Cart, i, qty int) error {
	if qty <= 0 {
		return r.remove(c, i)
	}
	c[i].Qty = qty
	if err := r.flush(c); err != nil {
		return err
	}
	r.logger.Debug("cart set qty", "id", c[i].ID, "page", c[i].PageKey, "qty", qty)
	return nil
}

func (r *Repository) remove(c types.Cart, i int) error {
	item := c[i]
	c = append(c[:i], c[i+1:]...)
	if err := r.flush(c); err != nil {
		return err
	}
	r.logger.Debug("cart remove", "id", item.ID, "page", item.PageKey)
	return nil
}

func (r *Repository) flush(c types.Cart) error {
	if c == nil {
		c = types.Cart{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := r.store.Set(types.CartKey, data); err != nil {
		return fmt.Errorf("flush cart: %w", err)
	}
	return nil
}
