package tier

import (
	"sort"
	"sync"
	"time"
)

// Working is the most-recently-used tier holding the salient items of the
// active exchange. It lives only for the process lifetime; eviction keeps
// the highest-importance items, so this tier is about immediacy rather
// than durability.
type Working struct {
	mu          sync.RWMutex
	capacity    int
	items       []*Item // newest first
	lastUpdated time.Time
}

// NewWorking creates a working tier with the given capacity.
func NewWorking(capacity int) *Working {
	if capacity <= 0 {
		capacity = 20
	}
	return &Working{capacity: capacity}
}

// Add inserts an item at the head and prunes if over capacity.
func (w *Working) Add(item Item) {
	w.mu.Lock()
	defer w.mu.Unlock()

	it := item.clone()
	w.items = append([]*Item{&it}, w.items...)
	w.lastUpdated = time.Now()

	if len(w.items) > w.capacity {
		w.pruneLocked()
	}
}

// Prune evicts down to capacity, keeping the highest-importance items.
// Equal importance keeps the more recently added item.
func (w *Working) Prune() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked()
}

func (w *Working) pruneLocked() {
	if len(w.items) <= w.capacity {
		return
	}
	// Stable sort over newest-first order: ties resolve to recency.
	sort.SliceStable(w.items, func(i, j int) bool {
		return w.items[i].Importance > w.items[j].Importance
	})
	w.items = w.items[:w.capacity]
}

// Search filters by the supplied params and increments the access count of
// every returned item. Returned items are copies; tier-owned items are
// never handed out.
func (w *Working) Search(params SearchParams) ([]Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var out []Item
	for _, it := range w.items {
		if !params.Matches(it) {
			continue
		}
		it.AccessCount++
		it.RefreshRetention(now)
		out = append(out, it.clone())
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}

// Clear wipes the tier. Used on conversation-boundary reset.
func (w *Working) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = nil
	w.lastUpdated = time.Now()
}

// Len returns the current item count.
func (w *Working) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// LastUpdated returns the time of the last mutation.
func (w *Working) LastUpdated() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastUpdated
}

// Items returns a snapshot copy of the tier contents, newest first.
func (w *Working) Items() []Item {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Item, 0, len(w.items))
	for _, it := range w.items {
		out = append(out, it.clone())
	}
	return out
}
