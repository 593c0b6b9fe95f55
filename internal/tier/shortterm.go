package tier

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jhollis/recollect/internal/store"
)

// ShortTermKey is the persistence key for the short-term checkpoint.
const ShortTermKey = "tier/short_term"

// ShortTerm is the recent-session buffer. Eviction is FIFO by insertion
// order: once over capacity the oldest item simply falls off. Every
// mutation is followed by a best-effort checkpoint so the buffer survives
// a process restart within a session; checkpoint failures are logged and
// never surfaced.
type ShortTerm struct {
	mu          sync.RWMutex
	capacity    int
	items       []*Item // newest first
	lastUpdated time.Time

	kv      store.KV
	timeout time.Duration
	log     *log.Logger

	seq     uint64 // mutation sequence, guarded by mu
	ckMu    sync.Mutex
	written uint64 // last checkpointed sequence, guarded by ckMu
}

// NewShortTerm creates the short-term tier and restores any previous
// checkpoint. A corrupt or missing checkpoint starts the tier empty.
func NewShortTerm(capacity int, kv store.KV, timeout time.Duration, logger *log.Logger) *ShortTerm {
	if capacity <= 0 {
		capacity = 50
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &ShortTerm{
		capacity: capacity,
		kv:       kv,
		timeout:  timeout,
		log:      logger,
	}
	s.restore()
	return s
}

func (s *ShortTerm) restore() {
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	raw, err := s.kv.Get(ctx, ShortTermKey)
	if err != nil {
		s.log.Warn("short-term restore failed, starting empty", "err", err)
		return
	}
	if raw == nil {
		return
	}

	var items []Item
	if err := store.Decode(raw, &items); err != nil {
		s.log.Warn("short-term checkpoint corrupt, starting empty", "err", err)
		return
	}

	for i := range items {
		it := items[i]
		s.items = append(s.items, &it)
	}
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	s.lastUpdated = time.Now()
	s.log.Debug("short-term restored", "items", len(s.items))
}

// Add inserts at the head, evicts FIFO past capacity, and checkpoints.
func (s *ShortTerm) Add(item Item) {
	s.mu.Lock()
	it := item.clone()
	s.items = append([]*Item{&it}, s.items...)
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	s.lastUpdated = time.Now()
	s.seq++
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.checkpoint(snapshot, seq)
}

// Prune trims to capacity, dropping the oldest items.
func (s *ShortTerm) Prune() {
	s.mu.Lock()
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	s.seq++
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.checkpoint(snapshot, seq)
}

// Search filters by the supplied params, increments access counts, and
// checkpoints the updated counts.
func (s *ShortTerm) Search(params SearchParams) ([]Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	now := time.Now()
	var out []Item
	for _, it := range s.items {
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
	s.seq++
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.checkpoint(snapshot, seq)
	return out, nil
}

// Clear wipes the tier and its checkpoint. Used on conversation-boundary
// reset; the long-term tier and profile are never touched by this.
func (s *ShortTerm) Clear() {
	s.mu.Lock()
	s.items = nil
	s.lastUpdated = time.Now()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	go s.checkpoint(nil, seq)
}

// Len returns the current item count.
func (s *ShortTerm) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// LastUpdated returns the time of the last mutation.
func (s *ShortTerm) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Items returns a snapshot copy of the tier contents, newest first.
func (s *ShortTerm) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *ShortTerm) snapshotLocked() []Item {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.clone())
	}
	return out
}

// checkpoint persists the tier contents. Best effort: failures are logged
// and the in-memory tier stays authoritative. The sequence guard keeps a
// slow write from clobbering a newer snapshot.
func (s *ShortTerm) checkpoint(items []Item, seq uint64) {
	if s.kv == nil {
		return
	}

	s.ckMu.Lock()
	defer s.ckMu.Unlock()
	if seq <= s.written {
		return
	}

	raw, err := store.Encode(items)
	if err != nil {
		s.log.Warn("short-term checkpoint encode failed", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.kv.Put(ctx, ShortTermKey, raw); err != nil {
		s.log.Warn("short-term checkpoint write failed", "err", err)
		return
	}
	s.written = seq
}
