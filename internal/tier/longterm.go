package tier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jhollis/recollect/internal/store"
)

// LongTermKey is the persistence key for the long-term checkpoint.
const LongTermKey = "tier/long_term"

// Long-term search score weights. The score blends stored importance,
// current retention, and how well the item matches the query.
const (
	ltWeightImportance = 0.4
	ltWeightRetention  = 0.2
	ltWeightKeyword    = 0.3
	ltWeightTopic      = 0.1
)

// LongTerm is the durable cross-session tier. Admission always inserts;
// eviction happens only when over capacity and keeps the items with the
// highest importance x retention value, so what survives is what the
// forgetting curve says is still remembered. Retrieval increments access
// counts, which slows future decay — recalled memories are rewarded.
type LongTerm struct {
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

// NewLongTerm creates the long-term tier and restores any previous
// checkpoint. A corrupt or missing checkpoint starts the tier empty.
func NewLongTerm(capacity int, kv store.KV, timeout time.Duration, logger *log.Logger) *LongTerm {
	if capacity <= 0 {
		capacity = 500
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	l := &LongTerm{
		capacity: capacity,
		kv:       kv,
		timeout:  timeout,
		log:      logger,
	}
	l.restore()
	return l
}

func (l *LongTerm) restore() {
	if l.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	raw, err := l.kv.Get(ctx, LongTermKey)
	if err != nil {
		l.log.Warn("long-term restore failed, starting empty", "err", err)
		return
	}
	if raw == nil {
		return
	}

	var items []Item
	if err := store.Decode(raw, &items); err != nil {
		l.log.Warn("long-term checkpoint corrupt, starting empty", "err", err)
		return
	}

	for i := range items {
		it := items[i]
		l.items = append(l.items, &it)
	}
	l.lastUpdated = time.Now()
	l.log.Debug("long-term restored", "items", len(l.items))
}

// Add always inserts; eviction only happens once over capacity.
func (l *LongTerm) Add(item Item) {
	l.mu.Lock()
	it := item.clone()
	l.items = append([]*Item{&it}, l.items...)
	l.lastUpdated = time.Now()
	if len(l.items) > l.capacity {
		l.pruneLocked(time.Now())
	}
	l.seq++
	snapshot, seq := l.snapshotLocked(), l.seq
	l.mu.Unlock()

	go l.checkpoint(snapshot, seq)
}

// Prune applies importance-retention eviction: recompute retention for
// every item, score value = importance x retention, keep the top capacity
// items, discard the rest.
func (l *LongTerm) Prune() {
	l.mu.Lock()
	l.pruneLocked(time.Now())
	l.seq++
	snapshot, seq := l.snapshotLocked(), l.seq
	l.mu.Unlock()

	go l.checkpoint(snapshot, seq)
}

func (l *LongTerm) pruneLocked(now time.Time) {
	if len(l.items) <= l.capacity {
		return
	}
	for _, it := range l.items {
		it.RefreshRetention(now)
	}
	// Stable sort over newest-first order: equal value keeps recency.
	sort.SliceStable(l.items, func(i, j int) bool {
		vi := l.items[i].Importance * l.items[i].Retention
		vj := l.items[j].Importance * l.items[j].Retention
		return vi > vj
	})
	dropped := len(l.items) - l.capacity
	l.items = l.items[:l.capacity]
	l.log.Debug("long-term pruned", "dropped", dropped, "kept", len(l.items))
}

// Search combines the param filters with a per-item relevance score:
//
//	score = 0.4*importance + 0.2*retention + 0.3*keywordRatio + 0.1*topicRatio
//
// Results are sorted by score descending; every returned item's access
// count is incremented.
func (l *LongTerm) Search(params SearchParams) ([]Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	now := time.Now()

	type scored struct {
		item  *Item
		score float64
	}
	var matches []scored
	for _, it := range l.items {
		if !params.Matches(it) {
			continue
		}
		it.RefreshRetention(now)
		score := ltWeightImportance*it.Importance +
			ltWeightRetention*it.Retention +
			ltWeightKeyword*params.KeywordRatio(it) +
			ltWeightTopic*params.TopicRatio(it)
		matches = append(matches, scored{item: it, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}

	out := make([]Item, 0, len(matches))
	for _, m := range matches {
		m.item.AccessCount++
		m.item.RefreshRetention(now)
		out = append(out, m.item.clone())
	}
	l.seq++
	snapshot, seq := l.snapshotLocked(), l.seq
	l.mu.Unlock()

	go l.checkpoint(snapshot, seq)
	return out, nil
}

// RefreshRetention recomputes retention snapshots for every item and
// persists them. Run periodically by the engine's maintenance schedule.
func (l *LongTerm) RefreshRetention() {
	l.mu.Lock()
	now := time.Now()
	for _, it := range l.items {
		it.RefreshRetention(now)
	}
	l.seq++
	snapshot, seq := l.snapshotLocked(), l.seq
	l.mu.Unlock()

	go l.checkpoint(snapshot, seq)
}

// Clear wipes the tier and its checkpoint. Conversation-boundary resets
// never call this; it exists for explicit operator use.
func (l *LongTerm) Clear() {
	l.mu.Lock()
	l.items = nil
	l.lastUpdated = time.Now()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	go l.checkpoint(nil, seq)
}

// Len returns the current item count.
func (l *LongTerm) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// LastUpdated returns the time of the last mutation.
func (l *LongTerm) LastUpdated() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastUpdated
}

// Items returns a snapshot copy of the tier contents, newest first.
func (l *LongTerm) Items() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *LongTerm) snapshotLocked() []Item {
	out := make([]Item, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, it.clone())
	}
	return out
}

func (l *LongTerm) checkpoint(items []Item, seq uint64) {
	if l.kv == nil {
		return
	}

	l.ckMu.Lock()
	defer l.ckMu.Unlock()
	if seq <= l.written {
		return
	}

	raw, err := store.Encode(items)
	if err != nil {
		l.log.Warn("long-term checkpoint encode failed", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.kv.Put(ctx, LongTermKey, raw); err != nil {
		l.log.Warn("long-term checkpoint write failed", "err", err)
		return
	}
	l.written = seq
}
