// Package backup provides defensive snapshotting for the memory tiers.
// Snapshots are taken on a background worker fed by a bounded queue, so a
// slow or broken persistence medium never blocks the conversational write
// path: a full queue drops the job, a failed write is recorded as a failed
// BackupRecord and swallowed.
package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jhollis/recollect/internal/store"
	"github.com/jhollis/recollect/internal/tier"
)

// RecordsKey is the persistence key for the backup record index.
const RecordsKey = "backup/records"

// Status of one snapshot attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record describes one snapshot attempt.
type Record struct {
	ID        string `json:"id"`
	Tier      string `json:"tier"`
	Timestamp int64  `json:"timestamp"` // epoch ms
	ItemCount int    `json:"item_count"`
	Status    Status `json:"status"`
	Key       string `json:"key,omitempty"` // payload key, success only
}

type job struct {
	tier  string
	items []tier.Item
}

// Manager owns snapshot payloads and the per-tier record history. At most
// `history` records are retained per tier; older records and their
// payloads are evicted FIFO.
type Manager struct {
	kv      store.KV
	history int
	timeout time.Duration
	log     *log.Logger

	mu      sync.Mutex
	records map[string][]Record // per tier, oldest first
	closed  bool

	queue   chan job
	pending sync.WaitGroup
	done    chan struct{}
}

// NewManager creates the manager, restores the record index, and starts
// the snapshot worker.
func NewManager(kv store.KV, history, queueSize int, timeout time.Duration, logger *log.Logger) *Manager {
	if history <= 0 {
		history = 10
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	m := &Manager{
		kv:      kv,
		history: history,
		timeout: timeout,
		log:     logger,
		records: make(map[string][]Record),
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
	}
	m.restoreRecords()

	go m.worker()
	return m
}

func (m *Manager) restoreRecords() {
	if m.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	raw, err := m.kv.Get(ctx, RecordsKey)
	if err != nil || raw == nil {
		if err != nil {
			m.log.Warn("backup record index unreadable, starting fresh", "err", err)
		}
		return
	}

	var records map[string][]Record
	if err := store.Decode(raw, &records); err != nil {
		m.log.Warn("backup record index corrupt, starting fresh", "err", err)
		return
	}
	m.records = records
}

// Snapshot enqueues a snapshot of the given tier contents. It never
// blocks; under load the job is dropped with a warning and false is
// returned.
func (m *Manager) Snapshot(tierID string, items []tier.Item) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.pending.Add(1)
	m.mu.Unlock()

	select {
	case m.queue <- job{tier: tierID, items: items}:
		return true
	default:
		m.pending.Done()
		m.log.Warn("backup queue full, snapshot dropped", "tier", tierID)
		return false
	}
}

// Flush blocks until every enqueued snapshot has been attempted.
func (m *Manager) Flush() {
	m.pending.Wait()
}

// Close stops accepting snapshots, drains the queue, and stops the worker.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.pending.Wait()
	close(m.queue)
	<-m.done
}

func (m *Manager) worker() {
	defer close(m.done)
	for j := range m.queue {
		m.snapshotNow(j)
		m.pending.Done()
	}
}

// snapshotNow performs one snapshot attempt and records the outcome.
// Failures are contained here; nothing propagates to the caller's write
// path.
func (m *Manager) snapshotNow(j job) {
	now := time.Now().UnixMilli()
	id := uuid.NewString()
	rec := Record{
		ID:        id,
		Tier:      j.tier,
		Timestamp: now,
		ItemCount: len(j.items),
		Status:    StatusSuccess,
		// The ID suffix keeps same-millisecond snapshots from colliding.
		Key: fmt.Sprintf("backup/%s/%d-%s", j.tier, now, id[:8]),
	}

	if err := m.writePayload(rec.Key, j.items); err != nil {
		m.log.Warn("backup snapshot failed", "tier", j.tier, "err", err)
		rec.Status = StatusFailed
		rec.Key = ""
	}

	m.appendRecord(rec)
}

func (m *Manager) writePayload(key string, items []tier.Item) error {
	if m.kv == nil {
		return fmt.Errorf("no persistence medium")
	}
	raw, err := store.Encode(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.kv.Put(ctx, key, raw)
}

func (m *Manager) appendRecord(rec Record) {
	m.mu.Lock()
	m.records[rec.Tier] = append(m.records[rec.Tier], rec)

	// FIFO eviction of record + payload past the history cap.
	var evicted []Record
	if over := len(m.records[rec.Tier]) - m.history; over > 0 {
		evicted = append(evicted, m.records[rec.Tier][:over]...)
		m.records[rec.Tier] = m.records[rec.Tier][over:]
	}
	snapshot := m.snapshotRecordsLocked()
	m.mu.Unlock()

	for _, old := range evicted {
		if old.Key == "" || m.kv == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		if err := m.kv.Delete(ctx, old.Key); err != nil {
			m.log.Warn("backup payload eviction failed", "key", old.Key, "err", err)
		}
		cancel()
	}

	m.persistRecords(snapshot)
}

func (m *Manager) snapshotRecordsLocked() map[string][]Record {
	out := make(map[string][]Record, len(m.records))
	for tierID, recs := range m.records {
		out[tierID] = append([]Record(nil), recs...)
	}
	return out
}

func (m *Manager) persistRecords(records map[string][]Record) {
	if m.kv == nil {
		return
	}
	raw, err := store.Encode(records)
	if err != nil {
		m.log.Warn("backup record index encode failed", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.kv.Put(ctx, RecordsKey, raw); err != nil {
		m.log.Warn("backup record index write failed", "err", err)
	}
}

// Restore returns the items of the most recent successful snapshot for a
// tier, or the snapshot taken at the given timestamp when at != 0. The
// second return is false when no usable snapshot exists; a corrupt payload
// falls back to the next older successful snapshot.
func (m *Manager) Restore(tierID string, at int64) ([]tier.Item, bool) {
	m.mu.Lock()
	recs := append([]Record(nil), m.records[tierID]...)
	m.mu.Unlock()

	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if rec.Status != StatusSuccess {
			continue
		}
		if at != 0 && rec.Timestamp != at {
			continue
		}

		items, err := m.readPayload(rec.Key)
		if err != nil {
			m.log.Warn("backup payload unreadable", "key", rec.Key, "err", err)
			if at != 0 {
				return nil, false
			}
			continue
		}
		return items, true
	}
	return nil, false
}

func (m *Manager) readPayload(key string) ([]tier.Item, error) {
	if m.kv == nil {
		return nil, fmt.Errorf("no persistence medium")
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	raw, err := m.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("payload missing")
	}

	var items []tier.Item
	if err := store.Decode(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Records returns a copy of the record history for a tier, oldest first.
func (m *Manager) Records(tierID string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records[tierID]...)
}

// LastSuccess returns the most recent successful record for a tier.
func (m *Manager) LastSuccess(tierID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[tierID]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Status == StatusSuccess {
			return recs[i], true
		}
	}
	return Record{}, false
}
