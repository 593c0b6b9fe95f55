// Package profile maintains the long-lived patient aggregate: topic and
// emotion frequency counters, the most significant memories, and stated
// preferences. Unlike the conversation tiers there is no decay here —
// counts only grow, and a conversation reset never touches this store.
package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jhollis/recollect/internal/store"
	"github.com/jhollis/recollect/internal/tier"
)

// Key is the persistence key for the profile payload.
const Key = "profile/patient"

// defaultEventCap bounds the significant-event ring buffer.
const defaultEventCap = 25

// Patient is the serializable profile aggregate.
type Patient struct {
	TopicCounts       map[string]int    `json:"topic_counts"`
	EmotionCounts     map[string]int    `json:"emotion_counts"`
	SignificantEvents []tier.Item       `json:"significant_events"`
	Preferences       map[string]string `json:"preferences"`
	CreatedAt         int64             `json:"created_at"` // epoch ms
	UpdatedAt         int64             `json:"updated_at"` // epoch ms
}

// Frequency pairs a label with how often it has appeared.
type Frequency struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Store owns the patient profile. Every mutation persists fire-and-forget;
// a failed write is logged and the in-memory profile stays authoritative.
type Store struct {
	mu       sync.RWMutex
	patient  Patient
	eventCap int

	kv      store.KV
	timeout time.Duration
	log     *log.Logger

	seq     uint64
	ckMu    sync.Mutex
	written uint64
}

// NewStore creates the profile store, restoring a persisted profile if one
// exists. A corrupt payload starts a fresh profile.
func NewStore(eventCap int, kv store.KV, timeout time.Duration, logger *log.Logger) *Store {
	if eventCap <= 0 {
		eventCap = defaultEventCap
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Store{
		eventCap: eventCap,
		kv:       kv,
		timeout:  timeout,
		log:      logger,
		patient: Patient{
			TopicCounts:   make(map[string]int),
			EmotionCounts: make(map[string]int),
			Preferences:   make(map[string]string),
			CreatedAt:     time.Now().UnixMilli(),
			UpdatedAt:     time.Now().UnixMilli(),
		},
	}
	s.restore()
	return s
}

func (s *Store) restore() {
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	raw, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.log.Warn("profile restore failed, starting fresh", "err", err)
		return
	}
	if raw == nil {
		return
	}

	var p Patient
	if err := store.Decode(raw, &p); err != nil {
		s.log.Warn("profile payload corrupt, starting fresh", "err", err)
		return
	}
	if p.TopicCounts == nil {
		p.TopicCounts = make(map[string]int)
	}
	if p.EmotionCounts == nil {
		p.EmotionCounts = make(map[string]int)
	}
	if p.Preferences == nil {
		p.Preferences = make(map[string]string)
	}
	s.patient = p
	s.log.Debug("profile restored", "topics", len(p.TopicCounts), "events", len(p.SignificantEvents))
}

// RecordTopics increments the counter for each topic label.
func (s *Store) RecordTopics(topics []string) {
	if len(topics) == 0 {
		return
	}
	s.mu.Lock()
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		s.patient.TopicCounts[topic]++
	}
	s.touchLocked()
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.persist(snapshot, seq)
}

// RecordEmotions increments the counter for each emotion label.
func (s *Store) RecordEmotions(emotions []string) {
	if len(emotions) == 0 {
		return
	}
	s.mu.Lock()
	for _, emotion := range emotions {
		if emotion == "" {
			continue
		}
		s.patient.EmotionCounts[emotion]++
	}
	s.touchLocked()
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.persist(snapshot, seq)
}

// AddSignificantEvent appends to the capped event ring; the least recent
// event falls off once the ring is full.
func (s *Store) AddSignificantEvent(item tier.Item) {
	s.mu.Lock()
	s.patient.SignificantEvents = append(s.patient.SignificantEvents, item)
	if len(s.patient.SignificantEvents) > s.eventCap {
		over := len(s.patient.SignificantEvents) - s.eventCap
		s.patient.SignificantEvents = s.patient.SignificantEvents[over:]
	}
	s.touchLocked()
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.persist(snapshot, seq)
}

// SetPreference records a stated preference.
func (s *Store) SetPreference(key, value string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.patient.Preferences[key] = value
	s.touchLocked()
	snapshot, seq := s.snapshotLocked(), s.seq
	s.mu.Unlock()

	go s.persist(snapshot, seq)
}

// TopTopics returns the n most frequent topics, most frequent first.
func (s *Store) TopTopics(n int) []Frequency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topFrequencies(s.patient.TopicCounts, n)
}

// DominantEmotions returns the n most frequent emotions.
func (s *Store) DominantEmotions(n int) []Frequency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topFrequencies(s.patient.EmotionCounts, n)
}

// Snapshot returns a deep copy of the profile.
func (s *Store) Snapshot() Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// EventCount returns how many significant events are held.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patient.SignificantEvents)
}

// LastUpdated returns the time of the last profile mutation.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.UnixMilli(s.patient.UpdatedAt)
}

func (s *Store) touchLocked() {
	s.patient.UpdatedAt = time.Now().UnixMilli()
	s.seq++
}

func (s *Store) snapshotLocked() Patient {
	p := Patient{
		TopicCounts:   make(map[string]int, len(s.patient.TopicCounts)),
		EmotionCounts: make(map[string]int, len(s.patient.EmotionCounts)),
		Preferences:   make(map[string]string, len(s.patient.Preferences)),
		CreatedAt:     s.patient.CreatedAt,
		UpdatedAt:     s.patient.UpdatedAt,
	}
	for k, v := range s.patient.TopicCounts {
		p.TopicCounts[k] = v
	}
	for k, v := range s.patient.EmotionCounts {
		p.EmotionCounts[k] = v
	}
	for k, v := range s.patient.Preferences {
		p.Preferences[k] = v
	}
	p.SignificantEvents = append(p.SignificantEvents, s.patient.SignificantEvents...)
	return p
}

func topFrequencies(counts map[string]int, n int) []Frequency {
	freqs := make([]Frequency, 0, len(counts))
	for label, count := range counts {
		freqs = append(freqs, Frequency{Label: label, Count: count})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Label < freqs[j].Label
	})
	if n > 0 && len(freqs) > n {
		freqs = freqs[:n]
	}
	return freqs
}

func (s *Store) persist(p Patient, seq uint64) {
	if s.kv == nil {
		return
	}

	s.ckMu.Lock()
	defer s.ckMu.Unlock()
	if seq <= s.written {
		return
	}

	raw, err := store.Encode(p)
	if err != nil {
		s.log.Warn("profile encode failed", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.kv.Put(ctx, Key, raw); err != nil {
		s.log.Warn("profile write failed", "err", err)
		return
	}
	s.written = seq
}
