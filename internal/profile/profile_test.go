package profile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhollis/recollect/internal/tier"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestRecordTopicsAndTopTopics(t *testing.T) {
	s := NewStore(25, nil, 0, nil)
	s.RecordTopics([]string{"family", "work"})
	s.RecordTopics([]string{"family"})
	s.RecordTopics([]string{"family", "health"})

	top := s.TopTopics(2)
	require.Len(t, top, 2)
	assert.Equal(t, "family", top[0].Label)
	assert.Equal(t, 3, top[0].Count)
}

func TestRecordEmotionsAndDominant(t *testing.T) {
	s := NewStore(25, nil, 0, nil)
	s.RecordEmotions([]string{"anxious", "sad"})
	s.RecordEmotions([]string{"anxious"})

	dominant := s.DominantEmotions(1)
	require.Len(t, dominant, 1)
	assert.Equal(t, "anxious", dominant[0].Label)
	assert.Equal(t, 2, dominant[0].Count)
}

func TestSignificantEventRingCap(t *testing.T) {
	s := NewStore(5, nil, 0, nil)
	for i := 0; i < 8; i++ {
		s.AddSignificantEvent(tier.New(fmt.Sprintf("event %d", i), tier.SpeakerSubject, 0.95, nil, nil))
	}

	require.Equal(t, 5, s.EventCount())
	events := s.Snapshot().SignificantEvents
	// Least recent fell off: events 3..7 remain, oldest first.
	assert.Equal(t, "event 3", events[0].Content)
	assert.Equal(t, "event 7", events[4].Content)
}

func TestSetPreference(t *testing.T) {
	s := NewStore(25, nil, 0, nil)
	s.SetPreference("preferred_name", "Sam")
	s.SetPreference("preferred_name", "Samantha")

	assert.Equal(t, "Samantha", s.Snapshot().Preferences["preferred_name"])
}

func TestPersistAndRestore(t *testing.T) {
	kv := newMemKV()

	s := NewStore(25, kv, time.Second, nil)
	s.RecordTopics([]string{"garden"})
	s.SetPreference("tone", "gentle")
	s.AddSignificantEvent(tier.New("big news", tier.SpeakerSubject, 0.95, nil, nil))

	waitFor(t, func() bool {
		restored := NewStore(25, kv, time.Second, nil)
		p := restored.Snapshot()
		return p.TopicCounts["garden"] == 1 &&
			p.Preferences["tone"] == "gentle" &&
			len(p.SignificantEvents) == 1
	})
}

func TestRestoreCorruptStartsFresh(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Put(context.Background(), Key, []byte("}{")))

	s := NewStore(25, kv, time.Second, nil)
	assert.Empty(t, s.Snapshot().TopicCounts)
	assert.Equal(t, 0, s.EventCount())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore(25, nil, 0, nil)
	s.RecordTopics([]string{"music"})

	p := s.Snapshot()
	p.TopicCounts["music"] = 99

	assert.Equal(t, 1, s.Snapshot().TopicCounts["music"])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
