package tier

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingAddAndLen(t *testing.T) {
	w := NewWorking(20)
	w.Add(New("feeling okay today", SpeakerSubject, 0.5, nil, nil))
	w.Add(New("that is good to hear", SpeakerSystem, 0.3, nil, nil))

	assert.Equal(t, 2, w.Len())
	assert.False(t, w.LastUpdated().IsZero())
}

func TestWorkingCapacityInvariant(t *testing.T) {
	w := NewWorking(20)
	for i := 0; i < 51; i++ {
		w.Add(New(fmt.Sprintf("utterance %d", i), SpeakerSubject, 0.5, nil, nil))
	}
	assert.Equal(t, 20, w.Len())
}

func TestWorkingPruneKeepsHighestImportance(t *testing.T) {
	w := NewWorking(3)
	w.Add(New("low", SpeakerSubject, 0.2, nil, nil))
	w.Add(New("high", SpeakerSubject, 0.9, nil, nil))
	w.Add(New("mid", SpeakerSubject, 0.5, nil, nil))
	w.Add(New("higher", SpeakerSubject, 0.95, nil, nil))

	items := w.Items()
	require.Len(t, items, 3)
	for _, it := range items {
		assert.NotEqual(t, "low", it.Content, "lowest-importance item should be evicted")
	}
}

func TestWorkingPruneTiesKeepRecent(t *testing.T) {
	w := NewWorking(2)
	w.Add(New("oldest", SpeakerSubject, 0.5, nil, nil))
	w.Add(New("middle", SpeakerSubject, 0.5, nil, nil))
	w.Add(New("newest", SpeakerSubject, 0.5, nil, nil))

	items := w.Items()
	require.Len(t, items, 2)
	contents := []string{items[0].Content, items[1].Content}
	assert.Contains(t, contents, "newest")
	assert.Contains(t, contents, "middle")
}

func TestWorkingSearchFilters(t *testing.T) {
	w := NewWorking(20)
	w.Add(New("I had a rough day at work", SpeakerSubject, 0.6, []string{"work"}, []string{"sad"}))
	w.Add(New("tell me more about that", SpeakerSystem, 0.3, nil, nil))
	w.Add(New("my sister visited", SpeakerSubject, 0.5, []string{"family"}, []string{"happy"}))

	bySpeaker, err := w.Search(SearchParams{Speaker: SpeakerSubject})
	require.NoError(t, err)
	assert.Len(t, bySpeaker, 2)

	byKeyword, err := w.Search(SearchParams{Keywords: []string{"sister"}})
	require.NoError(t, err)
	require.Len(t, byKeyword, 1)
	assert.Equal(t, "my sister visited", byKeyword[0].Content)

	byTopic, err := w.Search(SearchParams{Topics: []string{"work"}})
	require.NoError(t, err)
	assert.Len(t, byTopic, 1)

	byEmotion, err := w.Search(SearchParams{Emotions: []string{"happy"}})
	require.NoError(t, err)
	assert.Len(t, byEmotion, 1)
}

func TestWorkingSearchIncrementsAccessCount(t *testing.T) {
	w := NewWorking(20)
	w.Add(New("memorable moment", SpeakerSubject, 0.7, nil, nil))

	first, err := w.Search(SearchParams{Keywords: []string{"memorable"}})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].AccessCount)

	second, err := w.Search(SearchParams{Keywords: []string{"memorable"}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].AccessCount)
}

func TestWorkingSearchLimit(t *testing.T) {
	w := NewWorking(20)
	for i := 0; i < 10; i++ {
		w.Add(New(fmt.Sprintf("note %d", i), SpeakerSubject, 0.5, nil, nil))
	}
	out, err := w.Search(SearchParams{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestWorkingSearchRejectsNegativeLimit(t *testing.T) {
	w := NewWorking(20)
	_, err := w.Search(SearchParams{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestWorkingImmutability(t *testing.T) {
	w := NewWorking(20)
	item := New("fixed content", SpeakerSubject, 0.8, []string{"topic"}, nil)
	w.Add(item)

	before := w.Items()[0]
	_, err := w.Search(SearchParams{Keywords: []string{"fixed"}})
	require.NoError(t, err)
	w.Prune()

	after := w.Items()[0]
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Content, after.Content)
	assert.Equal(t, before.Timestamp, after.Timestamp)
	assert.Equal(t, before.Speaker, after.Speaker)
}

func TestWorkingClear(t *testing.T) {
	w := NewWorking(20)
	w.Add(New("gone soon", SpeakerSubject, 0.5, nil, nil))
	w.Clear()
	assert.Equal(t, 0, w.Len())
}

func TestWorkingReturnsCopies(t *testing.T) {
	w := NewWorking(20)
	w.Add(New("shared?", SpeakerSubject, 0.5, []string{"a"}, nil))

	items := w.Items()
	items[0].Topics[0] = "mutated"

	fresh := w.Items()
	assert.Equal(t, "a", fresh[0].Topics[0])
}

func TestItemAgeHours(t *testing.T) {
	it := New("x", SpeakerSubject, 0.5, nil, nil)
	it.Timestamp = time.Now().Add(-2 * time.Hour).UnixMilli()
	assert.InDelta(t, 2.0, it.AgeHours(time.Now()), 0.01)
}
