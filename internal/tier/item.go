// Package tier holds the memory item data model and the three bounded
// conversation tiers: working, short-term, and long-term. The tiers share
// one Store contract but differ in eviction policy — working memory evicts
// by importance, short-term by insertion order, long-term by a
// retention-weighted value score.
package tier

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhollis/recollect/internal/retention"
)

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerSubject Speaker = "subject"
	SpeakerSystem  Speaker = "system"
)

// ErrInvalidParams is returned when search parameters are rejected. It is
// the only error class surfaced to callers of the engine; everything else
// is recovered internally.
var ErrInvalidParams = errors.New("invalid search parameters")

// Item is the atomic unit of conversational memory.
//
// ID, Content, Timestamp, and Speaker are immutable for the item's
// lifetime. Importance is re-derived, never edited directly. Tags are
// additive. Retention is derived state, recomputed from age, importance,
// and access count on read; the persisted value is only a snapshot.
type Item struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"` // epoch milliseconds
	Speaker     Speaker  `json:"speaker"`
	Importance  float64  `json:"importance"`
	Topics      []string `json:"topics,omitempty"`
	Emotions    []string `json:"emotions,omitempty"`
	AccessCount int      `json:"access_count"`
	Retention   float64  `json:"retention"`
}

// New creates an item with a fresh ID and the current timestamp.
func New(content string, speaker Speaker, importance float64, topics, emotions []string) Item {
	return Item{
		ID:          uuid.NewString(),
		Content:     content,
		Timestamp:   time.Now().UnixMilli(),
		Speaker:     speaker,
		Importance:  importance,
		Topics:      append([]string(nil), topics...),
		Emotions:    append([]string(nil), emotions...),
		AccessCount: 0,
		Retention:   1.0,
	}
}

// AgeHours returns the item's age in hours at the given instant.
func (it *Item) AgeHours(now time.Time) float64 {
	return float64(now.UnixMilli()-it.Timestamp) / float64(time.Hour/time.Millisecond)
}

// RefreshRetention recomputes the derived retention score.
func (it *Item) RefreshRetention(now time.Time) {
	count := it.AccessCount
	if count < 1 {
		count = 1
	}
	it.Retention = retention.Score(it.AgeHours(now), it.Importance, count)
}

// AddTags appends topic and emotion labels not already present.
func (it *Item) AddTags(topics, emotions []string) {
	it.Topics = appendMissing(it.Topics, topics)
	it.Emotions = appendMissing(it.Emotions, emotions)
}

func appendMissing(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// clone returns a deep copy so callers never share tag slices with
// tier-owned items.
func (it *Item) clone() Item {
	c := *it
	c.Topics = append([]string(nil), it.Topics...)
	c.Emotions = append([]string(nil), it.Emotions...)
	return c
}

// SearchParams filter a tier search. All criteria are optional; a zero
// value matches everything. Keywords and tag lists use any-of semantics.
type SearchParams struct {
	Keywords []string
	Topics   []string
	Emotions []string
	Speaker  Speaker
	Since    int64 // epoch ms, inclusive; 0 = unbounded
	Until    int64 // epoch ms, inclusive; 0 = unbounded
	Limit    int   // 0 = no limit
}

// Validate rejects malformed parameters. A negative limit is the one
// caller mistake surfaced as an error.
func (p SearchParams) Validate() error {
	if p.Limit < 0 {
		return ErrInvalidParams
	}
	if p.Since != 0 && p.Until != 0 && p.Since > p.Until {
		return ErrInvalidParams
	}
	return nil
}

// Matches reports whether an item satisfies every supplied criterion.
func (p SearchParams) Matches(it *Item) bool {
	if p.Speaker != "" && it.Speaker != p.Speaker {
		return false
	}
	if p.Since != 0 && it.Timestamp < p.Since {
		return false
	}
	if p.Until != 0 && it.Timestamp > p.Until {
		return false
	}
	if len(p.Keywords) > 0 && countKeywordHits(it.Content, p.Keywords) == 0 {
		return false
	}
	if len(p.Topics) > 0 && countTagHits(it.Topics, p.Topics) == 0 {
		return false
	}
	if len(p.Emotions) > 0 && countTagHits(it.Emotions, p.Emotions) == 0 {
		return false
	}
	return true
}

// KeywordRatio returns the fraction of requested keywords present in the
// content, or 1 when no keywords were requested.
func (p SearchParams) KeywordRatio(it *Item) float64 {
	if len(p.Keywords) == 0 {
		return 1
	}
	return float64(countKeywordHits(it.Content, p.Keywords)) / float64(len(p.Keywords))
}

// TopicRatio returns the fraction of requested topics carried by the item,
// or 1 when no topics were requested.
func (p SearchParams) TopicRatio(it *Item) float64 {
	if len(p.Topics) == 0 {
		return 1
	}
	return float64(countTagHits(it.Topics, p.Topics)) / float64(len(p.Topics))
}

func countKeywordHits(content string, keywords []string) int {
	lowered := strings.ToLower(content)
	hits := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

func countTagHits(tags, wanted []string) int {
	hits := 0
	for _, w := range wanted {
		for _, tag := range tags {
			if strings.EqualFold(tag, w) {
				hits++
				break
			}
		}
	}
	return hits
}

// Store is the contract shared by the conversation tiers. Eviction policy
// is per-implementation.
type Store interface {
	Add(item Item)
	Search(params SearchParams) ([]Item, error)
	Prune()
	Clear()
	Len() int
	LastUpdated() time.Time
	Items() []Item
}
