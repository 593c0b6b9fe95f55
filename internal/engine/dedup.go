package engine

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jhollis/recollect/internal/tier"
)

// Cross-tier ranking weights and shape. Recency decays on a 24-hour
// half-life-ish curve; access weight saturates at ten recalls. The
// contract: more recent and more important items rank higher, with ties
// broken by importance.
const (
	rankWeightRecency    = 0.5
	rankWeightImportance = 0.3
	rankWeightAccess     = 0.2

	recencyScaleHours = 24.0
	accessSaturation  = 10.0
)

// dedupPrefixLen bounds how much normalized content feeds the similarity
// key. Fifty characters is enough to collapse repeated utterances without
// merging genuinely different ones.
const dedupPrefixLen = 50

// contentKey hashes case-folded, whitespace-collapsed content truncated
// to the dedup prefix.
func contentKey(content string) uint64 {
	norm := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	if len(norm) > dedupPrefixLen {
		norm = norm[:dedupPrefixLen]
	}
	h := fnv.New64a()
	h.Write([]byte(norm))
	return h.Sum64()
}

// dedupe collapses items with near-identical content. The copy with the
// highest importance wins; equal importance keeps the most recent, and
// the surviving copy carries the largest access count seen so the
// retrieval feedback loop is not lost.
func dedupe(items []tier.Item) []tier.Item {
	seen := make(map[uint64]int, len(items))
	var out []tier.Item

	for _, it := range items {
		key := contentKey(it.Content)
		idx, dup := seen[key]
		if !dup {
			seen[key] = len(out)
			out = append(out, it)
			continue
		}

		kept := &out[idx]
		if it.AccessCount > kept.AccessCount {
			kept.AccessCount = it.AccessCount
		}
		if it.Importance > kept.Importance ||
			(it.Importance == kept.Importance && it.Timestamp > kept.Timestamp) {
			access := kept.AccessCount
			*kept = it
			if access > kept.AccessCount {
				kept.AccessCount = access
			}
		}
	}
	return out
}

// rank orders merged results by the blended score, ties broken by
// importance, then by recency.
func rank(items []tier.Item, now time.Time) []tier.Item {
	scores := make(map[string]float64, len(items))
	for i := range items {
		scores[items[i].ID] = rankScore(&items[i], now)
	}

	sort.SliceStable(items, func(i, j int) bool {
		si, sj := scores[items[i].ID], scores[items[j].ID]
		if si != sj {
			return si > sj
		}
		if items[i].Importance != items[j].Importance {
			return items[i].Importance > items[j].Importance
		}
		return items[i].Timestamp > items[j].Timestamp
	})
	return items
}

func rankScore(it *tier.Item, now time.Time) float64 {
	recency := math.Exp(-it.AgeHours(now) / recencyScaleHours)
	access := math.Min(1, float64(it.AccessCount)/accessSaturation)
	return rankWeightRecency*recency +
		rankWeightImportance*it.Importance +
		rankWeightAccess*access
}
