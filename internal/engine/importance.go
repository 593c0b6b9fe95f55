package engine

import (
	"math"
	"strings"
)

// Importance derivation constants. Base is the score of an unremarkable
// utterance; the modifiers reward length, emotional intensity, reported
// problems, and expressive punctuation. The result is clamped to
// [0.1, 1.0] so nothing is ever weightless.
const (
	importanceBase = 0.5

	longUtteranceWords     = 50
	veryLongUtteranceWords = 100
	lengthBonus            = 0.1

	highIntensityBonus = 0.2
	emotionBonus       = 0.1
	problemBonus       = 0.2

	punctuationWeight = 0.02
	punctuationCap    = 0.1

	importanceFloor = 0.1
)

// deriveImportance scores an utterance from its text and the supplied
// classification signals.
func (e *Engine) deriveImportance(content string, sig Context) float64 {
	imp := importanceBase

	words := wordCount(content)
	if words > longUtteranceWords {
		imp += lengthBonus
	}
	if words > veryLongUtteranceWords {
		imp += lengthBonus
	}

	if e.hasHighIntensity(sig.Emotions) {
		imp += highIntensityBonus
	} else if len(sig.Emotions) > 0 {
		imp += emotionBonus
	}

	if len(sig.Problems) > 0 {
		imp += problemBonus
	}

	marks := strings.Count(content, "!") + strings.Count(content, "?")
	imp += math.Min(punctuationCap, punctuationWeight*float64(marks))

	return clamp(imp, importanceFloor, 1.0)
}

// hasHighIntensity reports whether any emotion label is in the
// high-intensity set.
func (e *Engine) hasHighIntensity(emotions []string) bool {
	for _, emotion := range emotions {
		if _, ok := e.highIntensity[strings.ToLower(emotion)]; ok {
			return true
		}
	}
	return false
}

func wordCount(content string) int {
	return len(strings.Fields(content))
}
