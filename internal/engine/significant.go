package engine

import "regexp"

// Significant-content heuristics force long-term admission regardless of
// the derived importance score. The markers come from the upstream
// classifier's vocabulary: crisis/trauma/loss language, superlatives, and
// first/last-time phrasing.
var (
	crisisPattern = regexp.MustCompile(`(?i)\b(suicid\w*|kill(ing)? myself|end it all|self[- ]?harm|hurt(ing)? myself|abus(e|ed|ive)|trauma\w*|assault\w*|crisis|died|death|dying|passed away|funeral|lost (my|her|his|our|the))\b`)

	superlativePattern = regexp.MustCompile(`(?i)\b(worst|best|most|never|always|everything|nothing|forever)\b`)

	milestonePattern = regexp.MustCompile(`(?i)\b(first time|last time|never (before|again)|for the first time)\b`)
)

// SignificantContent reports whether an utterance matches any
// significant-content marker.
func SignificantContent(content string) bool {
	return crisisPattern.MatchString(content) ||
		superlativePattern.MatchString(content) ||
		milestonePattern.MatchString(content)
}

// greetingPattern marks conversation-opening phrases. A greeting arriving
// on an already populated short-term buffer signals a fresh conversation.
var greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|howdy|good\s+(morning|afternoon|evening)|greetings)\b`)

func isGreeting(utterance string) bool {
	return greetingPattern.MatchString(utterance)
}
