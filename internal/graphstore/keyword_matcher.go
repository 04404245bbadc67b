package graphstore

import (
	"regexp"
	"strings"
)

// keywordMatcher provides the keyword-overlap half of HybridSearch, adapted
// from the teacher's internal/graph/semantic_matcher.go SemanticMatcher:
// same stop-word list, same keyword extraction and Jaccard-similarity
// scoring, trimmed of the teacher's issue/PR/commit-specific convenience
// methods since this domain scores source-definition text, not issue text.
type keywordMatcher struct {
	stopWords map[string]bool
}

func newKeywordMatcher() *keywordMatcher {
	return &keywordMatcher{stopWords: map[string]bool{
		"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
		"be": true, "but": true, "by": true, "for": true, "if": true, "in": true,
		"into": true, "is": true, "it": true, "no": true, "not": true, "of": true,
		"on": true, "or": true, "such": true, "that": true, "the": true, "their": true,
		"then": true, "there": true, "these": true, "they": true, "this": true, "to": true,
		"was": true, "will": true, "with": true,
	}}
}

// similarity returns the Jaccard similarity between a and b's extracted
// keyword sets, in [0, 1].
func (m *keywordMatcher) similarity(a, b string) float64 {
	ka := m.extractKeywords(a)
	kb := m.extractKeywords(b)
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}
	intersection := 0
	for k := range ka {
		if kb[k] {
			intersection++
		}
	}
	union := len(ka) + len(kb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s]+`)
	wordPattern = regexp.MustCompile(`\b[a-z0-9]+(?:[_-][a-z0-9]+)*\b`)
	versionLike = regexp.MustCompile(`^v?\d+\.\d+`)
)

func (m *keywordMatcher) extractKeywords(text string) map[string]bool {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("**", "", "__", "", "##", "", "```", "").Replace(text)

	keywords := make(map[string]bool)
	for _, word := range wordPattern.FindAllString(text, -1) {
		if m.stopWords[word] || len(word) < 2 {
			continue
		}
		if isNumeric(word) && !versionLike.MatchString(word) {
			continue
		}
		keywords[word] = true
		if stem := simpleStem(word); stem != word {
			keywords[stem] = true
		}
	}
	return keywords
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func simpleStem(word string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s", "er", "ly"} {
		if strings.HasSuffix(word, suffix) && len(word) > len(suffix)+2 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}
