package analyzer

import (
	"regexp"
	"strings"

	"github.com/zombar/reviewinsights/internal/models"
)

// minPhraseLength is the shortest captured phrase kept (exclusive)
const minPhraseLength = 3

// ExtractFeatureRequests returns the requested features found in text
func (l *Lexicon) ExtractFeatureRequests(text string) []string {
	return extractPhrases(text, l.featurePatterns)
}

// ExtractBugReports returns the failure descriptions found in text
func (l *Lexicon) ExtractBugReports(text string) []string {
	return extractPhrases(text, l.bugPatterns)
}

// extractPhrases applies each pattern once, in order, and keeps the trimmed
// first capture group when it is long enough and not yet collected.
func extractPhrases(text string, patterns []*regexp.Regexp) []string {
	phrases := []string{}
	seen := make(map[string]bool)
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		phrase := strings.TrimSpace(m[1])
		if len(phrase) <= minPhraseLength || seen[phrase] {
			continue
		}
		seen[phrase] = true
		phrases = append(phrases, phrase)
	}
	return phrases
}

// DetectCompetitors returns the canonical names mentioned in text
func (l *Lexicon) DetectCompetitors(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, name := range l.competitors {
		if strings.Contains(lower, strings.ToLower(name)) {
			found = append(found, name)
		}
	}
	return found
}

// DetectUserSegment returns the first segment whose phrases match, else unknown
func (l *Lexicon) DetectUserSegment(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range l.segments {
		if containsAny(lower, rule.Phrases) {
			return rule.Segment
		}
	}
	return models.SegmentUnknown
}

// DetectSeverity grades a review from its wording and star rating
func (l *Lexicon) DetectSeverity(text string, score int) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, l.highSeverity) || score <= 1:
		return models.LevelHigh
	case containsAny(lower, l.mediumSeverity) || score <= 3:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}
