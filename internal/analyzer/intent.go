package analyzer

import (
	"strings"

	"github.com/zombar/reviewinsights/internal/models"
)

// ClassifyIntent returns every intention whose phrase table matches the
// lowercased text, in table order. When nothing matches, a positive text is
// praise, a negative one a complaint, and a neutral one carries no intention.
func (l *Lexicon) ClassifyIntent(text, sentimentCategory string) []string {
	lower := strings.ToLower(text)

	intents := make([]string, 0, 2)
	for _, rule := range l.intents {
		if containsAny(lower, rule.Phrases) {
			intents = append(intents, rule.Intent)
		}
	}
	if len(intents) > 0 {
		return intents
	}

	switch sentimentCategory {
	case models.SentimentPositive:
		return []string{models.IntentPraise}
	case models.SentimentNegative:
		return []string{models.IntentComplaint}
	}
	return intents
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
