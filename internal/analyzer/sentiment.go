package analyzer

import (
	"strings"
	"unicode"

	"github.com/zombar/reviewinsights/internal/models"
)

// Sentiment category thresholds on the mean lexicon weight
const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// Sentiment is the lexicon score of one text
type Sentiment struct {
	Value    float64
	Category string
}

// Tokenize lowercases text and splits it into maximal runs of letters and digits.
// Everything else separates tokens. No stemming is applied.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/5)
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// ScoreSentiment averages the lexicon weights of the matched tokens.
// Texts without a single lexicon hit are neutral with value 0.
func (l *Lexicon) ScoreSentiment(text string) Sentiment {
	sum, matches := 0, 0
	for _, token := range Tokenize(text) {
		if w, ok := l.sentiment[token]; ok {
			sum += w
			matches++
		}
	}
	if matches == 0 {
		return Sentiment{Value: 0, Category: models.SentimentNeutral}
	}

	value := float64(sum) / float64(matches)
	return Sentiment{Value: value, Category: categorize(value)}
}

func categorize(value float64) string {
	switch {
	case value > positiveThreshold:
		return models.SentimentPositive
	case value < negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
