package cluster

import (
	"math"
	"unicode/utf8"

	"github.com/zombar/reviewinsights/internal/analyzer"
)

// minTokenLength excludes short filler words from similarity (exclusive)
const minTokenLength = 2

// Similarity is the larger of the Jaccard index over token sets and the
// cosine over term-frequency vectors. Only tokens longer than two characters count.
func Similarity(a, b string) float64 {
	return tokenSimilarity(significantTokens(a), significantTokens(b))
}

func significantTokens(text string) []string {
	all := analyzer.Tokenize(text)
	out := all[:0]
	for _, t := range all {
		if utf8.RuneCountInString(t) > minTokenLength {
			out = append(out, t)
		}
	}
	return out
}

func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return math.Max(jaccard(a, b), cosine(a, b))
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func cosine(a, b []string) float64 {
	tfA := termFrequencies(a)
	tfB := termFrequencies(b)

	var dot, normA, normB float64
	for t, x := range tfA {
		normA += x * x
		if y, ok := tfB[t]; ok {
			dot += x * y
		}
	}
	for _, y := range tfB {
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}
