package analyzer

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// maxDocumentShare drops terms that appear in more than half of the corpus
const maxDocumentShare = 0.5

// Corpus is the lowercased set of review texts of one run.
// It is built before any per-review work and never mutated.
type Corpus struct {
	docs []string
}

// NewCorpus lowercases every text once
func NewCorpus(texts []string) *Corpus {
	docs := make([]string, len(texts))
	for i, t := range texts {
		docs[i] = strings.ToLower(t)
	}
	return &Corpus{docs: docs}
}

// Size returns the number of documents
func (c *Corpus) Size() int {
	if c == nil {
		return 0
	}
	return len(c.docs)
}

// DocumentFrequency counts the documents containing term as a substring
func (c *Corpus) DocumentFrequency(term string) int {
	if c == nil {
		return 0
	}
	df := 0
	for _, doc := range c.docs {
		if strings.Contains(doc, term) {
			df++
		}
	}
	return df
}

type termScore struct {
	term  string
	score float64
}

// ExtractKeywords ranks the terms of text by TF-IDF against corpus and
// returns at most topK of them. Ties keep first-encounter order.
func ExtractKeywords(text string, corpus *Corpus, minLength, topK int) []string {
	n := corpus.Size()
	if n == 0 || topK <= 0 {
		return []string{}
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return []string{}
	}

	counts := make(map[string]int)
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minLength {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	total := float64(len(tokens))
	scored := make([]termScore, 0, len(order))
	for _, term := range order {
		df := corpus.DocumentFrequency(term)
		if float64(df)/float64(n) > maxDocumentShare {
			continue
		}
		tf := float64(counts[term]) / total
		idf := math.Log(float64(n) / float64(max(df, 1)))
		scored = append(scored, termScore{term: term, score: tf * idf})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	keywords := make([]string, len(scored))
	for i, s := range scored {
		keywords[i] = s.term
	}
	return keywords
}
