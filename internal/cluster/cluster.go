// Package cluster groups short free-text phrases (feature requests, bug
// descriptions) by lexical similarity using average-link agglomeration.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zombar/reviewinsights/internal/analyzer"
)

const (
	nameKeywords  = 5
	maxNameLength = 50
)

// Phrase is an extracted phrase tagged with the comment it came from
type Phrase struct {
	Text         string
	CommentIndex int
}

// Group is one resulting cluster
type Group struct {
	Name     string
	Keywords []string
	Phrases  []Phrase
}

// Texts returns the member phrase texts in merge order
func (g Group) Texts() []string {
	out := make([]string, len(g.Phrases))
	for i, p := range g.Phrases {
		out[i] = p.Text
	}
	return out
}

// Options controls the agglomeration
type Options struct {
	Threshold        float64
	MinClusterSize   int
	MaxClusters      int
	MinKeywordLength int
}

// Cluster merges phrases bottom-up. Each step joins the pair of clusters with
// the highest mean pairwise similarity, as long as it reaches the threshold.
// Ties go to the first pair in (i<j) scan order. ctx is checked between merges.
func Cluster(ctx context.Context, phrases []Phrase, corpus *analyzer.Corpus, opts Options) ([]Group, error) {
	n := len(phrases)
	if n == 0 {
		return []Group{}, nil
	}

	tokens := make([][]string, n)
	for i, p := range phrases {
		tokens[i] = significantTokens(p.Text)
	}

	// links[i][j] holds the sum of pairwise similarities between clusters i and j
	links := make([][]float64, n)
	for i := range links {
		links[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := tokenSimilarity(tokens[i], tokens[j])
			links[i][j] = s
			links[j][i] = s
		}
	}

	members := make([][]int, n)
	for i := range members {
		members[i] = []int{i}
	}
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}
	remaining := n

	for remaining > 1 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("clustering interrupted: %w", err)
		}

		bestI, bestJ := -1, -1
		best := -1.0
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !alive[j] {
					continue
				}
				avg := links[i][j] / float64(len(members[i])*len(members[j]))
				if avg > best {
					best, bestI, bestJ = avg, i, j
				}
			}
		}
		if bestI < 0 || best < opts.Threshold {
			break
		}

		members[bestI] = append(members[bestI], members[bestJ]...)
		members[bestJ] = nil
		alive[bestJ] = false
		for k := 0; k < n; k++ {
			if k == bestI || !alive[k] {
				continue
			}
			links[bestI][k] += links[bestJ][k]
			links[k][bestI] = links[bestI][k]
		}
		remaining--
	}

	groups := make([]Group, 0, remaining)
	for i := 0; i < n; i++ {
		if !alive[i] || len(members[i]) < opts.MinClusterSize {
			continue
		}
		g := Group{Phrases: make([]Phrase, len(members[i]))}
		for k, idx := range members[i] {
			g.Phrases[k] = phrases[idx]
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Phrases) > len(groups[j].Phrases)
	})
	if opts.MaxClusters > 0 && len(groups) > opts.MaxClusters {
		groups = groups[:opts.MaxClusters]
	}

	for i := range groups {
		groups[i].Name, groups[i].Keywords = Name(groups[i].Texts(), corpus, opts.MinKeywordLength)
	}

	return groups, nil
}

// Name derives a cluster label: the top TF-IDF terms of the concatenated
// phrases, and the phrase with the highest keyword density as the name.
// Equal densities go to the shortest phrase.
func Name(phrases []string, corpus *analyzer.Corpus, minKeywordLength int) (string, []string) {
	if len(phrases) == 0 {
		return "", []string{}
	}

	keywords := analyzer.ExtractKeywords(strings.Join(phrases, " "), corpus, minKeywordLength, nameKeywords)

	representative := phrases[0]
	bestScore, bestLength := -1.0, 0
	for _, p := range phrases {
		length := utf8.RuneCountInString(p)
		if length == 0 {
			continue
		}
		lower := strings.ToLower(p)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		score := float64(hits) / float64(length)
		if score > bestScore || (score == bestScore && length < bestLength) {
			bestScore, bestLength = score, length
			representative = p
		}
	}

	return truncate(representative, maxNameLength), keywords
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
