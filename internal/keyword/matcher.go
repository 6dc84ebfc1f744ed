// Package keyword scores chunks by query term overlap. It is the retrieval
// path used when no vector index is available, so it has no dependencies
// beyond the chunk model.
package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
)

// minTokenRunes is the length a query token must exceed to be counted.
const minTokenRunes = 2

// Match is a scored chunk.
type Match struct {
	Chunk chunker.Chunk
	Score float64
}

// Query is a tokenized query, reusable across many chunks.
type Query struct {
	tokens []string
	words  int
}

// Parse lower-cases and splits q on whitespace. All words count toward
// normalization; only tokens longer than two runes are matched.
func Parse(q string) Query {
	words := strings.Fields(strings.ToLower(q))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) > minTokenRunes {
			tokens = append(tokens, w)
		}
	}
	return Query{tokens: tokens, words: len(words)}
}

// Empty reports whether no token can match.
func (q Query) Empty() bool {
	return len(q.tokens) == 0
}

// Score returns the summed occurrence count of the query tokens in text,
// divided by the number of query words.
func (q Query) Score(text string) float64 {
	if q.Empty() {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, tok := range q.tokens {
		matches += strings.Count(lower, tok)
	}
	if matches == 0 {
		return 0
	}
	return float64(matches) / float64(q.words)
}

// Score is a convenience for Parse(query).Score(text).
func Score(text, query string) float64 {
	return Parse(query).Score(text)
}

// Search scores every chunk, drops zero scores and returns the best k in
// descending order. Equal scores keep chunk order. k <= 0 means no limit.
func Search(chunks []chunker.Chunk, query string, k int) []Match {
	q := Parse(query)
	if q.Empty() {
		return []Match{}
	}

	matches := make([]Match, 0)
	for _, c := range chunks {
		if s := q.Score(c.Text); s > 0 {
			matches = append(matches, Match{Chunk: c, Score: s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
