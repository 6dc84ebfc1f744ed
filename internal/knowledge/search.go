package knowledge

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Field weights for administrative search.
const (
	titleWeight    = 3
	categoryWeight = 2
	contentWeight  = 1

	previewRunes = 200
)

// SearchResult is a document matched by Search.
type SearchResult struct {
	Document Document `json:"document"`
	Score    int      `json:"relevance_score"`
	Preview  string   `json:"content_preview"`
}

// Search ranks documents by case-insensitive substring matches of query in
// title, category and content. Ties keep insertion order. This is an
// inspection tool and is unrelated to retrieval-time ranking.
func (s *Store) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, d := range s.docs {
		score := 0
		if strings.Contains(strings.ToLower(d.Title), q) {
			score += titleWeight
		}
		if strings.Contains(strings.ToLower(d.Category), q) {
			score += categoryWeight
		}
		if strings.Contains(strings.ToLower(d.Content), q) {
			score += contentWeight
		}
		if score > 0 {
			results = append(results, SearchResult{
				Document: d,
				Score:    score,
				Preview:  preview(d.Content, previewRunes),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Stats summarizes the collection.
type Stats struct {
	TotalDocuments     int            `json:"total_documents"`
	Categories         map[string]int `json:"categories"`
	TotalContentLength int            `json:"total_content_length"`
	AverageLength      float64        `json:"average_content_length"`
	Titles             []string       `json:"titles"`
}

// Stats returns collection statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalDocuments: len(s.docs),
		Categories:     make(map[string]int),
		Titles:         make([]string, 0, len(s.docs)),
	}
	for _, d := range s.docs {
		st.Categories[d.Category]++
		st.TotalContentLength += utf8.RuneCountInString(d.Content)
		st.Titles = append(st.Titles, d.Title)
	}
	if st.TotalDocuments > 0 {
		st.AverageLength = float64(st.TotalContentLength) / float64(st.TotalDocuments)
	}
	return st
}
