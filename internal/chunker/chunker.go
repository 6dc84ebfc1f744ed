// Package chunker splits knowledge documents into overlapping passages.
//
// Splitting is deterministic and operates on runes. Each chunk after the
// first begins with the last Overlap runes of its predecessor, so the
// original content is recovered by Reassemble.
package chunker

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/triaged/internal/knowledge"
)

// ErrInvalidConfig indicates an unusable chunker configuration.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// DefaultSeparators lists cut points in priority order: paragraph break,
// line break, sentence end, space.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Config holds chunker configuration.
type Config struct {
	// MaxSize is the maximum chunk length in runes.
	// Default: 500
	MaxSize int

	// Overlap is the number of runes shared between adjacent chunks.
	// Default: 50
	Overlap int

	// Separators in priority order.
	// Default: DefaultSeparators
	Separators []string
}

// ApplyDefaults sets default values for unset fields. Overlap only takes its
// default together with MaxSize, so an explicit zero overlap is kept.
func (c *Config) ApplyDefaults() {
	if c.MaxSize == 0 {
		c.MaxSize = 500
		if c.Overlap == 0 {
			c.Overlap = 50
		}
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, c.MaxSize, c.Overlap)
	}
	for _, sep := range c.Separators {
		if sep == "" {
			return fmt.Errorf("%w: empty separator", ErrInvalidConfig)
		}
	}
	return nil
}

// Chunk is a passage of one document.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Position   int    `json:"position"`
	// Start is the rune offset of Text within the document content.
	Start int `json:"start"`
	// Overlap is the number of leading runes shared with the previous chunk.
	Overlap int    `json:"overlap"`
	Text    string `json:"text"`
}

// ID identifies the chunk across index rebuilds.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s#%d", c.DocumentID, c.Position)
}

// Splitter splits documents according to a Config.
type Splitter struct {
	config     Config
	separators [][]rune
}

// New creates a Splitter. Zero fields take their defaults.
func New(cfg Config) (*Splitter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seps := make([][]rune, len(cfg.Separators))
	for i, s := range cfg.Separators {
		seps[i] = []rune(s)
	}
	return &Splitter{config: cfg, separators: seps}, nil
}

// Config returns the effective configuration.
func (s *Splitter) Config() Config {
	return s.config
}

// Split segments doc.Content. Empty content yields no chunks.
func (s *Splitter) Split(doc knowledge.Document) []Chunk {
	text := []rune(doc.Content)
	n := len(text)
	if n == 0 {
		return nil
	}

	var chunks []Chunk
	start, overlap := 0, 0
	for {
		cut := s.cut(text, start)
		chunks = append(chunks, Chunk{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Category:   doc.Category,
			Position:   len(chunks),
			Start:      start,
			Overlap:    overlap,
			Text:       string(text[start:cut]),
		})
		if cut >= n {
			return chunks
		}
		// cut > start+Overlap, so the next start always advances.
		start = cut - s.config.Overlap
		overlap = s.config.Overlap
	}
}

// cut returns the exclusive end of the chunk beginning at start.
func (s *Splitter) cut(text []rune, start int) int {
	end := start + s.config.MaxSize
	if end >= len(text) {
		return len(text)
	}

	// A cut must leave the chunk longer than the overlap.
	lo := start + s.config.Overlap + 1
	for _, sep := range s.separators {
		if pos := lastCutAfter(text, sep, lo, end); pos > 0 {
			return pos
		}
	}
	return end
}

// lastCutAfter finds the last occurrence of sep such that the position just
// after it lies in [lo, end]. It returns that position or -1.
func lastCutAfter(text, sep []rune, lo, end int) int {
	for pos := end; pos >= lo; pos-- {
		i := pos - len(sep)
		if i < 0 {
			break
		}
		if runesEqual(text[i:pos], sep) {
			return pos
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitAll splits docs in order. The resulting order is the insertion
// sequence used for ranking ties.
func (s *Splitter) SplitAll(docs []knowledge.Document) []Chunk {
	var out []Chunk
	for _, d := range docs {
		out = append(out, s.Split(d)...)
	}
	return out
}

// Reassemble joins the chunks of one document, dropping each chunk's
// overlap with its predecessor.
func Reassemble(chunks []Chunk) string {
	var out []rune
	for _, c := range chunks {
		out = append(out, []rune(c.Text)[c.Overlap:]...)
	}
	return string(out)
}
