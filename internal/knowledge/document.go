// Package knowledge provides the durable medical reference collection.
package knowledge

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultCategory is assigned to documents added without a category.
const DefaultCategory = "custom"

// Source identifies how a document entered the store.
type Source string

const (
	SourceBuiltin  Source = "builtin"
	SourceUploaded Source = "uploaded"
	SourceManual   Source = "manual"
)

// ParseSource normalizes a persisted source value. Unknown values and the
// empty string map to builtin, "manual_addition" maps to manual.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uploaded", "upload":
		return SourceUploaded
	case "manual", "manual_addition":
		return SourceManual
	default:
		return SourceBuiltin
	}
}

// Document is a titled, categorized reference text.
type Document struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	AddedAt  time.Time `json:"added_at"`
	Source   Source    `json:"source"`
}

// record is the persisted shape of a Document. The ID is derived on load.
type record struct {
	Category  string `json:"category"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	AddedDate string `json:"added_date,omitempty"`
	Source    string `json:"source,omitempty"`
}

// timestampLayouts are tried in order when reading added_date. The naive
// layouts cover collections written by isoformat() without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (d Document) toRecord() record {
	return record{
		Category:  d.Category,
		Title:     d.Title,
		Content:   d.Content,
		AddedDate: formatTimestamp(d.AddedAt),
		Source:    string(d.Source),
	}
}

// fromRecords converts persisted records to documents and assigns IDs.
func fromRecords(records []record) []Document {
	docs := make([]Document, 0, len(records))
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		d := Document{
			Category: r.Category,
			Title:    r.Title,
			Content:  r.Content,
			AddedAt:  parseTimestamp(r.AddedDate),
			Source:   ParseSource(r.Source),
		}
		d.ID = uniqueID(Slug(d.Title), ids)
		ids[d.ID] = struct{}{}
		docs = append(docs, d)
	}
	return docs
}

func toRecords(docs []Document) []record {
	records := make([]record, len(docs))
	for i, d := range docs {
		records[i] = d.toRecord()
	}
	return records
}

// Slug derives a document ID from a title: lower case, runs of anything
// that is not a letter or digit collapsed to a single hyphen.
func Slug(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}

// uniqueID suffixes base with -2, -3, ... until it is not in taken.
func uniqueID(base string, taken map[string]struct{}) string {
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
