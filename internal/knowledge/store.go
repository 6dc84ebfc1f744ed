package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("triaged.knowledge")

// Config holds knowledge store configuration.
type Config struct {
	// Path is the JSON collection file.
	// Default: "data/medical_knowledge.json"
	Path string

	// BackupDir receives generated backups when Backup is called without a path.
	// Default: directory of Path.
	BackupDir string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = filepath.Join("data", "medical_knowledge.json")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Dir(c.Path)
	}
}

// Store is a durable, ordered document collection.
//
// Reads are safe for concurrent use. Writes persist the full collection
// atomically before they become visible in memory.
type Store struct {
	config Config
	logger *zap.Logger

	mu   sync.RWMutex
	docs []Document

	now func() time.Time
}

// Open loads the collection at cfg.Path. A missing file is seeded with the
// built-in documents, which are persisted immediately.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	s := &Store{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.config.Path)
	if errors.Is(err, fs.ErrNotExist) {
		docs := s.seed()
		if err := writeJSONAtomic(s.config.Path, toRecords(docs)); err != nil {
			return fmt.Errorf("%w: seeding %s: %v", ErrPersistence, s.config.Path, err)
		}
		s.docs = docs
		s.logger.Info("seeded knowledge base",
			zap.String("path", s.config.Path),
			zap.Int("documents", len(docs)),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrPersistence, s.config.Path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrFormat, s.config.Path, err)
	}
	s.docs = fromRecords(records)

	s.logger.Debug("loaded knowledge base",
		zap.String("path", s.config.Path),
		zap.Int("documents", len(s.docs)),
	)
	return nil
}

// Reload re-reads the collection file, picking up writes made by another
// process. It reports whether the collection changed. On error the current
// collection is kept.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	_, span := tracer.Start(ctx, "Store.Reload")
	defer span.End()

	data, err := os.ReadFile(s.config.Path)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: reading %s: %v", ErrPersistence, s.config.Path, err)
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: decoding %s: %v", ErrFormat, s.config.Path, err)
	}
	next := fromRecords(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Equal(toRecords(s.docs), toRecords(next)) {
		return false, nil
	}
	s.docs = next
	span.SetAttributes(attribute.Int("documents", len(next)))
	s.logger.Info("reloaded knowledge base",
		zap.String("path", s.config.Path),
		zap.Int("documents", len(next)),
	)
	return true, nil
}

func (s *Store) seed() []Document {
	added := s.now().UTC()
	records := make([]record, len(builtinDocuments))
	for i, b := range builtinDocuments {
		records[i] = record{
			Category:  b.Category,
			Title:     b.Title,
			Content:   b.Content,
			AddedDate: formatTimestamp(added),
			Source:    string(SourceBuiltin),
		}
	}
	return fromRecords(records)
}

// Path returns the collection file location.
func (s *Store) Path() string {
	return s.config.Path
}

// List returns a copy of all documents in insertion order.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len returns the number of documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Categories returns the distinct categories, sorted.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return categoriesOf(s.docs)
}

func categoriesOf(docs []Document) []string {
	seen := make(map[string]struct{})
	for _, d := range docs {
		seen[d.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Add appends a document and persists the full collection. Nothing changes
// in memory if the write fails.
func (s *Store) Add(ctx context.Context, title, content, category string, source Source) (Document, error) {
	_, span := tracer.Start(ctx, "Store.Add")
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("%w: title and content are required", ErrInvalidDocument)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}
	if source != SourceUploaded {
		source = SourceManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]struct{}, len(s.docs))
	for _, d := range s.docs {
		taken[d.ID] = struct{}{}
	}
	doc := Document{
		ID:       uniqueID(Slug(title), taken),
		Category: category,
		Title:    title,
		Content:  content,
		AddedAt:  s.now().UTC(),
		Source:   source,
	}

	next := make([]Document, len(s.docs), len(s.docs)+1)
	copy(next, s.docs)
	next = append(next, doc)

	if err := s.commit(next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Document{}, err
	}

	span.SetAttributes(
		attribute.String("document_id", doc.ID),
		attribute.Int("document_count", len(next)),
	)
	s.logger.Info("added document",
		zap.String("id", doc.ID),
		zap.String("category", doc.Category),
		zap.String("source", string(doc.Source)),
	)
	return doc, nil
}

// Update replaces the content and category of an existing document.
// An empty category keeps the current one.
func (s *Store) Update(ctx context.Context, id, content, category string) (Document, error) {
	_, span := tracer.Start(ctx, "Store.Update")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("%w: content is required", ErrInvalidDocument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, d := range s.docs {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := make([]Document, len(s.docs))
	copy(next, s.docs)
	next[idx].Content = content
	if c := strings.TrimSpace(category); c != "" {
		next[idx].Category = c
	}

	if err := s.commit(next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Document{}, err
	}

	s.logger.Info("updated document", zap.String("id", id))
	return next[idx], nil
}

// replace swaps the whole collection, used by Restore.
func (s *Store) replace(docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(docs)
}

// commit persists docs and then publishes them. Caller holds s.mu.
func (s *Store) commit(docs []Document) error {
	if err := writeJSONAtomic(s.config.Path, toRecords(docs)); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrPersistence, s.config.Path, err)
	}
	s.docs = docs
	return nil
}

// writeJSONAtomic writes v as indented JSON through a temp file in the
// target directory followed by a rename.
func writeJSONAtomic(path string, v any) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(v); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming: %w", err)
	}
	return nil
}
