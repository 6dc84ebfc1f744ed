package triage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triaged/internal/knowledge"
	"github.com/fyrsmithlabs/triaged/internal/vectorindex"
)

// Statistics summarizes the knowledge base and search capabilities.
type Statistics struct {
	TotalDocuments       int            `json:"total_documents"`
	TotalChunks          int            `json:"total_chunks"`
	VectorStoreAvailable bool           `json:"vector_store_available"`
	EmbeddingsAvailable  bool           `json:"embeddings_available"`
	KnowledgeBasePath    string         `json:"knowledge_base_path"`
	Categories           []string       `json:"categories"`
	CategoryCounts       map[string]int `json:"category_counts"`
	AverageLength        float64        `json:"average_content_length"`
	GenerationProvider   string         `json:"generation_provider"`
}

// Statistics reports the current state. Categories are sorted.
func (s *Service) Statistics() (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Statistics{}, ErrNotInitialized
	}
	st := s.store.Stats()
	return Statistics{
		TotalDocuments:       st.TotalDocuments,
		TotalChunks:          len(s.retriever.Chunks()),
		VectorStoreAvailable: s.retriever.VectorEnabled(),
		EmbeddingsAvailable:  s.index != nil,
		KnowledgeBasePath:    s.store.Path(),
		Categories:           s.store.Categories(),
		CategoryCounts:       st.Categories,
		AverageLength:        st.AverageLength,
		GenerationProvider:   s.config.Generation.Provider,
	}, nil
}

// IndexStatus describes the vector index; Enabled is false when no
// embedding capability is configured.
type IndexStatus struct {
	Enabled bool `json:"enabled"`
	vectorindex.Status
}

// IndexStatus reports vector index state.
func (s *Service) IndexStatus() (IndexStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return IndexStatus{}, ErrNotInitialized
	}
	if s.index == nil {
		return IndexStatus{}, nil
	}
	return IndexStatus{Enabled: true, Status: s.index.Status()}, nil
}

// Documents lists the knowledge base in insertion order.
func (s *Service) Documents() ([]knowledge.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.store.List(), nil
}

// Search runs the administrative keyword search over whole documents.
func (s *Service) Search(query string) ([]knowledge.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.store.Search(query), nil
}

// AddDocument stores a manually added document and re-indexes.
func (s *Service) AddDocument(ctx context.Context, title, content, category string) (knowledge.Document, error) {
	return s.addDocument(ctx, title, content, category, knowledge.SourceManual)
}

// UploadDocument stores an uploaded document and re-indexes.
func (s *Service) UploadDocument(ctx context.Context, title, content, category string) (knowledge.Document, error) {
	return s.addDocument(ctx, title, content, category, knowledge.SourceUploaded)
}

func (s *Service) addDocument(ctx context.Context, title, content, category string, source knowledge.Source) (knowledge.Document, error) {
	ctx, span := tracer.Start(ctx, "Service.AddDocument")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return knowledge.Document{}, ErrNotInitialized
	}
	doc, err := s.store.Add(ctx, title, content, category, source)
	if err != nil {
		span.RecordError(err)
		return knowledge.Document{}, err
	}
	span.SetAttributes(attribute.String("document_id", doc.ID))
	_ = s.reindex(ctx)
	return doc, nil
}

// UpdateDocument replaces a document's content (and category when
// non-empty) and re-indexes.
func (s *Service) UpdateDocument(ctx context.Context, id, content, category string) (knowledge.Document, error) {
	ctx, span := tracer.Start(ctx, "Service.UpdateDocument")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return knowledge.Document{}, ErrNotInitialized
	}
	doc, err := s.store.Update(ctx, id, content, category)
	if err != nil {
		span.RecordError(err)
		return knowledge.Document{}, err
	}
	_ = s.reindex(ctx)
	return doc, nil
}

// Backup writes the collection to path, or to a timestamped file in the
// backup directory when path is empty, and returns the path written.
func (s *Service) Backup(ctx context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return "", ErrNotInitialized
	}
	return s.store.Backup(ctx, path)
}

// Restore replaces the collection from a backup and re-indexes. A rejected
// backup leaves the store and index untouched.
func (s *Service) Restore(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Service.Restore")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.store.Restore(ctx, path); err != nil {
		span.RecordError(err)
		return err
	}
	_ = s.reindex(ctx)
	return nil
}

// Reload re-reads the knowledge collection and re-indexes when another
// process changed it. It reports whether anything changed.
func (s *Service) Reload(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "Service.Reload")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}
	changed, err := s.store.Reload(ctx)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("changed", changed))
	if changed {
		_ = s.reindex(ctx)
	}
	return changed, nil
}

// RebuildIndex re-chunks the store and rebuilds the vector index.
func (s *Service) RebuildIndex(ctx context.Context) (IndexStatus, error) {
	ctx, span := tracer.Start(ctx, "Service.RebuildIndex")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return IndexStatus{}, ErrNotInitialized
	}
	if err := s.reindex(ctx); err != nil {
		return IndexStatus{Enabled: true, Status: s.index.Status()}, fmt.Errorf("rebuilding index: %w", err)
	}
	if s.index == nil {
		return IndexStatus{}, nil
	}
	return IndexStatus{Enabled: true, Status: s.index.Status()}, nil
}

// reindex must be called with the write lock held. A failed build leaves
// the index not-ready and the new retriever keyword-only; the error is
// returned for callers that surface it.
func (s *Service) reindex(ctx context.Context) error {
	chunks := s.splitter.SplitAll(s.store.List())

	var buildErr error
	if s.index != nil {
		if err := s.index.Build(ctx, chunks); err != nil {
			buildErr = err
			s.logger.Warn("rebuilding vector index failed, using keyword search", zap.Error(err))
		} else if err := s.index.Persist(ctx, ""); err != nil {
			s.logger.Warn("persisting vector index failed", zap.Error(err))
		}
	}
	s.retriever = s.newRetriever(chunks)
	return buildErr
}
