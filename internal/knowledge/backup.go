package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// backupFile is the wrapper written by Backup.
type backupFile struct {
	BackupDate     string   `json:"backup_date"`
	OriginalPath   string   `json:"original_path"`
	TotalDocuments int      `json:"total_documents"`
	KnowledgeBase  []record `json:"knowledge_base"`
}

// Backup snapshots the collection to path. An empty path writes
// knowledge_backup_YYYYMMDD_HHMMSS.json into the backup directory.
// It returns the path written.
func (s *Store) Backup(ctx context.Context, path string) (string, error) {
	_, span := tracer.Start(ctx, "Store.Backup")
	defer span.End()

	now := s.now().UTC()
	if path == "" {
		path = filepath.Join(s.config.BackupDir, "knowledge_backup_"+now.Format("20060102_150405")+".json")
	}

	s.mu.RLock()
	snapshot := backupFile{
		BackupDate:     formatTimestamp(now),
		OriginalPath:   s.config.Path,
		TotalDocuments: len(s.docs),
		KnowledgeBase:  toRecords(s.docs),
	}
	s.mu.RUnlock()

	if err := writeJSONAtomic(path, snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: writing backup %s: %v", ErrPersistence, path, err)
	}

	span.SetAttributes(attribute.Int("document_count", snapshot.TotalDocuments))
	s.logger.Info("knowledge base backed up",
		zap.String("path", path),
		zap.Int("documents", snapshot.TotalDocuments),
	)
	return path, nil
}

// Restore replaces the collection with the one stored at path, in either the
// backup wrapper form or as a bare array of documents.
func (s *Store) Restore(ctx context.Context, path string) error {
	_, span := tracer.Start(ctx, "Store.Restore")
	defer span.End()

	data, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: reading backup %s: %v", ErrPersistence, path, err)
	}

	records, err := decodeCollection(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	docs := fromRecords(records)
	if err := s.replace(docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("document_count", len(docs)))
	s.logger.Info("knowledge base restored",
		zap.String("path", path),
		zap.Int("documents", len(docs)),
	)
	return nil
}

// decodeCollection extracts document records from a wrapper object or a bare
// array. Every record needs a title and content.
func decodeCollection(data []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}

	var records []record
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		raw, ok := wrapper["knowledge_base"]
		if !ok {
			return nil, fmt.Errorf("%w: missing knowledge_base", ErrFormat)
		}
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: knowledge_base: %v", ErrFormat, err)
		}
		if records == nil {
			return nil, fmt.Errorf("%w: knowledge_base is not a document list", ErrFormat)
		}
	default:
		return nil, fmt.Errorf("%w: expected a document list or backup object", ErrFormat)
	}

	for i, r := range records {
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Content) == "" {
			return nil, fmt.Errorf("%w: record %d lacks title or content", ErrFormat, i)
		}
	}
	if records == nil {
		records = []record{}
	}
	return records, nil
}
