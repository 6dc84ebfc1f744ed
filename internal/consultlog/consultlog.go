// Package consultlog appends one JSON line per consultation to a rotating
// file.
package consultlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrWrite indicates an entry could not be written.
var ErrWrite = errors.New("consultation log write failed")

// SessionType is recorded on every entry.
const SessionType = "symptom_consultation"

// Entry is one logged consultation.
type Entry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	SessionType    string    `json:"session_type"`
	Query          string    `json:"query"`
	Severity       string    `json:"severity"`
	RAGContextUsed bool      `json:"rag_context_used"`
	Degraded       bool      `json:"degraded"`
	// Redactions counts spans scrubbed from Query.
	Redactions int `json:"redactions,omitempty"`
}

// Recorder persists consultation entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	Close() error
}

// Config holds configuration for the consultation log.
type Config struct {
	Enabled bool
	// Path is the JSONL file.
	// Default: data/consultations.jsonl
	Path string
	// MaxSizeMB triggers rotation.
	// Default: 10
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = filepath.Join("data", "consultations.jsonl")
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// New returns a file Recorder, or a no-op Recorder when disabled.
func New(cfg Config) Recorder {
	if !cfg.Enabled {
		return Nop{}
	}
	cfg.ApplyDefaults()
	return &FileRecorder{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		now: time.Now,
	}
}

// FileRecorder writes entries through lumberjack.
type FileRecorder struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	now func() time.Time
}

// Record fills ID, Timestamp and SessionType when unset and appends the
// entry. The completed entry is returned even on failure.
func (r *FileRecorder) Record(_ context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if e.SessionType == "" {
		e.SessionType = SessionType
	}

	line, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("%w: encoding entry: %v", ErrWrite, err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.out.Write(line); err != nil {
		return e, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return e, nil
}

// Close closes the current file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Close()
}

// Nop discards entries.
type Nop struct{}

// Record returns e with an ID assigned.
func (Nop) Record(_ context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return e, nil
}

// Close is a no-op.
func (Nop) Close() error { return nil }
