package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blockcheck/internal/models"
)

// JSONStore keeps run history in a single JSON file. The whole history is
// held in memory and rewritten on every append, so it suits modest retain
// limits; use SQLiteStore for long histories.
type JSONStore struct {
	mu      sync.RWMutex
	path    string
	retain  int
	history []models.RunRecord
}

// NewJSONStore creates a store and loads existing history if present.
// History beyond the newest retain runs is dropped on the next append.
func NewJSONStore(path string, retain int) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &JSONStore{path: path, retain: retain}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds a run record, trims the history to the retain limit and
// rewrites the file.
func (s *JSONStore) Append(record models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.history {
		if existing.ID == record.ID {
			return fmt.Errorf("run %s already recorded", record.ID)
		}
	}
	history := make([]models.RunRecord, 0, len(s.history)+1)
	history = append(history, s.history...)
	history = tail(append(history, record), s.retain)
	if err := s.persist(history); err != nil {
		return err
	}
	s.history = history
	return nil
}

// Latest returns the most recent record if it exists.
func (s *JSONStore) Latest() (models.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return models.RunRecord{}, false, nil
	}
	return s.history[len(s.history)-1], true, nil
}

// HistoryN returns a copy of the last limit records.
func (s *JSONStore) HistoryN(limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := tail(s.history, limit)
	copied := make([]models.RunRecord, len(src))
	copy(copied, src)
	return copied, nil
}

// Path returns the history file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Close is a no-op; every Append is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = []models.RunRecord{}
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	var records []models.RunRecord
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse history %s: %w", s.path, err)
		}
	}
	s.history = append([]models.RunRecord{}, tail(records, s.retain)...)
	return nil
}

// persist writes history to a temp file and renames it over the live one.
func (s *JSONStore) persist(history []models.RunRecord) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

var _ RunStore = (*JSONStore)(nil)
