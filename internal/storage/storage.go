package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"blockcheck/internal/models"
)

// ErrUnknownDriver is returned by Open for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown storage driver")

// RunStore persists finished runs.
type RunStore interface {
	Append(models.RunRecord) error
	Latest() (models.RunRecord, bool, error)
	// HistoryN returns up to limit records, oldest first. A limit <= 0
	// returns everything.
	HistoryN(limit int) ([]models.RunRecord, error)
	// Path is the file backing the store.
	Path() string
	Close() error
}

// Open creates the store selected by driver inside dataDir. Stores keep the
// newest retain runs; retain <= 0 keeps every run.
func Open(driver, dataDir string, retain int) (RunStore, error) {
	switch driver {
	case "", "json":
		return NewJSONStore(filepath.Join(dataDir, "run_history.json"), retain)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dataDir, "run_history.db"), retain)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func tail(records []models.RunRecord, limit int) []models.RunRecord {
	if limit <= 0 || len(records) <= limit {
		return records
	}
	return records[len(records)-limit:]
}
