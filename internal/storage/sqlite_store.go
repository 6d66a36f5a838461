package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"blockcheck/internal/models"
)

// SQLiteStore keeps run history in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	retain int
	mu     sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path. Each append prunes
// runs older than the newest retain; retain <= 0 keeps every run.
func NewSQLiteStore(path string, retain int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := &SQLiteStore{db: db, path: path, retain: retain}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		total INTEGER NOT NULL,
		tested INTEGER NOT NULL,
		blocked INTEGER NOT NULL,
		reachable INTEGER NOT NULL,
		pending INTEGER NOT NULL,
		blocked_percentage INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		service TEXT NOT NULL,
		domain TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`)
	return err
}

// Append inserts a run and its per-domain results in one transaction.
func (s *SQLiteStore) Append(record models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := record.Metrics
	if _, err := tx.Exec(`INSERT INTO runs
		(id, started_at, finished_at, total, tested, blocked, reachable, pending, blocked_percentage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.FinishedAt.UTC().Format(time.RFC3339Nano),
		m.Total, m.Tested, m.Blocked, m.Reachable, m.Pending, m.BlockedPercentage,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_results
		(run_id, position, category, service, domain, status) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()
	for i, r := range record.Results {
		if _, err := stmt.Exec(record.ID, i, r.Category, r.Service, r.Domain, string(r.Status)); err != nil {
			return fmt.Errorf("insert result %s: %w", r.Domain, err)
		}
	}
	if err := s.prune(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) prune(tx *sql.Tx) error {
	if s.retain <= 0 {
		return nil
	}
	const stale = `SELECT id FROM runs WHERE seq NOT IN
		(SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)`
	if _, err := tx.Exec(`DELETE FROM run_results WHERE run_id IN (`+stale+`)`, s.retain); err != nil {
		return fmt.Errorf("prune results: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+stale+`)`, s.retain); err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return nil
}

// Latest returns the most recently appended run.
func (s *SQLiteStore) Latest() (models.RunRecord, bool, error) {
	records, err := s.HistoryN(1)
	if err != nil || len(records) == 0 {
		return models.RunRecord{}, false, err
	}
	return records[0], true, nil
}

// HistoryN returns up to limit runs, oldest first.
func (s *SQLiteStore) HistoryN(limit int) ([]models.RunRecord, error) {
	query := `SELECT id, started_at, finished_at, total, tested, blocked, reachable, pending, blocked_percentage
		FROM (SELECT * FROM runs ORDER BY seq DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	query += ") ORDER BY seq ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []models.RunRecord
	for rows.Next() {
		var (
			rec               models.RunRecord
			started, finished string
		)
		m := &rec.Metrics
		if err := rows.Scan(&rec.ID, &started, &finished,
			&m.Total, &m.Tested, &m.Blocked, &m.Reachable, &m.Pending, &m.BlockedPercentage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			rec.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			rec.FinishedAt = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		results, err := s.results(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Results = results
	}
	return records, nil
}

func (s *SQLiteStore) results(runID string) ([]models.DomainResult, error) {
	rows, err := s.db.Query(`SELECT category, service, domain, status
		FROM run_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []models.DomainResult
	for rows.Next() {
		var r models.DomainResult
		var status string
		if err := rows.Scan(&r.Category, &r.Service, &r.Domain, &status); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = models.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ RunStore = (*SQLiteStore)(nil)
