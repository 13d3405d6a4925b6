package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"linkaudit/pkg/models"
	"linkaudit/pkg/utils"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS results (
	url      TEXT PRIMARY KEY,
	status   TEXT NOT NULL,
	referrer TEXT NOT NULL,
	type     TEXT NOT NULL,
	domain   TEXT NOT NULL,
	depth    INTEGER NOT NULL
);`

// ResultStore holds the audit results for one run in a SQLite database. The
// url primary key with INSERT OR REPLACE means re-recording a URL keeps the
// latest observation, so a run never reports the same URL twice.
type ResultStore struct {
	db   *sql.DB
	path string
	log  *logrus.Entry
}

// NewResultStore creates the per-run results database. runID keeps
// concurrent runs against the same domain from sharing a file.
func NewResultStore(stateDir, siteDomain, runID string, logger *logrus.Entry) (*ResultStore, error) {
	dbPath := filepath.Join(stateDir, fmt.Sprintf("%s_results_%s.db", utils.SanitizeFilename(siteDomain), runID))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening results database at %s: %w", dbPath, err)
	}
	// Single writer; the batching sink is the only producer and reads happen
	// after the crawl settles.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy_timeout: %w", err)
	}
	if _, err := db.Exec(resultsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating results schema: %w", utils.ErrDatabase, err)
	}

	logger.Infof("Initialized results database at: %s", dbPath)
	return &ResultStore{db: db, path: dbPath, log: logger}, nil
}

// WriteBatch stores a batch of results in one transaction.
func (s *ResultStore) WriteBatch(results []models.CrawlResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning results transaction: %w", utils.ErrDatabase, err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO results (url, status, referrer, type, domain, depth) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: preparing results insert: %w", utils.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.Exec(r.URL, r.Status, r.Referrer, string(r.Type), r.Domain, r.Depth); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: inserting result for '%s': %w", utils.ErrDatabase, r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing results batch: %w", utils.ErrDatabase, err)
	}
	return nil
}

// AllResults returns every stored result in insertion order.
func (s *ResultStore) AllResults() ([]models.CrawlResult, error) {
	rows, err := s.db.Query(`SELECT url, status, referrer, type, domain, depth FROM results ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying results: %w", utils.ErrDatabase, err)
	}
	defer rows.Close()

	var results []models.CrawlResult
	for rows.Next() {
		var r models.CrawlResult
		var typ string
		if err := rows.Scan(&r.URL, &r.Status, &r.Referrer, &typ, &r.Domain, &r.Depth); err != nil {
			return nil, fmt.Errorf("%w: scanning result row: %w", utils.ErrDatabase, err)
		}
		r.Type = models.ResultType(typ)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating result rows: %w", utils.ErrDatabase, err)
	}
	return results, nil
}

// Count returns the number of stored results.
func (s *ResultStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting results: %w", utils.ErrDatabase, err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *ResultStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Destroy closes the database and deletes its file. Deletion is retried a
// few times because the file can still be held briefly after Close on some
// platforms. Idempotent: a missing file is success.
func (s *ResultStore) Destroy() error {
	if err := s.Close(); err != nil {
		s.log.Warnf("Closing results DB before delete: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		err := os.Remove(s.path)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	return fmt.Errorf("deleting results database %s: %w", s.path, lastErr)
}
