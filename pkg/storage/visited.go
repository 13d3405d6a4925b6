// Package storage persists crawl state: the set of URLs already claimed for
// fetching (BadgerDB) and the audit results themselves (SQLite).
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"linkaudit/pkg/log"
	"linkaudit/pkg/utils"
)

const visitedDBDir = "visited_db"

const maxConflictRetries = 10

// VisitedStore is the deduplication set for the crawl. MarkVisited is an
// atomic test-and-insert: exactly one caller per normalized URL sees true,
// which is what makes each URL fetched at most once across the worker pool.
type VisitedStore struct {
	db       *badger.DB
	path     string
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) VisitedCount
}

// NewVisitedStore opens (and first wipes) the per-domain visited database
// under stateDir. Every run starts from an empty set; stale state from a
// previous run of the same domain is removed.
func NewVisitedStore(stateDir, siteDomain string, logger *logrus.Entry) (*VisitedStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteDomain)+"_"+visitedDBDir)

	if err := os.RemoveAll(dbPath); err != nil {
		logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	logger.Infof("Initializing visited URL database at: %s", dbPath)

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	return &VisitedStore{db: db, path: dbPath, log: logger}, nil
}

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *VisitedStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkVisited records normalizedURL as claimed. Returns true if this call
// inserted the key, false if it was already present.
func (s *VisitedStore) MarkVisited(normalizedURL string) (bool, error) {
	if s.db == nil {
		return false, errors.New("visited store not initialized")
	}
	added := false
	key := []byte(normalizedURL)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			errSet := txn.SetEntry(badger.NewEntry(key, []byte{}))
			if errSet == nil {
				added = true
			}
			return errSet
		}
		return errGet // nil when the key already exists
	})

	if err != nil {
		s.log.WithField("key", normalizedURL).Errorf("DB Update error in MarkVisited: %v", err)
		return false, fmt.Errorf("%w: marking key '%s': %w", utils.ErrDatabase, normalizedURL, err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// HasVisited reports whether normalizedURL has already been claimed. Used as
// a cheap pre-check at enqueue time; MarkVisited remains the authority.
func (s *VisitedStore) HasVisited(normalizedURL string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, errGet := txn.Get([]byte(normalizedURL))
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: checking key '%s': %w", utils.ErrDatabase, normalizedURL, err)
	}
	return found, nil
}

// VisitedCount returns the cached key count maintained by atomic increments.
func (s *VisitedStore) VisitedCount() int {
	return int(s.keyCount.Load())
}

// Close closes the underlying database.
func (s *VisitedStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing visited DB: %v", err)
			return err
		}
		s.log.Debug("Visited DB closed.")
	}
	return nil
}

// Destroy closes the database and removes its files from disk.
func (s *VisitedStore) Destroy() error {
	closeErr := s.Close()
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("removing visited DB directory %s: %w", s.path, err)
	}
	return closeErr
}
