package sink

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkaudit/pkg/models"
)

func testLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// memStore is an in-memory Store recording batch boundaries.
type memStore struct {
	mu      sync.Mutex
	results []models.CrawlResult
	batches []int
	failAll bool
}

func (m *memStore) WriteBatch(results []models.CrawlResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("disk full")
	}
	m.results = append(m.results, results...)
	m.batches = append(m.batches, len(results))
	return nil
}

func (m *memStore) AllResults() ([]models.CrawlResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CrawlResult, len(m.results))
	copy(out, m.results)
	return out, nil
}

func (m *memStore) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batches))
	copy(out, m.batches)
	return out
}

func TestSink_FlushesFullBatch(t *testing.T) {
	store := &memStore{}
	s := New(store, testLogEntry())
	defer s.Shutdown(time.Second)

	for i := 0; i < defaultBatchSize; i++ {
		s.Put(models.CrawlResult{URL: fmt.Sprintf("http://example.com/%d", i), Status: "200"})
	}

	// The full batch should be written without waiting for the idle timer.
	require.Eventually(t, func() bool {
		got, _ := store.AllResults()
		return len(got) == defaultBatchSize
	}, 500*time.Millisecond, 10*time.Millisecond)

	sizes := store.batchSizes()
	require.NotEmpty(t, sizes)
	assert.Equal(t, defaultBatchSize, sizes[0])
}

func TestSink_IdleTimerFlushesPartialBatch(t *testing.T) {
	store := &memStore{}
	s := New(store, testLogEntry())
	defer s.Shutdown(time.Second)

	s.Put(models.CrawlResult{URL: "http://example.com/only", Status: "200"})

	require.Eventually(t, func() bool {
		got, _ := store.AllResults()
		return len(got) == 1
	}, 3*time.Second, 50*time.Millisecond, "partial batch should flush on the idle timer")
}

func TestSink_SnapshotSeesAllPriorPuts(t *testing.T) {
	store := &memStore{}
	s := New(store, testLogEntry())
	defer s.Shutdown(time.Second)

	for i := 0; i < 7; i++ {
		s.Put(models.CrawlResult{URL: fmt.Sprintf("http://example.com/%d", i), Status: "200"})
	}

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestSink_ShutdownDrainsRemainder(t *testing.T) {
	store := &memStore{}
	s := New(store, testLogEntry())

	for i := 0; i < 5; i++ {
		s.Put(models.CrawlResult{URL: fmt.Sprintf("http://example.com/%d", i), Status: "200"})
	}
	s.Shutdown(time.Second)

	got, err := store.AllResults()
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestSink_PutAfterShutdownDropsResult(t *testing.T) {
	store := &memStore{}
	s := New(store, testLogEntry())
	s.Shutdown(time.Second)

	// A worker whose fetch outlasted the cancellation join may still hand in
	// its result. That must be a silent drop, not a panic.
	s.Put(models.CrawlResult{URL: "http://example.com/late", Status: "200"})

	got, err := store.AllResults()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSink_DoubleShutdownSafe(t *testing.T) {
	s := New(&memStore{}, testLogEntry())
	s.Shutdown(time.Second)
	s.Shutdown(time.Second)
}

func TestSink_WriteFailureDropsBatchAndContinues(t *testing.T) {
	store := &memStore{failAll: true}
	s := New(store, testLogEntry())

	s.Put(models.CrawlResult{URL: "http://example.com/lost", Status: "200"})
	s.Flush()

	store.mu.Lock()
	store.failAll = false
	store.mu.Unlock()

	s.Put(models.CrawlResult{URL: "http://example.com/kept", Status: "200"})
	s.Shutdown(time.Second)

	got, err := store.AllResults()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "http://example.com/kept", got[0].URL)
}
