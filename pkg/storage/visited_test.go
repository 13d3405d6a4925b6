package storage

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestVisitedStore(t *testing.T) *VisitedStore {
	t.Helper()
	store, err := NewVisitedStore(t.TempDir(), "example.com", testLogEntry())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMarkVisited_FirstCallWins(t *testing.T) {
	store := newTestVisitedStore(t)

	added, err := store.MarkVisited("http://example.com/page")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.MarkVisited("http://example.com/page")
	require.NoError(t, err)
	assert.False(t, added, "second MarkVisited for the same URL must report already present")

	assert.Equal(t, 1, store.VisitedCount())
}

func TestMarkVisited_ConcurrentSingleWinner(t *testing.T) {
	store := newTestVisitedStore(t)

	const goroutines = 20
	var wg sync.WaitGroup
	wins := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := store.MarkVisited("http://example.com/contested")
			if err == nil && added {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for range wins {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one goroutine may claim a URL")
	assert.Equal(t, 1, store.VisitedCount())
}

func TestHasVisited(t *testing.T) {
	store := newTestVisitedStore(t)

	seen, err := store.HasVisited("http://example.com/unseen")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.MarkVisited("http://example.com/seen")
	require.NoError(t, err)

	seen, err = store.HasVisited("http://example.com/seen")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestNewVisitedStore_WipesPreviousState(t *testing.T) {
	dir := t.TempDir()

	store, err := NewVisitedStore(dir, "example.com", testLogEntry())
	require.NoError(t, err)
	_, err = store.MarkVisited("http://example.com/old")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// A new run over the same domain starts empty.
	store2, err := NewVisitedStore(dir, "example.com", testLogEntry())
	require.NoError(t, err)
	defer store2.Close()

	seen, err := store2.HasVisited("http://example.com/old")
	require.NoError(t, err)
	assert.False(t, seen)
}
