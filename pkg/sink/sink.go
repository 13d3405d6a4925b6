// Package sink decouples crawl workers from result persistence. Workers
// push results into a buffered channel; a single consumer goroutine batches
// them into the store so workers never block on SQLite.
package sink

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"linkaudit/pkg/models"
)

const (
	defaultBatchSize   = 100
	defaultIdleFlush   = 1 * time.Second
	defaultChannelSize = 256
)

// Store is the persistence target for batches of results.
type Store interface {
	WriteBatch(results []models.CrawlResult) error
	AllResults() ([]models.CrawlResult, error)
}

// Sink accumulates results and flushes them to the store in batches of up to
// batchSize, or after idleFlush with a non-empty buffer. A failed batch
// write is logged and the batch dropped; the crawl continues.
type Sink struct {
	store     Store
	ch        chan models.CrawlResult
	batchSize int
	idleFlush time.Duration
	log       *logrus.Entry

	flushReq chan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	closedMu sync.RWMutex
	closed   bool
}

// New creates a Sink and starts its consumer goroutine.
func New(store Store, log *logrus.Entry) *Sink {
	s := &Sink{
		store:     store,
		ch:        make(chan models.CrawlResult, defaultChannelSize),
		batchSize: defaultBatchSize,
		idleFlush: defaultIdleFlush,
		log:       log,
		flushReq:  make(chan chan struct{}),
		done:      make(chan struct{}),
	}
	go s.consume()
	return s
}

// Put submits one result. Blocks only if the channel buffer is full, which
// back-pressures workers against a slow disk. A Put arriving after Shutdown
// (a straggling worker whose fetch outlasted the cancellation join) drops
// the result instead of panicking on the closed channel.
func (s *Sink) Put(result models.CrawlResult) {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		s.log.WithField("url", result.URL).Debug("Sink already shut down, dropping late result")
		return
	}
	s.ch <- result
}

// consume drains the channel, writing batches on size, idle timeout, flush
// request, or shutdown.
func (s *Sink) consume() {
	batch := make([]models.CrawlResult, 0, s.batchSize)
	timer := time.NewTimer(s.idleFlush)
	defer timer.Stop()

	writeBatch := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.WriteBatch(batch); err != nil {
			s.log.WithField("batch_size", len(batch)).Errorf("Dropping result batch after write failure: %v", err)
		}
		batch = batch[:0]
	}

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.idleFlush)
	}

	for {
		select {
		case result, ok := <-s.ch:
			if !ok {
				writeBatch()
				close(s.done)
				return
			}
			batch = append(batch, result)
			if len(batch) >= s.batchSize {
				writeBatch()
				resetTimer()
			}
		case <-timer.C:
			writeBatch()
			timer.Reset(s.idleFlush)
		case ack := <-s.flushReq:
			// Drain anything already queued before writing, so a flush
			// observes every Put that happened before it.
			for {
				select {
				case result, ok := <-s.ch:
					if !ok {
						writeBatch()
						close(ack)
						close(s.done)
						return
					}
					batch = append(batch, result)
					continue
				default:
				}
				break
			}
			writeBatch()
			resetTimer()
			close(ack)
		}
	}
}

// Flush forces everything buffered so far into the store and waits for the
// write to complete.
func (s *Sink) Flush() {
	ack := make(chan struct{})
	select {
	case s.flushReq <- ack:
		<-ack
	case <-s.done:
	}
}

// Snapshot flushes pending results and returns the full stored result set.
// Used for progress reporting and pause-time inspection while the crawl is
// still running.
func (s *Sink) Snapshot() ([]models.CrawlResult, error) {
	s.Flush()
	return s.store.AllResults()
}

// Shutdown stops accepting results, flushes the remainder, and waits up to
// timeout for the consumer to finish. Safe to call more than once.
func (s *Sink) Shutdown(timeout time.Duration) {
	s.stopOnce.Do(func() {
		// The write lock waits out any Put currently holding the read lock,
		// so the channel only closes once no sender is mid-send.
		s.closedMu.Lock()
		s.closed = true
		s.closedMu.Unlock()
		close(s.ch)
	})

	select {
	case <-s.done:
	case <-time.After(timeout):
		s.log.Warn("Result sink did not drain within shutdown timeout")
	}
}
