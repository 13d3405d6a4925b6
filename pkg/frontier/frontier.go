// Package frontier holds the queue of URLs awaiting a fetch. Tasks are
// served shallowest depth first so the crawl expands breadth-first from the
// seed; ties preserve insertion order.
package frontier

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"linkaudit/pkg/models"
)

// item wraps a task for the heap with its priority and an insertion sequence
// number used to keep Pop order stable among equal depths.
type item struct {
	task  *models.CrawlTask
	seq   uint64
	index int // heap bookkeeping
}

type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Depth != h[j].task.Depth {
		return h[i].task.Depth < h[j].task.Depth
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // avoid memory leak
	it.index = -1
	*h = old[:n-1]
	return it
}

// Frontier is a thread-safe depth-ordered task queue. Workers block in Pop
// or PopTimeout until a task arrives or the frontier is closed.
type Frontier struct {
	heap    taskHeap
	mu      sync.Mutex
	cond    *sync.Cond
	closed  bool
	nextSeq uint64
	log     *logrus.Entry
}

// New creates an empty Frontier.
func New(log *logrus.Entry) *Frontier {
	f := &Frontier{log: log}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.heap)
	return f
}

// Add enqueues a task. Adds after Close are dropped with a warning.
func (f *Frontier) Add(task *models.CrawlTask) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Warnf("Attempted to add task to closed frontier: %s", task.URL)
		return
	}

	heap.Push(&f.heap, &item{task: task, seq: f.nextSeq})
	f.nextSeq++
	f.cond.Signal()
}

// Pop blocks until a task is available or the frontier is closed and empty.
// The second return is false only in the closed-and-empty case.
func (f *Frontier) Pop() (*models.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.heap) == 0 {
		if f.closed {
			return nil, false
		}
		f.cond.Wait()
	}

	it := heap.Pop(&f.heap).(*item)
	return it.task, true
}

// PopTimeout behaves like Pop but gives up after d, returning (nil, true) so
// the caller can re-check pause and cancellation state. A false second
// return still means closed and empty.
func (f *Frontier) PopTimeout(d time.Duration) (*models.CrawlTask, bool) {
	deadline := time.Now().Add(d)

	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.heap) == 0 {
		if f.closed {
			return nil, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, true
		}
		// cond.Wait has no deadline; a timer broadcast wakes the waiters so
		// the loop can observe the expired deadline.
		timer := time.AfterFunc(remaining, f.cond.Broadcast)
		f.cond.Wait()
		timer.Stop()
	}

	it := heap.Pop(&f.heap).(*item)
	return it.task, true
}

// Close marks the frontier complete and wakes all blocked workers.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}
