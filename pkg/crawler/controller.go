// Package crawler runs the audit crawl: a fixed worker pool draining a
// depth-ordered frontier under a controller that owns the run's lifecycle
// (start, pause, resume, cancel, completion detection).
package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"linkaudit/pkg/config"
	"linkaudit/pkg/fetch"
	"linkaudit/pkg/frontier"
	"linkaudit/pkg/models"
	"linkaudit/pkg/robots"
	"linkaudit/pkg/sink"
	"linkaudit/pkg/storage"
	"linkaudit/pkg/urlutil"
	"linkaudit/pkg/utils"
)

const (
	cleanupSinkTimeout = 2 * time.Second
	progressBuffer     = 128
)

// Cancellation join bounds. Variables so tests can shrink them.
var (
	workerJoinTimeout = 10 * time.Second
	sinkJoinTimeout   = 5 * time.Second
)

// ProgressFunc receives human-readable progress lines. It is invoked from a
// dedicated goroutine and may be slow, but lines are dropped rather than
// ever blocking the crawl.
type ProgressFunc func(line string)

// Controller owns one crawl run from seed to terminal state. All lifecycle
// methods are safe for concurrent use; state transitions are serialized.
type Controller struct {
	cfg      *config.Settings
	log      *logrus.Logger
	progress ProgressFunc

	mu       sync.Mutex // guards state transitions and lifecycle fields
	stateVal atomic.Int32
	cleaned  bool

	paused      atomic.Bool
	recorded    atomic.Int64
	liveWorkers atomic.Int32
	workerSeq   atomic.Int32

	baseDomain string
	runID      string

	ctx    context.Context
	cancel context.CancelFunc

	frontier   *frontier.Frontier
	visited    *storage.VisitedStore
	results    *storage.ResultStore
	resultSink *sink.Sink
	limiter    *fetch.RateLimiter
	fetcher    *fetch.Fetcher
	robots     *robots.Checker
	fetchSem   *semaphore.Weighted

	tracker  sync.WaitGroup // one count per enqueued task, seed included
	workerWg sync.WaitGroup

	timeoutTimer *time.Timer
	progressCh   chan string
	done         chan struct{}
	doneOnce     sync.Once
}

// New creates an idle Controller. cfg must already be validated.
func New(cfg *config.Settings, logger *logrus.Logger, progress ProgressFunc) *Controller {
	c := &Controller{
		cfg:        cfg,
		log:        logger,
		progress:   progress,
		progressCh: make(chan string, progressBuffer),
		done:       make(chan struct{}),
	}
	c.stateVal.Store(int32(models.StateIdle))
	go c.drainProgress()
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() models.CrawlState {
	return models.CrawlState(c.stateVal.Load())
}

func (c *Controller) setState(s models.CrawlState) {
	c.stateVal.Store(int32(s))
}

// Start launches the crawl from seedURL. Valid only from the idle state.
func (c *Controller) Start(seedURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.State(); st != models.StateIdle {
		return fmt.Errorf("%w: cannot start a crawl from state %s", utils.ErrInvalidState, st)
	}
	if !urlutil.IsValid(seedURL) {
		return fmt.Errorf("%w: seed URL %q is not a crawlable http(s) URL", utils.ErrConfigValidation, seedURL)
	}

	c.baseDomain = urlutil.Domain(seedURL)
	c.runID = uuid.NewString()[:8]
	runLog := c.log.WithFields(logrus.Fields{"run_id": c.runID, "domain": c.baseDomain})

	visited, err := storage.NewVisitedStore(c.cfg.StateDir, c.baseDomain, runLog.WithField("component", "visited"))
	if err != nil {
		return fmt.Errorf("initializing visited store: %w", err)
	}
	results, err := storage.NewResultStore(c.cfg.StateDir, c.baseDomain, c.runID, runLog.WithField("component", "results"))
	if err != nil {
		visited.Close()
		return fmt.Errorf("initializing result store: %w", err)
	}

	c.visited = visited
	c.results = results
	c.resultSink = sink.New(results, runLog.WithField("component", "sink"))
	c.frontier = frontier.New(runLog.WithField("component", "frontier"))
	c.limiter = fetch.NewRateLimiter(runLog.WithField("component", "ratelimit"))
	c.fetchSem = semaphore.NewWeighted(int64(c.cfg.MaxConcurrentFetches))

	client := fetch.NewClient(c.cfg.HTTPClientSettings, c.log)
	c.fetcher = fetch.NewFetcher(client, c.cfg, runLog.WithField("component", "fetcher"))
	c.fetcher.OnRetry = func(url string, attempt, maxAttempts int, err error) {
		c.emitProgress(fmt.Sprintf("Retrying %s (attempt %d/%d): %v", url, attempt+1, maxAttempts, err))
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.robots = robots.Load(c.ctx, client, c.baseDomain, c.cfg.RobotsTimeout, runLog)

	// The seed is the first tracked task; the tracker only reaches zero once
	// every enqueued task, discovered transitively from here, is handled.
	c.tracker.Add(1)
	c.frontier.Add(&models.CrawlTask{URL: seedURL, Depth: 0, Referrer: "root"})

	for i := 0; i < c.cfg.PoolSize; i++ {
		c.launchWorker()
	}

	go c.watchCompletion()
	go c.finishWhenDrained()

	if c.cfg.GlobalTimeout > 0 {
		c.timeoutTimer = time.AfterFunc(c.cfg.GlobalTimeout, func() {
			c.log.Warnf("Global crawl timeout (%v) reached, cancelling", c.cfg.GlobalTimeout)
			c.emitProgress("Global timeout reached, cancelling crawl")
			c.Cancel()
		})
	}

	c.setState(models.StateRunning)
	runLog.WithFields(logrus.Fields{
		"seed": seedURL, "max_depth": c.cfg.MaxDepth, "pool_size": c.cfg.PoolSize,
	}).Info("Crawl started")
	c.emitProgress(fmt.Sprintf("Crawl started: %s (depth %d, %d workers)", seedURL, c.cfg.MaxDepth, c.cfg.PoolSize))
	return nil
}

func (c *Controller) launchWorker() {
	id := int(c.workerSeq.Add(1))
	c.workerWg.Add(1)
	c.liveWorkers.Add(1)
	go func() {
		defer c.workerWg.Done()
		c.worker(c.ctx, id)
	}()
}

// watchCompletion closes the frontier once every tracked task has been
// handled, which lets the pool drain out naturally.
func (c *Controller) watchCompletion() {
	trackerDone := make(chan struct{})
	go func() {
		c.tracker.Wait()
		close(trackerDone)
	}()

	select {
	case <-trackerDone:
		c.frontier.Close()
	case <-c.ctx.Done():
		// Cancellation path: Cancel closes the frontier and drains the
		// tracker itself.
	}
}

// finishWhenDrained promotes the run to Completed after the pool exits,
// unless cancellation got there first.
func (c *Controller) finishWhenDrained() {
	c.workerWg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.State()
	if st != models.StateRunning && st != models.StatePaused {
		return
	}
	c.resultSink.Flush()
	c.setState(models.StateCompleted)
	c.log.WithField("results", c.recorded.Load()).Info("Crawl completed")
	c.emitProgress(fmt.Sprintf("Crawl completed: %d URLs audited", c.recorded.Load()))
	c.finish()
}

// Pause suspends task pickup. In-flight fetches run to completion.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.State(); st != models.StateRunning {
		return fmt.Errorf("%w: cannot pause from state %s", utils.ErrInvalidState, st)
	}
	c.paused.Store(true)
	c.setState(models.StatePaused)
	c.emitProgress("Crawl paused")
	return nil
}

// Resume continues a paused crawl. If the pool drained while paused the
// workers are relaunched, sized to the work actually queued.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.State(); st != models.StatePaused {
		return fmt.Errorf("%w: cannot resume from state %s", utils.ErrInvalidState, st)
	}
	c.paused.Store(false)
	c.setState(models.StateRunning)

	if c.liveWorkers.Load() == 0 {
		n := min(c.cfg.PoolSize, max(c.frontier.Len(), 1))
		for i := 0; i < n; i++ {
			c.launchWorker()
		}
		go c.finishWhenDrained()
	}
	c.emitProgress("Crawl resumed")
	return nil
}

// Cancel stops the crawl and returns whatever results were persisted before
// the stop. The join on workers and sink is bounded, so Cancel returns even
// if a fetch is still timing out. Crawl state on disk is left for Cleanup.
func (c *Controller) Cancel() []models.CrawlResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.State()
	if st == models.StateIdle {
		return nil
	}
	if st.Terminal() {
		results, _ := c.results.AllResults()
		return results
	}

	c.setState(models.StateCancelling)
	c.emitProgress("Cancelling crawl")
	c.paused.Store(false)
	c.cancel()
	c.frontier.Close()

	joined := make(chan struct{})
	go func() {
		c.workerWg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(workerJoinTimeout):
		c.log.Warnf("Workers did not exit within %v, proceeding with cancellation", workerJoinTimeout)
	}

	// Tasks still queued were never handled; release their tracker counts so
	// the completion watcher can exit.
	for {
		task, _ := c.frontier.Pop()
		if task == nil {
			break
		}
		c.tracker.Done()
	}

	c.resultSink.Shutdown(sinkJoinTimeout)
	c.setState(models.StateCancelled)
	c.emitProgress("Crawl cancelled")
	c.finish()

	results, err := c.results.AllResults()
	if err != nil {
		c.log.Errorf("Reading partial results after cancel: %v", err)
	}
	return results
}

// Results flushes pending writes and returns everything recorded so far.
// Callable mid-run (pause-time inspection) and after any terminal state.
func (c *Controller) Results() ([]models.CrawlResult, error) {
	if c.resultSink == nil {
		return nil, fmt.Errorf("%w: no crawl has been started", utils.ErrInvalidState)
	}
	return c.resultSink.Snapshot()
}

// Wait blocks until the crawl reaches a terminal state or ctx expires.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup removes the run's on-disk state (visited DB, result DB). Valid
// once the run is terminal (or never started); idempotent.
func (c *Controller) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleaned {
		return nil
	}
	if st := c.State(); st != models.StateIdle && !st.Terminal() {
		return fmt.Errorf("%w: cleanup while crawl is %s", utils.ErrInvalidState, st)
	}

	if c.resultSink != nil {
		c.resultSink.Shutdown(cleanupSinkTimeout)
	}

	var firstErr error
	if c.visited != nil {
		if err := c.visited.Destroy(); err != nil {
			firstErr = err
		}
	}
	if c.results != nil {
		if err := c.results.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.cleaned = true
	return firstErr
}

// finish marks the run terminal exactly once.
func (c *Controller) finish() {
	if c.timeoutTimer != nil {
		c.timeoutTimer.Stop()
	}
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Controller) emitProgress(line string) {
	if c.progress == nil {
		return
	}
	select {
	case c.progressCh <- line:
	default:
		// Dropping a progress line is always preferable to stalling a worker.
	}
}

func (c *Controller) drainProgress() {
	for {
		select {
		case line := <-c.progressCh:
			if c.progress != nil {
				c.progress(line)
			}
		case <-c.done:
			for {
				select {
				case line := <-c.progressCh:
					if c.progress != nil {
						c.progress(line)
					}
				default:
					return
				}
			}
		}
	}
}
