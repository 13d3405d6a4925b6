package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"linkaudit/pkg/models"
	"linkaudit/pkg/urlutil"
)

const (
	pausePollInterval = 100 * time.Millisecond
	popTimeout        = 500 * time.Millisecond
)

// worker is the main loop of one pool member: poll for pause and
// cancellation, pull the next task, handle it. Exits when the frontier is
// closed (crawl drained or cancelled).
func (c *Controller) worker(ctx context.Context, id int) {
	wlog := c.log.WithFields(logrus.Fields{"component": "worker", "worker_id": id})
	defer func() {
		c.liveWorkers.Add(-1)
		wlog.Debug("Worker exiting")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if c.paused.Load() {
			time.Sleep(pausePollInterval)
			continue
		}

		task, open := c.frontier.PopTimeout(popTimeout)
		if !open {
			return
		}
		if task == nil {
			continue // timed out; re-check pause and cancellation
		}
		c.handleTask(ctx, wlog, task)
	}
}

// handleTask drives one task to its terminal outcome. The tracker is
// decremented on every path out, dedup discards included; that is what lets
// the completion waiter observe a fully drained crawl.
func (c *Controller) handleTask(ctx context.Context, wlog *logrus.Entry, task *models.CrawlTask) {
	defer c.tracker.Done()

	taskLog := wlog.WithFields(logrus.Fields{"url": task.URL, "depth": task.Depth})

	added, err := c.visited.MarkVisited(urlutil.Normalize(task.URL))
	if err != nil {
		taskLog.Errorf("Visited store error, dropping task: %v", err)
		return
	}
	if !added {
		taskLog.Debug("Already claimed, discarding")
		return
	}

	domain := urlutil.Domain(task.URL)
	c.limiter.ApplyDelay(ctx, domain, c.cfg.CrawlDelay)
	if ctx.Err() != nil {
		return
	}

	acquireCtx, cancel := context.WithTimeout(ctx, c.cfg.SemaphoreAcquireTimeout)
	err = c.fetchSem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// The global fetch cap stayed saturated for the whole acquire
		// window. The task still needs its terminal record.
		taskLog.Warnf("No fetch slot within %v, recording failure", c.cfg.SemaphoreAcquireTimeout)
		c.record(task, models.StatusRequestFailed, domain)
		return
	}

	outcome, err := c.fetcher.Fetch(ctx, task.URL)
	c.fetchSem.Release(1)
	if err != nil {
		// Cancelled before a terminal outcome; nothing is recorded.
		return
	}
	if ctx.Err() != nil {
		// The in-flight attempt outlasted cancellation. The run is shutting
		// down and the sink may already be closed, so the outcome is dropped.
		return
	}

	result := c.record(task, outcome.Status, domain)

	if result.Type == models.TypeInternal &&
		outcome.StatusCode == 200 && outcome.HTML() &&
		task.Depth < c.cfg.MaxDepth {
		c.expand(task, outcome.Body, taskLog)
	}
}

// record persists the terminal outcome for a claimed task and emits a
// progress line.
func (c *Controller) record(task *models.CrawlTask, status, domain string) models.CrawlResult {
	result := models.CrawlResult{
		URL:      task.URL,
		Status:   status,
		Referrer: task.Referrer,
		Type:     models.TypeInternal,
		Domain:   domain,
		Depth:    task.Depth,
	}
	if urlutil.IsExternal(c.baseDomain, task.URL) {
		result.Type = models.TypeExternal
	}

	c.resultSink.Put(result)
	done := c.recorded.Add(1)
	c.emitProgress(fmt.Sprintf("[%d done, %d queued] %s %s", done, c.frontier.Len(), result.Status, task.URL))
	return result
}

// expand extracts links from a fetched page and enqueues the survivors of
// the admission filters at depth+1 with the page as referrer.
func (c *Controller) expand(task *models.CrawlTask, body []byte, taskLog *logrus.Entry) {
	links := ExtractLinks(task.URL, body, taskLog)
	enqueued := 0
	for _, link := range links {
		if c.enqueueChild(link, task.URL, task.Depth+1, taskLog) {
			enqueued++
		}
	}
	if enqueued > 0 {
		taskLog.WithField("enqueued", enqueued).Debug("Expanded page links")
	}
}

// enqueueChild applies the admission filters (visited pre-check, resource
// category gating, robots) and enqueues the URL if it passes. The seed
// domain's robots rules gate every candidate link, external ones included.
// Reports whether the task was enqueued.
func (c *Controller) enqueueChild(rawURL, referrer string, depth int, taskLog *logrus.Entry) bool {
	if seen, err := c.visited.HasVisited(urlutil.Normalize(rawURL)); err == nil && seen {
		return false
	}

	if cat, isResource := urlutil.ResourceType(rawURL); isResource && !c.cfg.CrawlResources.Enabled(cat) {
		taskLog.WithFields(logrus.Fields{"link": rawURL, "category": cat}).Debug("Resource category disabled, skipping")
		return false
	}

	if u, err := url.Parse(rawURL); err == nil && !c.robots.Allowed(u.RequestURI()) {
		taskLog.WithField("link", rawURL).Debug("Disallowed by robots.txt, skipping")
		return false
	}

	c.tracker.Add(1)
	c.frontier.Add(&models.CrawlTask{URL: rawURL, Depth: depth, Referrer: referrer})
	return true
}
