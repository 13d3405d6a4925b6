package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"linkaudit/pkg/config"
	"linkaudit/pkg/models"
	"linkaudit/pkg/utils"
)

// maxBodyBytes caps how much of a page body is read for link extraction.
const maxBodyBytes = 10 << 20

// Outcome is the terminal result of fetching one URL: either the status of a
// completed HTTP response (any code), or the Request Failed sentinel after
// all attempts died at the transport level. Body is populated only for
// 200-status HTML responses, the only case where links are extracted.
type Outcome struct {
	StatusCode  int // 0 when no response completed
	Status      string
	ContentType string
	Body        []byte
}

// HTML reports whether the response carried an HTML content type.
func (o Outcome) HTML() bool {
	return strings.Contains(o.ContentType, "text/html")
}

// Fetcher performs HTTP GETs with bounded retries. Only transport-level
// errors are retried; any completed response, whatever its status code, is
// the final outcome for the URL.
type Fetcher struct {
	client *http.Client
	cfg    *config.Settings
	log    *logrus.Entry

	// OnRetry, when set, is notified before each retry sleep. Used for
	// progress reporting; must not block.
	OnRetry func(url string, attempt, maxAttempts int, err error)
}

// NewFetcher creates a Fetcher.
func NewFetcher(client *http.Client, cfg *config.Settings, log *logrus.Entry) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, log: log}
}

// Fetch attempts rawURL up to cfg.MaxAttempts times with a per-attempt
// timeout and a linearly increasing backoff between attempts
// (attempt index x retry_base_delay). The crawl context is consulted only
// between attempts: an in-flight request is never forcibly interrupted, it
// runs out its own attempt timeout.
//
// Returns a non-nil error only when ctx was cancelled before a terminal
// outcome was reached; in that case no result should be recorded.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Outcome, error) {
	reqLog := f.log.WithField("url", rawURL)
	var lastErr error

	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		if attempt > 0 {
			// Linear backoff: 1x, 2x, ... of the base delay.
			delay := time.Duration(attempt) * f.cfg.RetryBaseDelay
			if f.OnRetry != nil {
				f.OnRetry(rawURL, attempt, f.cfg.MaxAttempts, lastErr)
			}
			reqLog.WithFields(logrus.Fields{
				"attempt": attempt, "max_attempts": f.cfg.MaxAttempts, "delay": delay,
			}).Warnf("Retrying after transport error: %v", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return Outcome{}, ctx.Err()
			}
		}

		// The attempt timeout is independent of the crawl context so that
		// cancellation never truncates a request already on the wire.
		attemptCtx, cancel := context.WithTimeout(context.Background(), f.cfg.AttemptTimeout)
		outcome, err := f.attempt(attemptCtx, rawURL)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		reqLog.WithField("status", outcome.Status).Debug("Fetch completed")
		return outcome, nil
	}

	finalErr := fmt.Errorf("%w: %w", utils.ErrRequestFailed, lastErr)
	reqLog.WithField("error_category", utils.CategorizeError(finalErr)).
		Errorf("All %d fetch attempts failed. Last error: %v", f.cfg.MaxAttempts, lastErr)
	return Outcome{Status: models.StatusRequestFailed}, nil
}

// attempt performs a single GET. Any completed response is terminal.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		// Malformed request: no amount of retrying will fix it, but the
		// task still needs its terminal outcome, so report as transport.
		return Outcome{}, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	outcome := Outcome{
		StatusCode:  resp.StatusCode,
		Status:      models.StatusFromCode(resp.StatusCode),
		ContentType: resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode == http.StatusOK && outcome.HTML() {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			// The response completed; a truncated body only costs link
			// extraction, not the status record.
			f.log.WithField("url", rawURL).Warnf("Reading response body: %v", readErr)
		}
		outcome.Body = body
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return outcome, nil
}
