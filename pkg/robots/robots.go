// Package robots fetches and consults the seed domain's robots.txt. Rules
// are loaded once at crawl start; any failure to obtain or parse the file
// results in a permissive checker, so an unreachable robots.txt never blocks
// an audit.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// AgentToken is the product token matched against robots.txt user-agent
// groups. It is intentionally shorter than the full User-Agent header.
const AgentToken = "linkaudit"

// maxRobotsBytes caps how much of a robots.txt response is read.
const maxRobotsBytes = 1 << 20

// Checker answers whether a URL path may be crawled on the seed domain.
type Checker struct {
	group *robotstxt.Group // nil means allow everything
	log   *logrus.Entry
}

// Load fetches https://{domain}/robots.txt and parses it. Any failure, from
// network errors through non-200 statuses to unparseable content, is logged
// and yields a permissive Checker rather than an error.
func Load(ctx context.Context, client *http.Client, domain string, timeout time.Duration, log *logrus.Entry) *Checker {
	robotsLog := log.WithFields(logrus.Fields{"component": "robots", "domain": domain})
	checker := &Checker{log: robotsLog}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	robotsURL := fmt.Sprintf("https://%s/robots.txt", domain)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Warnf("Building robots.txt request: %v. Crawling without restrictions.", err)
		return checker
	}

	resp, err := client.Do(req)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt: %v. Crawling without restrictions.", err)
		return checker
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		robotsLog.WithField("status", resp.StatusCode).Info("No usable robots.txt. Crawling without restrictions.")
		io.Copy(io.Discard, resp.Body)
		return checker
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		robotsLog.Warnf("Reading robots.txt: %v. Crawling without restrictions.", err)
		return checker
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Warnf("Parsing robots.txt: %v. Crawling without restrictions.", err)
		return checker
	}

	checker.group = data.FindGroup(AgentToken)
	robotsLog.Debug("Loaded robots.txt rules")
	return checker
}

// Allowed reports whether urlPath may be fetched. Paths should include query
// strings; the empty path is treated as "/".
func (c *Checker) Allowed(urlPath string) bool {
	if c == nil || c.group == nil {
		return true
	}
	if urlPath == "" {
		urlPath = "/"
	}
	allowed := c.group.Test(urlPath)
	if !allowed {
		c.log.WithField("path", urlPath).Debug("Blocked by robots.txt")
	}
	return allowed
}
