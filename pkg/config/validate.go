package config

import (
	"fmt"
	"os"
	"time"
)

// Validate checks Settings fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (s *Settings) Validate() (warnings []string, err error) {
	if s.MaxDepth <= 0 {
		warnings = append(warnings, "max_depth should be >= 1, defaulting to 3")
		s.MaxDepth = 3
	}

	if s.CrawlDelay < 0 {
		warnings = append(warnings, "crawl_delay cannot be negative, setting to 0")
		s.CrawlDelay = 0
	}

	if s.PoolSize <= 0 {
		warnings = append(warnings, "pool_size should be > 0, defaulting to 5")
		s.PoolSize = 5
	}

	if s.GlobalTimeout < 0 {
		warnings = append(warnings, "global_timeout cannot be negative, disabling timeout")
		s.GlobalTimeout = 0
	}

	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 3
	}
	if s.RetryBaseDelay <= 0 {
		s.RetryBaseDelay = 1 * time.Second
	}
	if s.AttemptTimeout <= 0 {
		s.AttemptTimeout = 60 * time.Second
	}
	if s.RobotsTimeout <= 0 {
		s.RobotsTimeout = 15 * time.Second
	}

	if s.MaxConcurrentFetches <= 0 {
		s.MaxConcurrentFetches = s.PoolSize
	}
	if s.SemaphoreAcquireTimeout <= 0 {
		s.SemaphoreAcquireTimeout = 30 * time.Second
	}

	if s.StateDir == "" {
		s.StateDir = os.TempDir()
	}
	if s.UserAgent == "" {
		s.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	}

	s.validateHTTPClientSettings()

	return warnings, nil
}

// RequireWhoisKey is the orchestration-boundary check: WHOIS enrichment
// cannot run without a resolver credential.
func (s *Settings) RequireWhoisKey() error {
	if s.WhoisAPIKey == "" {
		return fmt.Errorf("whois_api_key is not set; configure it before starting a crawl with WHOIS enrichment")
	}
	return nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (s *Settings) validateHTTPClientSettings() {
	h := &s.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
