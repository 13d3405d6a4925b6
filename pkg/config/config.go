package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"linkaudit/pkg/urlutil"
)

// ResourceFlags enables crawling of resource URLs per category. A disabled
// category's URLs are recorded nowhere: they are simply never enqueued.
type ResourceFlags struct {
	Images      bool `yaml:"images"`
	Documents   bool `yaml:"documents"`
	Stylesheets bool `yaml:"stylesheets"`
	Scripts     bool `yaml:"scripts"`
	Media       bool `yaml:"media"`
	Archives    bool `yaml:"archives"`
}

// Enabled reports whether the given resource category may be enqueued.
func (f ResourceFlags) Enabled(cat urlutil.Category) bool {
	switch cat {
	case urlutil.CategoryImages:
		return f.Images
	case urlutil.CategoryDocuments:
		return f.Documents
	case urlutil.CategoryStylesheets:
		return f.Stylesheets
	case urlutil.CategoryScripts:
		return f.Scripts
	case urlutil.CategoryMedia:
		return f.Media
	case urlutil.CategoryArchives:
		return f.Archives
	}
	return false
}

// Settings is the persisted configuration blob owned by the host
// application and read by the crawler at start.
type Settings struct {
	WhoisAPIKey    string        `yaml:"whois_api_key"`
	CrawlDelay     time.Duration `yaml:"crawl_delay"`
	MaxDepth       int           `yaml:"max_depth"`
	PoolSize       int           `yaml:"pool_size"`
	CrawlResources ResourceFlags `yaml:"crawl_resources"`

	// Optional wall-clock limit for an entire crawl; 0 disables it.
	GlobalTimeout time.Duration `yaml:"global_timeout,omitempty"`

	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout,omitempty"`
	RobotsTimeout  time.Duration `yaml:"robots_timeout,omitempty"`

	MaxConcurrentFetches    int           `yaml:"max_concurrent_fetches,omitempty"`
	SemaphoreAcquireTimeout time.Duration `yaml:"semaphore_acquire_timeout,omitempty"`

	// StateDir holds the per-run visited DB and result DB. Defaults to the
	// OS temp directory, matching where cleanup expects to delete from.
	StateDir  string `yaml:"state_dir,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Default returns the settings used when no settings file exists yet.
func Default() *Settings {
	return &Settings{
		CrawlDelay: 500 * time.Millisecond,
		MaxDepth:   3,
		PoolSize:   5,
		CrawlResources: ResourceFlags{
			Images:      true,
			Documents:   true,
			Stylesheets: true,
			Scripts:     true,
			Media:       true,
			Archives:    true,
		},
	}
}

// Load reads settings from a YAML file. A missing file yields Default().
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file '%s': %w", path, err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings file '%s': %w", path, err)
	}
	return s, nil
}

// Save writes settings back to the YAML file for the host application.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings file '%s': %w", path, err)
	}
	return nil
}
