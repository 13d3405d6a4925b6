package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkaudit/pkg/urlutil"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, s.CrawlDelay)
	assert.Equal(t, 5, s.PoolSize)
	assert.True(t, s.CrawlResources.Images)
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Default()
	s.WhoisAPIKey = "test-key"
	s.MaxDepth = 2
	s.CrawlResources.Images = false
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", loaded.WhoisAPIKey)
	assert.Equal(t, 2, loaded.MaxDepth)
	assert.False(t, loaded.CrawlResources.Images)
	assert.True(t, loaded.CrawlResources.Documents)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_depth: [not an int"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateAppliesDefaults(t *testing.T) {
	s := &Settings{MaxDepth: -1, CrawlDelay: -time.Second, PoolSize: 0}
	warnings, err := s.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 3, s.MaxDepth)
	assert.Equal(t, time.Duration(0), s.CrawlDelay)
	assert.Equal(t, 5, s.PoolSize)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.Equal(t, 60*time.Second, s.AttemptTimeout)
	assert.Equal(t, s.PoolSize, s.MaxConcurrentFetches)
	assert.NotEmpty(t, s.StateDir)
	assert.NotEmpty(t, s.UserAgent)
}

func TestRequireWhoisKey(t *testing.T) {
	s := Default()
	assert.Error(t, s.RequireWhoisKey())
	s.WhoisAPIKey = "k"
	assert.NoError(t, s.RequireWhoisKey())
}

func TestResourceFlagsEnabled(t *testing.T) {
	f := ResourceFlags{Images: true, Scripts: true}
	assert.True(t, f.Enabled(urlutil.CategoryImages))
	assert.True(t, f.Enabled(urlutil.CategoryScripts))
	assert.False(t, f.Enabled(urlutil.CategoryDocuments))
	assert.False(t, f.Enabled(urlutil.Category("bogus")))
}
