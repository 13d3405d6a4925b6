package report

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"linkaudit/pkg/models"
	"linkaudit/pkg/whois"
)

// recordingResolver returns canned records and counts calls per domain.
type recordingResolver struct {
	mu      sync.Mutex
	records map[string]models.WhoisRecord
	calls   map[string]int
}

func (r *recordingResolver) Resolve(ctx context.Context, domain string) models.WhoisRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[domain]++
	if rec, ok := r.records[domain]; ok {
		return rec
	}
	return models.WhoisRecord{Owner: "Unknown", Status: "Unknown"}
}

func sampleResults() []models.CrawlResult {
	return []models.CrawlResult{
		{URL: "http://example.com", Status: "200", Type: models.TypeInternal, Domain: "example.com"},
		{URL: "http://example.com/gone", Status: "404", Referrer: "http://example.com", Type: models.TypeInternal, Domain: "example.com"},
		{URL: "http://cdn.partner.net/app.js", Status: "200", Referrer: "http://example.com", Type: models.TypeExternal, Domain: "cdn.partner.net"},
		{URL: "http://dead.partner.net", Status: "Request Failed", Referrer: "http://example.com", Type: models.TypeExternal, Domain: "dead.partner.net"},
	}
}

func TestBuild_EnrichesRowsInOrder(t *testing.T) {
	resolver := &recordingResolver{records: map[string]models.WhoisRecord{
		"example.com":     {Owner: "Example Org", Status: "Example Registrar"},
		"cdn.partner.net": {Owner: "Partner Inc", Status: "Partner Registrar"},
		"dead.partner.net": {Owner: "Error", Status: "request failed"},
	}}

	rows := Build(context.Background(), sampleResults(), "example.com", resolver)
	require.Len(t, rows, 4)

	assert.Equal(t, "http://example.com", rows[0].URL)
	assert.Equal(t, "Example Org", rows[0].Registrant)
	assert.False(t, rows[0].IsError)

	// Internal rows share the seed domain's record.
	assert.Equal(t, "Example Org", rows[1].Registrant)
	assert.True(t, rows[1].IsError)

	assert.Equal(t, "Partner Inc", rows[2].Registrant)
	assert.Equal(t, "Partner Registrar", rows[2].WhoisStatus)

	assert.Equal(t, "Error", rows[3].Registrant)
	assert.True(t, rows[3].IsError)
}

func TestBuild_ResolvesSeedDomainOnceDirectly(t *testing.T) {
	resolver := &recordingResolver{}
	Build(context.Background(), sampleResults(), "example.com", resolver)

	assert.Equal(t, 1, resolver.calls["example.com"], "internal rows must not re-resolve the seed domain")
}

func TestBuild_ThroughCacheResolvesEachDomainOnce(t *testing.T) {
	upstream := &recordingResolver{}
	cache := whois.NewCache(upstream)

	results := append(sampleResults(),
		models.CrawlResult{URL: "http://cdn.partner.net/other.js", Status: "200", Type: models.TypeExternal, Domain: "cdn.partner.net"},
	)
	Build(context.Background(), results, "example.com", cache)

	assert.Equal(t, 1, upstream.calls["cdn.partner.net"])
	assert.Equal(t, 1, upstream.calls["example.com"])
}

func TestBuild_EmptyResults(t *testing.T) {
	resolver := &recordingResolver{}
	rows := Build(context.Background(), nil, "example.com", resolver)

	assert.Empty(t, rows)
	assert.Zero(t, resolver.calls["example.com"], "no lookups for an empty result set")
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	resolver := &recordingResolver{records: map[string]models.WhoisRecord{
		"example.com": {Owner: "Example Org", Status: "Example Registrar"},
	}}
	rows := Build(context.Background(), sampleResults(), "example.com", resolver)

	path := filepath.Join(t.TempDir(), "audit.xlsx")
	require.NoError(t, WriteXLSX(path, rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Link Audit")
	require.NoError(t, err)
	require.Len(t, got, 5, "header plus four result rows")

	assert.Equal(t, headers, got[0])
	assert.Equal(t, "http://example.com", got[1][0])
	assert.Equal(t, "404", got[2][1])
	assert.Equal(t, "Request Failed", got[4][1])
}
