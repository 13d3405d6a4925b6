package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkaudit/pkg/config"
	"linkaudit/pkg/models"
)

func testSettings() *config.Settings {
	cfg := config.Default()
	cfg.RetryBaseDelay = 10 * time.Millisecond
	cfg.AttemptTimeout = 2 * time.Second
	cfg.Validate()
	cfg.RetryBaseDelay = 10 * time.Millisecond
	return cfg
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(&http.Client{}, testSettings(), testLogEntry())
}

func TestFetch_SuccessReadsHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><a href="/about">about</a></html>`))
	}))
	defer srv.Close()

	out, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "200", out.Status)
	assert.True(t, out.HTML())
	assert.Contains(t, string(out.Body), "/about")
}

func TestFetch_NonHTMLBodyNotRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	out, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "200", out.Status)
	assert.Nil(t, out.Body)
}

func TestFetch_CompletedErrorStatusIsTerminal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "404", out.Status)
	assert.Equal(t, int32(1), hits.Load(), "a completed response must not be retried")
}

func TestFetch_TransportErrorRetriedThenSentinel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Kill the connection without writing a response.
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	var retries atomic.Int32
	f := newTestFetcher(t)
	f.OnRetry = func(url string, attempt, max int, err error) { retries.Add(1) }

	out, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "transport failure must not surface as an error")
	assert.Equal(t, models.StatusRequestFailed, out.Status)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, int32(2), retries.Load())
}

func TestFetch_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t).Fetch(ctx, "http://127.0.0.1:1/unreachable")
	assert.ErrorIs(t, err, context.Canceled)
}
