package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks_AllSupportedTags(t *testing.T) {
	body := []byte(`<html><head>
		<link href="/styles.css" rel="stylesheet">
		<script src="https://cdn.example.net/app.js"></script>
	</head><body>
		<a href="/about">about</a>
		<img src="images/logo.png">
	</body></html>`)

	links := ExtractLinks("http://example.com/docs/", body, testLogger().WithField("test", t.Name()))

	assert.ElementsMatch(t, []string{
		"http://example.com/styles.css",
		"https://cdn.example.net/app.js",
		"http://example.com/about",
		"http://example.com/docs/images/logo.png",
	}, links)
}

func TestExtractLinks_SkipsNonFetchableSchemes(t *testing.T) {
	body := []byte(`<body>
		<a href="mailto:x@example.com">m</a>
		<a href="tel:+1555">t</a>
		<a href="javascript:void(0)">j</a>
		<a href="#top">a</a>
		<a href="MAILTO:shout@example.com">m2</a>
		<a href="/keep">k</a>
	</body>`)

	links := ExtractLinks("http://example.com", body, testLogger().WithField("test", t.Name()))

	assert.Equal(t, []string{"http://example.com/keep"}, links)
}

func TestExtractLinks_HonorsNofollow(t *testing.T) {
	body := []byte(`<body>
		<a href="/tracked" rel="nofollow">no</a>
		<a href="/followed" rel="noopener">yes</a>
	</body>`)

	links := ExtractLinks("http://example.com", body, testLogger().WithField("test", t.Name()))

	assert.Equal(t, []string{"http://example.com/followed"}, links)
}

func TestExtractLinks_DeduplicatesWithinPage(t *testing.T) {
	body := []byte(`<body>
		<a href="/page">one</a>
		<a href="/page">two</a>
		<img src="/page">
	</body>`)

	links := ExtractLinks("http://example.com", body, testLogger().WithField("test", t.Name()))

	assert.Equal(t, []string{"http://example.com/page"}, links)
}

func TestExtractLinks_DiscardsInvalidTargets(t *testing.T) {
	body := []byte(`<body>
		<a href="ftp://files.example.com/archive">ftp</a>
		<a href="   ">blank</a>
		<a href="/ok">ok</a>
	</body>`)

	links := ExtractLinks("http://example.com", body, testLogger().WithField("test", t.Name()))

	assert.Equal(t, []string{"http://example.com/ok"}, links)
}
