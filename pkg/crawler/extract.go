package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"linkaudit/pkg/urlutil"
)

// skipPrefixes are href values that never name a fetchable URL.
var skipPrefixes = []string{"javascript:", "mailto:", "tel:", "#"}

// ExtractLinks parses an HTML page and returns the absolute URLs it
// references through a[href], img[src], script[src] and link[href].
// Relative references are resolved against pageURL; anchors carrying
// rel=nofollow and non-fetchable schemes are skipped, and duplicates within
// the page are collapsed.
func ExtractLinks(pageURL string, body []byte, log *logrus.Entry) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.WithField("url", pageURL).Warnf("Parsing HTML for links: %v", err)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		log.WithField("url", pageURL).Warnf("Parsing page URL: %v", err)
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		lower := strings.ToLower(raw)
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return
			}
		}
		ref, err := url.Parse(raw)
		if err != nil {
			log.Debugf("Skipping unparseable link %q on %s: %v", raw, pageURL, err)
			return
		}
		abs := base.ResolveReference(ref).String()
		if !urlutil.IsValid(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if rel, _ := s.Attr("rel"); strings.Contains(strings.ToLower(rel), "nofollow") {
			return
		}
		href, _ := s.Attr("href")
		add(href)
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add(src)
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add(src)
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(href)
	})

	return links
}
