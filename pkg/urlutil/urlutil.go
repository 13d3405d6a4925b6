package urlutil

import (
	"net/url"
	"strings"
)

// Category is the coarse resource classification of a URL by file extension.
type Category string

const (
	CategoryImages      Category = "images"
	CategoryDocuments   Category = "documents"
	CategoryStylesheets Category = "stylesheets"
	CategoryScripts     Category = "scripts"
	CategoryMedia       Category = "media"
	CategoryArchives    Category = "archives"
)

// Categories lists every resource category in a stable order.
var Categories = []Category{
	CategoryImages,
	CategoryDocuments,
	CategoryStylesheets,
	CategoryScripts,
	CategoryMedia,
	CategoryArchives,
}

var categoryExtensions = map[Category][]string{
	CategoryImages:      {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg", ".ico"},
	CategoryDocuments:   {".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".rtf"},
	CategoryStylesheets: {".css", ".scss", ".sass", ".less"},
	CategoryScripts:     {".js", ".jsx", ".ts", ".tsx", ".coffee"},
	CategoryMedia:       {".mp3", ".mp4", ".wav", ".ogg", ".webm", ".mov", ".avi", ".flv"},
	CategoryArchives:    {".zip", ".rar", ".7z", ".tar", ".gz", ".bz2"},
}

// Normalize standardizes a URL string for dedup: trailing slashes removed,
// fragment removed, then the entire string lower-cased.
//
// Lower-casing the whole URL (path included) can merge distinct
// case-sensitive paths on servers that distinguish them. This is deliberate,
// long-standing behavior; do not change it without a release note.
func Normalize(rawURL string) string {
	normalized := strings.TrimRight(rawURL, "/")
	if i := strings.IndexByte(normalized, '#'); i >= 0 {
		normalized = normalized[:i]
	}
	return strings.ToLower(normalized)
}

// IsValid reports whether rawURL parses with an http(s) scheme and a
// non-empty host.
func IsValid(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Domain extracts the host component of rawURL with a leading "www."
// stripped. Returns "" for unparseable input.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// IsExternal reports whether rawURL points outside baseDomain.
func IsExternal(baseDomain, rawURL string) bool {
	return Domain(rawURL) != baseDomain
}

// ResourceType classifies rawURL by file extension (query and fragment
// stripped first). The second return is false when the URL is an ordinary
// page rather than a resource.
func ResourceType(rawURL string) (Category, bool) {
	trimmed := rawURL
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.IndexByte(trimmed, '#'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.ToLower(trimmed)

	for _, cat := range Categories {
		for _, ext := range categoryExtensions[cat] {
			if strings.HasSuffix(trimmed, ext) {
				return cat, true
			}
		}
	}
	return "", false
}
