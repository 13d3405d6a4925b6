package models

import "strconv"

// StatusRequestFailed is the sentinel recorded when every fetch attempt for a
// URL failed at the transport level (DNS, connect, timeout) without ever
// producing an HTTP response.
const StatusRequestFailed = "Request Failed"

// ResultType classifies a crawled URL relative to the seed domain.
type ResultType string

const (
	TypeInternal ResultType = "internal"
	TypeExternal ResultType = "external"
)

// CrawlTask is a unit of frontier work: a URL to fetch, the depth at which it
// was discovered, and the page that referenced it. Tasks are immutable and
// consumed exactly once.
type CrawlTask struct {
	Depth    int
	URL      string
	Referrer string
}

// CrawlResult is the recorded outcome of one fetch attempt. Status is either
// a numeric HTTP status code rendered as a string, or StatusRequestFailed.
type CrawlResult struct {
	URL      string
	Status   string
	Referrer string
	Type     ResultType
	Domain   string
	Depth    int
}

// StatusFromCode renders an HTTP status code for storage in a CrawlResult.
func StatusFromCode(code int) string {
	return strconv.Itoa(code)
}

// IsError reports whether the result represents a broken link: a numeric
// status >= 400 or the transport-failure sentinel.
func (r CrawlResult) IsError() bool {
	if r.Status == StatusRequestFailed {
		return true
	}
	code, err := strconv.Atoi(r.Status)
	return err == nil && code >= 400
}

// WhoisRecord is the ownership information resolved for a domain. Resolver
// failures are encoded in-band (Owner "Error", Status carrying the reason)
// rather than as Go errors.
type WhoisRecord struct {
	Owner  string
	Status string
}
