// Package whois enriches audit results with domain registration data.
// Lookups go through a cache that guarantees at most one upstream query per
// domain per run; failures produce a sentinel record rather than an error so
// report generation never stalls on a flaky WHOIS backend.
package whois

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"linkaudit/pkg/models"
)

const (
	apiEndpoint    = "https://api.api-ninjas.com/v1/whois"
	requestTimeout = 15 * time.Second
)

// Resolver looks up the registration record for a domain. Implementations
// never return an error: failures are encoded in the record itself with
// Owner set to "Error" and Status carrying the reason.
type Resolver interface {
	Resolve(ctx context.Context, domain string) models.WhoisRecord
}

// apiResponse mirrors the fields we consume from the lookup API. The API
// sometimes returns arrays for these fields; RawMessage defers that choice.
type apiResponse struct {
	Registrar json.RawMessage `json:"registrar"`
	Name      json.RawMessage `json:"name"`
	Org       json.RawMessage `json:"org"`
}

// HTTPResolver queries the api-ninjas WHOIS endpoint.
type HTTPResolver struct {
	client   *http.Client
	apiKey   string
	endpoint string
	log      *logrus.Entry
}

// NewHTTPResolver creates a resolver with its own request timeout.
func NewHTTPResolver(client *http.Client, apiKey string, log *logrus.Entry) *HTTPResolver {
	return &HTTPResolver{
		client:   client,
		apiKey:   apiKey,
		endpoint: apiEndpoint,
		log:      log.WithField("component", "whois"),
	}
}

// errorRecord builds the failure sentinel.
func errorRecord(reason string) models.WhoisRecord {
	return models.WhoisRecord{Owner: "Error", Status: reason}
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, domain string) models.WhoisRecord {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	lookupURL := fmt.Sprintf("%s?domain=%s", r.endpoint, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return errorRecord(fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("X-Api-Key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.WithField("domain", domain).Warnf("WHOIS request failed: %v", err)
		return errorRecord(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		r.log.WithFields(logrus.Fields{"domain": domain, "status": resp.StatusCode}).Warn("WHOIS lookup returned non-200")
		return errorRecord(fmt.Sprintf("lookup status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorRecord(fmt.Sprintf("reading response: %v", err))
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.log.WithField("domain", domain).Warnf("WHOIS response unparseable: %v", err)
		return errorRecord("unparseable response")
	}

	owner := firstString(parsed.Name)
	if owner == "" {
		owner = firstString(parsed.Org)
	}
	if owner == "" {
		owner = "Unknown"
	}

	status := firstString(parsed.Registrar)
	if status == "" {
		status = "Unknown"
	}

	return models.WhoisRecord{Owner: owner, Status: status}
}

// firstString decodes raw as either a string or an array of strings and
// returns the first non-empty value.
func firstString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if v != "" {
				return v
			}
		}
	}
	return ""
}
