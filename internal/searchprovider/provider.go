// Package searchprovider implements the primary web search provider and an
// AI-only fallback, plus the composition logic the worker uses to run a set
// of queries against both.
package searchprovider

import (
	"context"

	"github.com/sells-group/competitor-intel/internal/model"
)

// ErrorKind classifies a Provider failure for the caller's retry policy.
type ErrorKind string

const (
	ErrorNone                ErrorKind = ""
	ErrorInsufficientCredits ErrorKind = "insufficient_credits"
	ErrorRateLimited         ErrorKind = "rate_limited"
	ErrorTransport           ErrorKind = "transport"
)

// SearchOptions controls a single Search call.
type SearchOptions struct {
	Limit         int
	ScrapeContent bool
}

// Result is a single search hit, uniform across providers.
type Result struct {
	URL      string
	Title    string
	Snippet  string
	Content  string // populated only when ScrapeContent was requested and succeeded
	Provider string
}

// SearchResponse is the outcome of one Provider.Search call.
type SearchResponse struct {
	OK        bool
	Results   []Result
	Provider  string
	ErrorKind ErrorKind
	Err       error
}

// Provider is the uniform capability both the primary and fallback search
// providers implement.
type Provider interface {
	Name() string
	IsAvailable() bool
	Search(ctx context.Context, query string, opts SearchOptions) SearchResponse
}

// Scraper is the subset of primary-provider behavior the enrichment engine
// needs directly (fetch page content for a known URL).
type Scraper interface {
	Scrape(ctx context.Context, url string) (content string, err error)
}

// FallbackContext narrows a project down to what the AI fallback provider
// needs to synthesize plausible candidates.
type FallbackContext struct {
	Keywords []string
	Regions  []string
	Industry string
}

// ContextFromProject builds a FallbackContext from a Project's shape.
func ContextFromProject(p model.Project) FallbackContext {
	industry := ""
	if len(p.Industries) > 0 {
		industry = p.Industries[0]
	}
	return FallbackContext{Keywords: p.Keywords, Regions: p.Regions, Industry: industry}
}
