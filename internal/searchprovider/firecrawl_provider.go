package searchprovider

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/resilience"
	"github.com/sells-group/competitor-intel/pkg/firecrawl"
)

// FirecrawlProvider is the primary web search-and-scrape provider. When the
// configured API key is empty it reports itself unavailable so the worker
// skips it in favor of the fallback provider.
type FirecrawlProvider struct {
	client firecrawl.Client
	apiKey string
}

// NewFirecrawlProvider wraps a firecrawl.Client as the primary Provider.
func NewFirecrawlProvider(client firecrawl.Client, apiKey string) *FirecrawlProvider {
	return &FirecrawlProvider{client: client, apiKey: apiKey}
}

func (p *FirecrawlProvider) Name() string { return "firecrawl" }

func (p *FirecrawlProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *FirecrawlProvider) Search(ctx context.Context, query string, opts SearchOptions) SearchResponse {
	if !p.IsAvailable() {
		return SearchResponse{Provider: p.Name(), ErrorKind: ErrorTransport, Err: eris.New("firecrawl: provider unavailable")}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	resp, err := p.client.Search(ctx, firecrawl.SearchRequest{
		Query:         query,
		Limit:         limit,
		ScrapeContent: opts.ScrapeContent,
	})
	if err != nil {
		return SearchResponse{Provider: p.Name(), ErrorKind: classifyError(err), Err: err}
	}

	results := make([]Result, 0, len(resp.Data))
	for _, r := range resp.Data {
		results = append(results, Result{
			URL:      r.URL,
			Title:    r.Title,
			Snippet:  r.Snippet,
			Content:  r.Markdown,
			Provider: p.Name(),
		})
	}

	return SearchResponse{OK: true, Results: results, Provider: p.Name()}
}

// Scrape fetches a single page's markdown content.
func (p *FirecrawlProvider) Scrape(ctx context.Context, url string) (string, error) {
	resp, err := p.client.Scrape(ctx, firecrawl.ScrapeRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return "", eris.Wrap(err, "firecrawl: scrape")
	}
	return resp.Data.Markdown, nil
}

func classifyError(err error) ErrorKind {
	var apiErr *firecrawl.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.InsufficientCredits():
			return ErrorInsufficientCredits
		case apiErr.RateLimited():
			return ErrorRateLimited
		}
		return ErrorTransport
	}
	if resilience.IsTransient(err) {
		return ErrorTransport
	}
	return ErrorTransport
}
