package searchprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/pkg/firecrawl"
)

type stubFirecrawlClient struct {
	searchResp *firecrawl.SearchResponse
	searchErr  error
}

func (s *stubFirecrawlClient) Search(context.Context, firecrawl.SearchRequest) (*firecrawl.SearchResponse, error) {
	return s.searchResp, s.searchErr
}
func (s *stubFirecrawlClient) Crawl(context.Context, firecrawl.CrawlRequest) (*firecrawl.CrawlResponse, error) {
	return nil, nil
}
func (s *stubFirecrawlClient) GetCrawlStatus(context.Context, string) (*firecrawl.CrawlStatusResponse, error) {
	return nil, nil
}
func (s *stubFirecrawlClient) Scrape(context.Context, firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	return &firecrawl.ScrapeResponse{Data: firecrawl.PageData{Markdown: "# hello"}}, nil
}
func (s *stubFirecrawlClient) BatchScrape(context.Context, firecrawl.BatchScrapeRequest) (*firecrawl.BatchScrapeResponse, error) {
	return nil, nil
}
func (s *stubFirecrawlClient) GetBatchScrapeStatus(context.Context, string) (*firecrawl.BatchScrapeStatusResponse, error) {
	return nil, nil
}

func TestFirecrawlProvider_UnavailableWithoutKey(t *testing.T) {
	p := NewFirecrawlProvider(&stubFirecrawlClient{}, "")
	assert.False(t, p.IsAvailable())

	resp := p.Search(context.Background(), "q", SearchOptions{})
	assert.False(t, resp.OK)
}

func TestFirecrawlProvider_Search_MapsResults(t *testing.T) {
	client := &stubFirecrawlClient{
		searchResp: &firecrawl.SearchResponse{
			Success: true,
			Data: []firecrawl.SearchResult{
				{URL: "https://kuda.com", Title: "Kuda", Snippet: "neobank"},
			},
		},
	}
	p := NewFirecrawlProvider(client, "fc-key")
	resp := p.Search(context.Background(), "neobank africa", SearchOptions{Limit: 5})
	require.True(t, resp.OK)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://kuda.com", resp.Results[0].URL)
}

func TestFirecrawlProvider_InsufficientCredits(t *testing.T) {
	client := &stubFirecrawlClient{
		searchErr: &firecrawl.APIError{StatusCode: 402, Body: "insufficient credits"},
	}
	p := NewFirecrawlProvider(client, "fc-key")
	resp := p.Search(context.Background(), "q", SearchOptions{})
	assert.False(t, resp.OK)
	assert.Equal(t, ErrorInsufficientCredits, resp.ErrorKind)
}

func TestFirecrawlProvider_RateLimited(t *testing.T) {
	client := &stubFirecrawlClient{
		searchErr: &firecrawl.APIError{StatusCode: 429, Body: "rate limited"},
	}
	p := NewFirecrawlProvider(client, "fc-key")
	resp := p.Search(context.Background(), "q", SearchOptions{})
	assert.Equal(t, ErrorRateLimited, resp.ErrorKind)
}
