package searchprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/pkg/anthropic"
)

type stubAnthropicClient struct {
	resp *anthropic.MessageResponse
	err  error
}

func (s *stubAnthropicClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return s.resp, s.err
}
func (s *stubAnthropicClient) CreateBatch(context.Context, anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	return nil, nil
}
func (s *stubAnthropicClient) GetBatch(context.Context, string) (*anthropic.BatchResponse, error) {
	return nil, nil
}
func (s *stubAnthropicClient) GetBatchResults(context.Context, string) (anthropic.BatchResultIterator, error) {
	return nil, nil
}

func TestAIFallbackProvider_Search_ParsesJSONArray(t *testing.T) {
	client := &stubAnthropicClient{
		resp: &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{
				Type: "text",
				Text: `Here you go: [{"name":"Kuda","website":"kuda.com","description":"neobank","country":"NG"},{"name":"Carbon","website":"carbon.ng","description":"lender","country":"NG"}]`,
			}},
		},
	}
	p := NewAIFallbackProvider(client, "claude-haiku-4-5-20251001", FallbackContext{Keywords: []string{"neobank"}, Regions: []string{"NG"}}, nil)

	resp := p.Search(context.Background(), "", SearchOptions{Limit: 10})
	require.True(t, resp.OK)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://kuda.com", resp.Results[0].URL)
	assert.Equal(t, "Kuda", resp.Results[0].Title)
}

func TestAIFallbackProvider_Search_NonConformingOutputRejected(t *testing.T) {
	client := &stubAnthropicClient{
		resp: &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "I cannot help with that."}},
		},
	}
	p := NewAIFallbackProvider(client, "claude-haiku-4-5-20251001", FallbackContext{}, nil)

	resp := p.Search(context.Background(), "", SearchOptions{Limit: 10})
	assert.False(t, resp.OK)
	assert.Error(t, resp.Err)
}

func TestAIFallbackProvider_Search_RespectsLimit(t *testing.T) {
	client := &stubAnthropicClient{
		resp: &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{
				Type: "text",
				Text: `[{"name":"A","website":"a.com"},{"name":"B","website":"b.com"},{"name":"C","website":"c.com"}]`,
			}},
		},
	}
	p := NewAIFallbackProvider(client, "claude-haiku-4-5-20251001", FallbackContext{}, nil)

	resp := p.Search(context.Background(), "", SearchOptions{Limit: 2})
	require.True(t, resp.OK)
	assert.Len(t, resp.Results, 2)
}

func TestParseCandidateArray_NoArrayFound(t *testing.T) {
	_, err := parseCandidateArray("no json here")
	assert.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://kuda.com", normalizeURL("kuda.com"))
	assert.Equal(t, "https://kuda.com", normalizeURL("https://kuda.com/"))
}
