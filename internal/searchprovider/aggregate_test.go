package searchprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	name      string
	available bool
	responses []SearchResponse
	calls     int
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return s.available }
func (s *stubProvider) Search(_ context.Context, _ string, _ SearchOptions) SearchResponse {
	if s.calls >= len(s.responses) {
		return SearchResponse{OK: true, Provider: s.name}
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp
}

func TestRunQueries_HappyPath(t *testing.T) {
	primary := &stubProvider{
		name:      "primary",
		available: true,
		responses: []SearchResponse{
			{OK: true, Results: []Result{{URL: "https://kuda.com", Title: "Kuda"}, {URL: "https://carbon.ng", Title: "Carbon"}}},
		},
	}
	fallback := &stubProvider{name: "fallback", available: true}

	got := RunQueries(context.Background(), primary, fallback, []string{"neobank africa"}, AggregateOptions{Limit: 10})
	assert.Len(t, got, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestRunQueries_InsufficientCreditsStopsIterationAndInvokesFallback(t *testing.T) {
	primary := &stubProvider{
		name:      "primary",
		available: true,
		responses: []SearchResponse{
			{OK: false, ErrorKind: ErrorInsufficientCredits},
		},
	}
	fallback := &stubProvider{
		name:      "fallback",
		available: true,
		responses: []SearchResponse{
			{OK: true, Results: []Result{{URL: "https://synth.co"}}},
		},
	}

	got := RunQueries(context.Background(), primary, fallback, []string{"q1", "q2", "q3"}, AggregateOptions{Limit: 10})
	assert.Equal(t, 1, primary.calls, "primary iteration stops after insufficient_credits")
	assert.Equal(t, 1, fallback.calls)
	assert.Len(t, got, 1)
}

func TestRunQueries_DedupesByNormalizedURL(t *testing.T) {
	primary := &stubProvider{
		name:      "primary",
		available: true,
		responses: []SearchResponse{
			{OK: true, Results: []Result{{URL: "https://www.paystack.com/"}, {URL: "http://paystack.com"}}},
		},
	}
	fallback := &stubProvider{name: "fallback", available: true}

	got := RunQueries(context.Background(), primary, fallback, []string{"q1"}, AggregateOptions{Limit: 10})
	assert.Len(t, got, 1)
	assert.Equal(t, 0, fallback.calls, "fallback skipped when primary returned results")
}

func TestRunQueries_PrimaryUnavailableSkipsToFallback(t *testing.T) {
	primary := &stubProvider{name: "primary", available: false}
	fallback := &stubProvider{
		name:      "fallback",
		available: true,
		responses: []SearchResponse{
			{OK: true, Results: []Result{{URL: "https://synth.co"}}},
		},
	}

	got := RunQueries(context.Background(), primary, fallback, []string{"q1"}, AggregateOptions{Limit: 10})
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Len(t, got, 1)
}

func TestRunQueries_EmptyEverything(t *testing.T) {
	primary := &stubProvider{name: "primary", available: true, responses: []SearchResponse{{OK: true}}}
	fallback := &stubProvider{name: "fallback", available: true, responses: []SearchResponse{{OK: true}}}

	got := RunQueries(context.Background(), primary, fallback, []string{"q1"}, AggregateOptions{Limit: 10})
	assert.Empty(t, got)
}

func TestNormalizeDedupKey(t *testing.T) {
	assert.Equal(t, "paystack.com", normalizeDedupKey("https://www.paystack.com/"))
	assert.Equal(t, "paystack.com", normalizeDedupKey("http://paystack.com"))
}
