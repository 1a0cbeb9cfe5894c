package searchprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/query"
	"github.com/sells-group/competitor-intel/pkg/anthropic"
)

// AIFallbackProvider synthesizes plausible candidate companies via a chat
// model when the primary provider is unavailable or returns nothing.
// IsAvailable reports false only when no model client is configured.
type AIFallbackProvider struct {
	client anthropic.Client
	model  string
	fctx   FallbackContext
	calc   *cost.Calculator
}

// NewAIFallbackProvider builds a fallback provider scoped to one discovery
// context (keywords/regions/industry); a fresh instance is created per run.
// calc may be nil, in which case no cost is logged.
func NewAIFallbackProvider(client anthropic.Client, model string, fctx FallbackContext, calc *cost.Calculator) *AIFallbackProvider {
	return &AIFallbackProvider{client: client, model: model, fctx: fctx, calc: calc}
}

func (p *AIFallbackProvider) Name() string { return "ai_fallback" }

func (p *AIFallbackProvider) IsAvailable() bool { return p.client != nil }

type fallbackCandidate struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Description string `json:"description"`
	Country     string `json:"country"`
}

// Search ignores the query string in favor of the provider's own
// keywords/regions/industry context, since it synthesizes rather than
// retrieves. limit bounds the number of synthesized candidates.
func (p *AIFallbackProvider) Search(ctx context.Context, _ string, opts SearchOptions) SearchResponse {
	if !p.IsAvailable() {
		return SearchResponse{Provider: p.Name(), ErrorKind: ErrorTransport, Err: eris.New("ai_fallback: no client configured")}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	prompt := p.buildPrompt(limit)
	temp := 0.3

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   2000,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return SearchResponse{Provider: p.Name(), ErrorKind: ErrorTransport, Err: eris.Wrap(err, "ai_fallback: create message")}
	}
	if p.calc != nil {
		usage := resp.Usage
		amount := p.calc.Claude(p.model, false, int(usage.InputTokens), int(usage.OutputTokens), int(usage.CacheCreationInputTokens), int(usage.CacheReadInputTokens))
		zap.L().Info("cost attribution",
			zap.String("model", p.model),
			zap.String("phase", "ai_fallback_search"),
			zap.Float64("estimated_cost_usd", amount),
		)
	}

	text := textOf(resp)
	candidates, err := parseCandidateArray(text)
	if err != nil {
		return SearchResponse{Provider: p.Name(), ErrorKind: ErrorTransport, Err: err}
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == "" || c.Website == "" {
			continue
		}
		results = append(results, Result{
			URL:      normalizeURL(c.Website),
			Title:    c.Name,
			Snippet:  c.Description,
			Provider: p.Name(),
		})
		if len(results) >= limit {
			break
		}
	}

	return SearchResponse{OK: true, Results: results, Provider: p.Name()}
}

func (p *AIFallbackProvider) buildPrompt(limit int) string {
	var b strings.Builder
	b.WriteString("List up to ")
	fmt.Fprintf(&b, "%d", limit)
	b.WriteString(" real companies matching this profile.\n")
	if len(p.fctx.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(p.fctx.Keywords, ", "))
	}
	if len(p.fctx.Regions) > 0 {
		names := make([]string, len(p.fctx.Regions))
		for i, r := range p.fctx.Regions {
			names[i] = query.RegionName(r)
		}
		fmt.Fprintf(&b, "Regions: %s\n", strings.Join(names, ", "))
	}
	if p.fctx.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", p.fctx.Industry)
	}
	b.WriteString("Respond with ONLY a strict JSON array, no prose, no markdown fences. ")
	b.WriteString(`Each element: {"name": string, "website": string, "description": string, "country": string (ISO-3166 alpha-2)}.`)
	return b.String()
}

func textOf(resp *anthropic.MessageResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// parseCandidateArray locates the first '[' and last ']' in text and parses
// the substring as a JSON array. Non-conforming output yields an error
// rather than a partial parse, per the caller's reject-non-conforming rule.
func parseCandidateArray(text string) ([]fallbackCandidate, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, eris.New("ai_fallback: no JSON array found in response")
	}

	var candidates []fallbackCandidate
	if err := json.Unmarshal([]byte(text[start:end+1]), &candidates); err != nil {
		return nil, eris.Wrap(err, "ai_fallback: parse candidate array")
	}
	return candidates, nil
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}
