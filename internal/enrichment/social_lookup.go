package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/pkg/perplexity"
)

// lookupSocialLinks asks Perplexity for a company's real social profile URLs,
// trading the guessed-slug fallback for a retrieval-backed answer when a
// client is configured. Returns a zero SocialLinks on any failure; the
// caller falls back to synthesizeSocialLinks. calc may be nil, in which case
// no cost is logged.
func lookupSocialLinks(ctx context.Context, client perplexity.Client, model_ string, name string, calc *cost.Calculator) (model.SocialLinks, error) {
	if client == nil || strings.TrimSpace(name) == "" {
		return model.SocialLinks{}, nil
	}

	prompt := fmt.Sprintf(
		"Find the official LinkedIn, Twitter/X, and Facebook page URLs for the company %q. "+
			"Respond with ONLY a strict JSON object, no prose, no markdown fences: "+
			`{"linkedin": string, "twitter": string, "facebook": string}. `+
			"Use an empty string for any network you cannot confidently identify.", name,
	)
	temp := 0.0

	resp, err := client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       model_,
		Temperature: &temp,
		MaxTokens:   intPtr(300),
		Messages:    []perplexity.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.SocialLinks{}, eris.Wrap(err, "enrichment: perplexity social lookup")
	}
	if len(resp.Choices) == 0 {
		return model.SocialLinks{}, eris.New("enrichment: perplexity returned no choices")
	}

	text := resp.Choices[0].Message.Content
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return model.SocialLinks{}, eris.New("enrichment: no JSON object in perplexity response")
	}

	var out struct {
		LinkedIn string `json:"linkedin"`
		Twitter  string `json:"twitter"`
		Facebook string `json:"facebook"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return model.SocialLinks{}, eris.Wrap(err, "enrichment: unmarshal perplexity social links")
	}

	links := model.SocialLinks{
		LinkedIn: strings.TrimSpace(out.LinkedIn),
		Twitter:  strings.TrimSpace(out.Twitter),
		Facebook: strings.TrimSpace(out.Facebook),
	}

	fields := []zap.Field{
		zap.String("model", model_),
		zap.String("phase", "social_lookup"),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	}
	if calc != nil {
		fields = append(fields, zap.Float64("estimated_cost_usd", calc.PerplexityQuery()))
	}
	zap.L().Info("cost attribution", fields...)

	return links, nil
}

func intPtr(v int) *int { return &v }
