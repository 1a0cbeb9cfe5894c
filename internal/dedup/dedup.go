// Package dedup implements the two-stage (plus optional semantic) duplicate
// detection the discovery pipeline runs before persisting candidates.
package dedup

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
)

// ExistingWebsiteLister reads the organization's already-persisted website
// values, so cross-tenant dedup never needs the full Competitor rows.
type ExistingWebsiteLister interface {
	ExistingWebsites(ctx context.Context, organizationID string) ([]string, error)
}

// Embedder generates a vector fingerprint for semantic dedup. It is optional:
// a nil Embedder (or a Matcher returning no matches) simply skips stage 3.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SimilarityMatcher queries the tenant's existing embeddings for a cosine
// match above threshold.
type SimilarityMatcher interface {
	MatchByEmbedding(ctx context.Context, organizationID string, vector []float64, threshold float64) (bool, error)
}

// NormalizeDomain lowercases a URL/hostname and strips the scheme, a leading
// "www.", and any trailing slash or path, per the within-batch dedup key.
func NormalizeDomain(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	if slash := strings.Index(u, "/"); slash >= 0 {
		u = u[:slash]
	}
	return u
}

// WithinBatch drops candidates sharing a normalized domain with an earlier
// candidate in the slice; the first occurrence wins.
func WithinBatch(candidates []model.Candidate) []model.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := NormalizeDomain(c.Basic.Website)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.NormalizedHost = key
		out = append(out, c)
	}
	return out
}

// AcrossCorpus drops candidates whose normalized domain already exists among
// the organization's persisted competitors.
func AcrossCorpus(ctx context.Context, lister ExistingWebsiteLister, organizationID string, candidates []model.Candidate) ([]model.Candidate, error) {
	existing, err := lister.ExistingWebsites(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	existingDomains := make(map[string]bool, len(existing))
	for _, w := range existing {
		existingDomains[NormalizeDomain(w)] = true
	}

	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.NormalizedHost
		if key == "" {
			key = NormalizeDomain(c.Basic.Website)
		}
		if existingDomains[key] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Fingerprint builds the text fed to the embedder for semantic dedup:
// name | description | value_proposition | business_model | industry.
func Fingerprint(c model.Candidate) string {
	parts := []string{c.Basic.Name, c.Basic.Description}
	if c.Enriched != nil {
		parts = append(parts, c.Enriched.ValueProp, c.Enriched.BusinessModel)
	}
	parts = append(parts, c.Basic.Industry)
	return strings.Join(parts, " | ")
}

// Semantic drops candidates whose embedding cosine-matches an existing
// tenant embedding above threshold. A failure to embed or match is logged
// and the candidate is admitted rather than blocking the run — semantic
// dedup is advisory, not a hard gate.
func Semantic(ctx context.Context, embedder Embedder, matcher SimilarityMatcher, organizationID string, threshold float64, candidates []model.Candidate) []model.Candidate {
	if embedder == nil || matcher == nil {
		return candidates
	}

	log := zap.L().With(zap.String("component", "dedup"))
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		vec, err := embedder.Embed(ctx, Fingerprint(c))
		if err != nil {
			log.Warn("semantic dedup: embed failed, admitting candidate", zap.String("website", c.Basic.Website), zap.Error(err))
			out = append(out, c)
			continue
		}
		isDup, err := matcher.MatchByEmbedding(ctx, organizationID, vec, threshold)
		if err != nil {
			log.Warn("semantic dedup: match failed, admitting candidate", zap.String("website", c.Basic.Website), zap.Error(err))
			out = append(out, c)
			continue
		}
		if isDup {
			continue
		}
		c.Embedding = vec
		out = append(out, c)
	}
	return out
}
