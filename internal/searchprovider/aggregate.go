package searchprovider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AggregateOptions controls the run-scoped composition of primary and
// fallback providers across a list of queries.
type AggregateOptions struct {
	Limit          int
	ScrapeContent  bool
	InterCallDelay time.Duration // paces successive primary calls
	FallbackLimit  int
}

// RunQueries iterates queries against primary, honoring insufficient-credit
// and rate-limit signals, then invokes fallback once if the aggregate is
// empty, and finally dedupes by URL across both providers. Order is
// preserved: query-issuance order, then provider-returned order.
func RunQueries(ctx context.Context, primary, fallback Provider, queries []string, opts AggregateOptions) []Result {
	log := zap.L().With(zap.String("component", "searchprovider"))

	var aggregate []Result
	seen := make(map[string]bool)

	primaryUsable := primary != nil && primary.IsAvailable()
	exhausted := false

	if primaryUsable {
		for i, q := range queries {
			if ctx.Err() != nil {
				break
			}
			if exhausted {
				break
			}

			resp := primary.Search(ctx, q, SearchOptions{Limit: opts.Limit, ScrapeContent: opts.ScrapeContent})
			if !resp.OK {
				log.Warn("primary search failed",
					zap.String("query", q),
					zap.String("error_kind", string(resp.ErrorKind)),
					zap.Error(resp.Err),
				)
				if resp.ErrorKind == ErrorInsufficientCredits {
					exhausted = true
				}
				continue
			}

			for _, r := range resp.Results {
				key := normalizeDedupKey(r.URL)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				aggregate = append(aggregate, r)
			}

			if i < len(queries)-1 && opts.InterCallDelay > 0 {
				sleep(ctx, opts.InterCallDelay)
			}
		}
	} else {
		log.Info("primary search provider unavailable, skipping to fallback")
	}

	if len(aggregate) == 0 && fallback != nil && fallback.IsAvailable() {
		limit := opts.FallbackLimit
		if limit <= 0 {
			limit = 10
		}
		resp := fallback.Search(ctx, "", SearchOptions{Limit: limit})
		if resp.OK {
			for _, r := range resp.Results {
				key := normalizeDedupKey(r.URL)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				aggregate = append(aggregate, r)
			}
		} else {
			log.Warn("fallback search failed", zap.Error(resp.Err))
		}
	}

	return aggregate
}

func normalizeDedupKey(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimSuffix(u, "/")
	return u
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
