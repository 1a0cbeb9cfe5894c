// Package worker implements the Worker Runtime: a Temporal-backed job queue
// whose single job kind, discovery, composes the query builder, search
// providers, extractor, scorer, deduplicator, and persistence adapter into
// one durable run.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/config"
	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/dedup"
	"github.com/sells-group/competitor-intel/internal/extractor"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/query"
	"github.com/sells-group/competitor-intel/internal/resilience"
	"github.com/sells-group/competitor-intel/internal/scorer"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/pkg/anthropic"
)

// Activities bundles every external collaborator the discovery workflow's
// activities call through. Each activity method is stateless beyond this
// struct, so a single instance is registered once per worker process.
type Activities struct {
	Store           store.Store
	Primary         searchprovider.Provider
	AnthropicClient anthropic.Client
	FallbackModel   string
	Embedder        dedup.Embedder
	Matcher         dedup.SimilarityMatcher
	Cfg             config.Config

	// Calculator prices each Claude call for cost attribution logging. Left
	// nil, activities still run but emit no cost telemetry.
	Calculator *cost.Calculator

	// Breakers tracks each search provider's health across runs, worker-process
	// lifetime. A provider that has been persistently failing trips open and is
	// skipped for ResetTimeout before a half-open probe retries it; this is
	// separate from the per-run ProviderExhausted handling RunQueries already
	// does for insufficient-credits responses within a single run.
	Breakers *resilience.ServiceBreakers
}

// UpdateRunStatus transitions a run's status, enforcing the same monotonic
// order the store already checks; the activity exists only so the workflow
// never talks to the store directly (Temporal determinism).
func (a *Activities) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, resultsCount *int, errMsg *string) error {
	return a.Store.UpdateRunStatus(ctx, runID, status, resultsCount, errMsg)
}

// Search runs the query builder over the run's targeting parameters and
// aggregates results across the primary and fallback providers. A single
// provider call is retried up to twice on a transient classification before
// RunQueries moves on, per the ProviderTransient policy.
func (a *Activities) Search(ctx context.Context, dctx model.DiscoveryContext) ([]searchprovider.Result, error) {
	queries := query.Build(model.Project{
		ID:             dctx.ProjectID,
		OrganizationID: dctx.OrgID,
		Name:           dctx.ProjectName,
		Description:    dctx.Description,
		Keywords:       dctx.Keywords,
		Industries:     dctx.Industries,
		Regions:        dctx.Regions,
	})

	var primary searchprovider.Provider
	if a.Primary != nil {
		primary = retryingProvider{inner: a.Primary, breaker: a.providerBreaker(a.Primary.Name())}
	}

	// The fallback provider is scoped to this run's keywords/regions/industry,
	// so a fresh instance is built per Search call rather than shared on
	// Activities. It is not routed through a circuit breaker: it only ever
	// runs once per query batch as a last resort, so a persistent-failure
	// fast path would not save meaningful work.
	var fallback searchprovider.Provider
	if a.AnthropicClient != nil {
		fallback = searchprovider.NewAIFallbackProvider(a.AnthropicClient, a.FallbackModel, searchprovider.ContextFromProject(model.Project{
			Keywords:   dctx.Keywords,
			Regions:    dctx.Regions,
			Industries: dctx.Industries,
		}), a.Calculator)
	}

	interCallDelay := time.Second
	if a.Cfg.Worker.QueryInterCallMs > 0 {
		interCallDelay = time.Duration(a.Cfg.Worker.QueryInterCallMs) * time.Millisecond
	}

	results := searchprovider.RunQueries(ctx, primary, fallback, queries, searchprovider.AggregateOptions{
		Limit:          a.Cfg.Discovery.ResultsPerQuery,
		ScrapeContent:  true,
		InterCallDelay: interCallDelay,
		FallbackLimit:  a.Cfg.Discovery.MaxResultsPerRun,
	})
	return results, nil
}

// retryingProvider wraps a Provider so a single transient Search failure is
// retried (per ProviderTransient: up to two retries, exponential backoff)
// before RunQueries sees it as a failed query and moves to the next one. If a
// breaker is set, repeated failures across runs trip it open and Search
// fails fast until the reset timeout elapses.
type retryingProvider struct {
	inner   searchprovider.Provider
	breaker *resilience.CircuitBreaker
}

func (p retryingProvider) Name() string      { return p.inner.Name() }
func (p retryingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p retryingProvider) Search(ctx context.Context, q string, opts searchprovider.SearchOptions) searchprovider.SearchResponse {
	var resp searchprovider.SearchResponse
	attempt := func(ctx context.Context) error {
		cfg := resilience.RetryConfig{
			MaxAttempts:    3, // one initial try plus two retries
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     4 * time.Second,
			// The provider has already classified this as transient; retry
			// unconditionally rather than re-run IsTransient's message heuristics.
			ShouldRetry: func(error) bool { return true },
		}
		var err error
		resp, err = resilience.DoVal(ctx, cfg, func(ctx context.Context) (searchprovider.SearchResponse, error) {
			r := p.inner.Search(ctx, q, opts)
			if !r.OK && (r.ErrorKind == searchprovider.ErrorTransport || r.ErrorKind == searchprovider.ErrorRateLimited) {
				return r, r.Err
			}
			return r, nil
		})
		if resp.OK {
			return nil
		}
		if err == nil {
			err = resp.Err
		}
		if err == nil {
			err = eris.New("provider search failed")
		}
		return err
	}

	if p.breaker == nil {
		_ = attempt(ctx)
		return resp
	}

	if err := p.breaker.Execute(ctx, attempt); err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
		return searchprovider.SearchResponse{OK: false, Provider: p.inner.Name(), ErrorKind: searchprovider.ErrorRateLimited, Err: err}
	}
	return resp
}

// Extract runs structured extraction over the aggregated search results.
func (a *Activities) Extract(ctx context.Context, dctx model.DiscoveryContext, results []searchprovider.Result) ([]model.BasicCompetitor, error) {
	ectx := extractor.Context{Keywords: dctx.Keywords, Regions: dctx.Regions, Industry: firstOf(dctx.Industries)}
	return extractor.Extract(ctx, a.AnthropicClient, a.Cfg.Anthropic, results, ectx, a.Calculator)
}

// ScoreDedup runs the within-batch, cross-corpus, and (if configured)
// semantic dedup passes, then scores and filters by relevance threshold.
func (a *Activities) ScoreDedup(ctx context.Context, dctx model.DiscoveryContext, basics []model.BasicCompetitor) ([]model.Candidate, error) {
	candidates := make([]model.Candidate, 0, len(basics))
	for _, b := range basics {
		candidates = append(candidates, model.Candidate{Basic: b})
	}

	candidates = dedup.WithinBatch(candidates)

	candidates, err := dedup.AcrossCorpus(ctx, a.Store, dctx.OrgID, candidates)
	if err != nil {
		return nil, eris.Wrap(err, "worker: cross-corpus dedup")
	}

	if a.Embedder != nil && a.Matcher != nil {
		candidates = dedup.Semantic(ctx, a.Embedder, a.Matcher, dctx.OrgID, a.Cfg.Embedding.Threshold, candidates)
	}

	target := scorer.Target{Industries: dctx.Industries, Regions: dctx.Regions}
	results := scorer.FilterAndScore(candidates, target, a.Cfg.Scorer, time.Now())

	scored := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		c := r.Candidate
		c.Score = r.Score
		scored = append(scored, c)
	}
	return scored, nil
}

// Persist upserts the scored candidates, retrying twice on a
// PersistenceTransient classification before giving up (PersistenceFatal and
// exhausted retries surface as an error and fail the run).
func (a *Activities) Persist(ctx context.Context, dctx model.DiscoveryContext, candidates []model.Candidate) ([]string, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		ShouldRetry:    func(err error) bool { return model.IsKind(err, model.KindPersistenceTransient) },
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]string, error) {
		return a.Store.InsertCompetitors(ctx, dctx.OrgID, dctx.RunID, candidates)
	})
}

func (a *Activities) providerBreaker(name string) *resilience.CircuitBreaker {
	if a.Breakers == nil {
		return nil
	}
	return a.Breakers.Get(name)
}

func firstOf(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
