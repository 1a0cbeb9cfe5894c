package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/resilience"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/worker"
	anthropicpkg "github.com/sells-group/competitor-intel/pkg/anthropic"
	"github.com/sells-group/competitor-intel/pkg/firecrawl"
	"github.com/sells-group/competitor-intel/pkg/perplexity"
)

// anthropicClientFor, firecrawlClientFor, and perplexityClientFor are shared
// across the serve and worker commands so both wire the same client
// construction.
func anthropicClientFor() anthropicpkg.Client {
	return anthropicpkg.NewClient(cfg.Anthropic.Key)
}

func firecrawlClientFor() firecrawl.Client {
	return firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
}

// perplexityClientFor returns nil when no key is configured, leaving social
// lookup disabled rather than constructing a client that will only 401.
func perplexityClientFor() perplexity.Client {
	if cfg.Perplexity.Key == "" {
		return nil
	}
	opts := []perplexity.Option{}
	if cfg.Perplexity.BaseURL != "" {
		opts = append(opts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
	}
	if cfg.Perplexity.Model != "" {
		opts = append(opts, perplexity.WithModel(cfg.Perplexity.Model))
	}
	return perplexity.NewClient(cfg.Perplexity.Key, opts...)
}

// initStore opens the configured persistence backend. Callers own Close.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("config: unknown store.driver %q", cfg.Store.Driver)
	}
}

// initActivities wires the live collaborators the discovery workflow's
// activities call through. Embedder/Matcher are always left nil, so the
// semantic dedup pass is skipped regardless of the embedding config.
func initActivities(st store.Store) *worker.Activities {
	return &worker.Activities{
		Store:           st,
		Primary:         searchprovider.NewFirecrawlProvider(firecrawlClientFor(), cfg.Firecrawl.Key),
		AnthropicClient: anthropicClientFor(),
		FallbackModel:   cfg.Anthropic.ExtractModel,
		Embedder:        nil,
		Matcher:         nil,
		Cfg:             *cfg,
		Calculator:      cost.NewCalculator(cfg.Cost),
		Breakers:        resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
}
