package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/enrichment"
	"github.com/sells-group/competitor-intel/internal/httpapi"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
	"github.com/sells-group/competitor-intel/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the discovery and competitor HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		temporalClient, err := worker.NewClient(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			zap.L().Warn("temporal unavailable, discovery runs will be created but not enqueued", zap.Error(err))
			temporalClient = nil
		}
		if temporalClient != nil {
			defer temporalClient.Close()
		}

		var enricher *enrichment.Enricher
		if cfg.Firecrawl.Key != "" {
			enricher = enrichment.New(scraperFor(), anthropicClientFor(), cfg.Anthropic, cfg.Worker.SocialProbeLimit, cost.NewCalculator(cfg.Cost))
			if pplx := perplexityClientFor(); pplx != nil {
				enricher = enricher.WithSocialLookup(pplx, cfg.Perplexity.Model)
			}
		}

		router := httpapi.NewRouter(httpapi.Deps{
			Store:            st,
			Temporal:         temporalClient,
			Worker:           cfg.Worker,
			Enricher:         enricher,
			AllowlistOrigins: cfg.Server.AllowOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func scraperFor() searchprovider.Scraper {
	return searchprovider.NewFirecrawlProvider(firecrawlClientFor(), cfg.Firecrawl.Key)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
