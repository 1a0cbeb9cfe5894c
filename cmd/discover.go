package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/worker"
)

var (
	discoverProjectID   string
	discoverOrgID       string
	discoverProjectName string
	discoverKeywords    string
	discoverRegions     string
	discoverIndustries  string
	discoverTier        string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Trigger a one-off competitor discovery run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if discoverProjectID == "" {
			discoverProjectID = uuid.NewString()
		}
		if discoverOrgID == "" {
			return eris.New("discover: --org is required")
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		keywords := splitCSV(discoverKeywords)
		regions := splitCSV(discoverRegions)
		industries := splitCSV(discoverIndustries)

		run, err := st.CreateRun(ctx, discoverProjectID, "cli", keywords, regions)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		temporalClient, err := worker.NewClient(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return eris.Wrap(err, "dial temporal")
		}
		defer temporalClient.Close()

		dctx := model.DiscoveryContext{
			RunID:       run.ID,
			ProjectID:   discoverProjectID,
			OrgID:       discoverOrgID,
			UserID:      "cli",
			ProjectName: discoverProjectName,
			Keywords:    keywords,
			Regions:     regions,
			Industries:  industries,
			Tier:        model.SubscriptionTier(discoverTier),
		}

		workflowID, err := worker.EnqueueDiscoveryRun(ctx, temporalClient, dctx, cfg.Worker)
		if err != nil {
			return eris.Wrap(err, "enqueue discovery run")
		}

		zap.L().Info("discovery run enqueued", zap.String("run_id", run.ID), zap.String("workflow_id", workflowID))
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"runId": run.ID, "workflowId": workflowID})
	},
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	discoverCmd.Flags().StringVar(&discoverProjectID, "project", "", "project id (generated if omitted)")
	discoverCmd.Flags().StringVar(&discoverOrgID, "org", "", "organization id (required)")
	discoverCmd.Flags().StringVar(&discoverProjectName, "name", "", "project name")
	discoverCmd.Flags().StringVar(&discoverKeywords, "keywords", "", "comma-separated keywords")
	discoverCmd.Flags().StringVar(&discoverRegions, "regions", "", "comma-separated regions")
	discoverCmd.Flags().StringVar(&discoverIndustries, "industries", "", "comma-separated industries")
	discoverCmd.Flags().StringVar(&discoverTier, "tier", string(model.TierPremium), "subscription tier")
	rootCmd.AddCommand(discoverCmd)
}
