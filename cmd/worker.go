package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/competitor-intel/internal/monitoring"
	"github.com/sells-group/competitor-intel/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the discovery workflow worker",
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
			return eris.Wrap(err, "dial temporal")
		}
		defer temporalClient.Close()

		activities := initActivities(st)

		if cfg.Monitoring.Enabled {
			collector := monitoring.NewCollector(st, activities.Breakers)
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			checker := monitoring.NewChecker(collector, alerter, cfg.Monitoring)
			go checker.Run(ctx)
		}

		return worker.Run(temporalClient, cfg.Worker, activities)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
