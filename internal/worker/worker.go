package worker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/config"
	"github.com/sells-group/competitor-intel/internal/model"
)

// drainTimeout bounds how long a worker waits for in-flight activities to
// finish after an interrupt before it exits.
const drainTimeout = 30 * time.Second

// NewClient dials the Temporal frontend the worker and API processes share.
func NewClient(hostPort, namespace string) (client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: hostPort, Namespace: namespace})
	if err != nil {
		return nil, eris.Wrap(err, "worker: dial temporal")
	}
	return c, nil
}

// Run registers the discovery workflow and its activities on TaskQueue and
// blocks until interrupted, draining in-flight jobs up to drainTimeout
// before returning.
func Run(c client.Client, cfg config.WorkerConfig, activities *Activities) error {
	w := worker.New(c, TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Concurrency,
		WorkerStopTimeout:                  drainTimeout,
	})

	w.RegisterWorkflow(DiscoveryWorkflow)
	w.RegisterActivityWithOptions(activities.UpdateRunStatus, activity.RegisterOptions{Name: ActivityUpdateRunStatus})
	w.RegisterActivityWithOptions(activities.Search, activity.RegisterOptions{Name: ActivitySearch})
	w.RegisterActivityWithOptions(activities.Extract, activity.RegisterOptions{Name: ActivityExtract})
	w.RegisterActivityWithOptions(activities.ScoreDedup, activity.RegisterOptions{Name: ActivityScoreDedup})
	w.RegisterActivityWithOptions(activities.Persist, activity.RegisterOptions{Name: ActivityPersist})

	zap.L().Info("worker: starting", zap.String("task_queue", TaskQueue), zap.Int("concurrency", cfg.Concurrency))

	if err := w.Run(worker.InterruptCh()); err != nil {
		return eris.Wrap(err, "worker: run")
	}
	return nil
}

// EnqueueDiscoveryRun starts a DiscoveryWorkflow execution for a run. Using
// the run id as the workflow id makes re-enqueueing the same run idempotent
// at the Temporal layer.
func EnqueueDiscoveryRun(ctx context.Context, c client.Client, dctx model.DiscoveryContext, cfg config.WorkerConfig) (string, error) {
	in := DiscoveryWorkflowInput{
		Context:           dctx,
		MaxAttempts:       int32(cfg.MaxAttempts),
		BackoffSeconds:    int32(cfg.BackoffSeconds),
		RunTimeoutMinutes: int32(cfg.RunTimeoutMinutes),
		SearchInterCallMs: int32(cfg.SearchInterCallMs),
	}
	opts := client.StartWorkflowOptions{
		ID:        "discover-" + dctx.RunID,
		TaskQueue: TaskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, DiscoveryWorkflow, in)
	if err != nil {
		return "", eris.Wrap(err, "worker: start discovery workflow")
	}
	return run.GetID(), nil
}
