package worker

import (
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
)

// TaskQueue is the single Temporal task queue every worker process polls;
// discovery is the only job kind.
const TaskQueue = "discovery"

// Activity names, registered explicitly so the workflow never needs a
// reference to the concrete Activities struct.
const (
	ActivityUpdateRunStatus = "UpdateRunStatus"
	ActivitySearch          = "Search"
	ActivityExtract         = "Extract"
	ActivityScoreDedup      = "ScoreDedup"
	ActivityPersist         = "Persist"
)

// defaultInterProviderCallDelay is the fallback pacing between the search
// phase and the extraction phase when a run was enqueued without one.
const defaultInterProviderCallDelay = 500 * time.Millisecond

// DiscoveryWorkflowInput is the durable input to DiscoveryWorkflow. A
// workflow may never read live config; every knob it needs is captured here
// at enqueue time.
type DiscoveryWorkflowInput struct {
	Context           model.DiscoveryContext
	MaxAttempts       int32
	BackoffSeconds    int32
	RunTimeoutMinutes int32
	SearchInterCallMs int32
}

func activityOptions(in DiscoveryWorkflowInput) workflow.ActivityOptions {
	backoff := time.Duration(in.BackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	attempts := in.MaxAttempts
	if attempts <= 0 {
		attempts = 2
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: 90 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    backoff,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    attempts,
		},
	}
}

// DiscoveryWorkflow runs one discovery job end to end: search, extract,
// dedup and score, persist, with a run-scoped wallclock budget racing the
// work itself. Exceeding the budget or any unrecovered activity error marks
// the run failed before the workflow returns.
func DiscoveryWorkflow(ctx workflow.Context, in DiscoveryWorkflowInput) error {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(in))
	runID := in.Context.RunID

	timeout := time.Duration(in.RunTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	workCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()

	done := workflow.NewChannel(ctx)
	workflow.Go(workCtx, func(gctx workflow.Context) {
		done.Send(gctx, runDiscovery(gctx, in))
	})

	timerFuture := workflow.NewTimer(ctx, timeout)

	var workErr error
	timedOut := false
	selector := workflow.NewSelector(ctx)
	selector.AddFuture(timerFuture, func(workflow.Future) { timedOut = true })
	selector.AddReceive(done, func(c workflow.ReceiveChannel, _ bool) { c.Receive(ctx, &workErr) })
	selector.Select(ctx)

	if timedOut {
		cancel()
		msg := "timeout"
		_ = workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, runID, model.RunFailed, (*int)(nil), &msg).Get(ctx, nil)
		return eris.New("worker: run exceeded wallclock timeout")
	}

	if workErr != nil {
		msg := workErr.Error()
		_ = workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, runID, model.RunFailed, (*int)(nil), &msg).Get(ctx, nil)
		return workErr
	}

	return nil
}

func runDiscovery(ctx workflow.Context, in DiscoveryWorkflowInput) error {
	dctx := in.Context

	if err := workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, dctx.RunID, model.RunSearching, (*int)(nil), (*string)(nil)).Get(ctx, nil); err != nil {
		return err
	}

	var results []searchprovider.Result
	if err := workflow.ExecuteActivity(ctx, ActivitySearch, dctx).Get(ctx, &results); err != nil {
		return err
	}

	interCallDelay := defaultInterProviderCallDelay
	if in.SearchInterCallMs > 0 {
		interCallDelay = time.Duration(in.SearchInterCallMs) * time.Millisecond
	}
	if err := workflow.Sleep(ctx, interCallDelay); err != nil {
		return err
	}

	if len(results) == 0 {
		zero := 0
		return workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, dctx.RunID, model.RunCompleted, &zero, (*string)(nil)).Get(ctx, nil)
	}

	if err := workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, dctx.RunID, model.RunExtracting, (*int)(nil), (*string)(nil)).Get(ctx, nil); err != nil {
		return err
	}

	var basics []model.BasicCompetitor
	if err := workflow.ExecuteActivity(ctx, ActivityExtract, dctx, results).Get(ctx, &basics); err != nil {
		return err
	}

	if len(basics) == 0 {
		zero := 0
		return workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, dctx.RunID, model.RunCompleted, &zero, (*string)(nil)).Get(ctx, nil)
	}

	var scored []model.Candidate
	if err := workflow.ExecuteActivity(ctx, ActivityScoreDedup, dctx, basics).Get(ctx, &scored); err != nil {
		return err
	}

	var ids []string
	if err := workflow.ExecuteActivity(ctx, ActivityPersist, dctx, scored).Get(ctx, &ids); err != nil {
		return err
	}

	count := len(ids)
	return workflow.ExecuteActivity(ctx, ActivityUpdateRunStatus, dctx.RunID, model.RunCompleted, &count, (*string)(nil)).Get(ctx, nil)
}
