package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/resilience"
	"github.com/sells-group/competitor-intel/internal/store"
)

// MetricsSnapshot holds a point-in-time view of discovery pipeline health,
// computed from runs created within the lookback window across every
// project.
type MetricsSnapshot struct {
	PipelineTotal      int     `json:"pipeline_total"`
	PipelineCompleted  int     `json:"pipeline_completed"`
	PipelineFailed     int     `json:"pipeline_failed"`
	PipelineInProgress int     `json:"pipeline_in_progress"` // pending, searching, or extracting
	PipelineFailRate   float64 `json:"pipeline_fail_rate"`   // of finished runs: failed / (completed + failed)

	// ProviderBreakerStates reports each search provider's circuit breaker
	// state ("closed", "open", "half-open") as of collection time. A nil
	// Breakers source leaves this empty.
	ProviderBreakerStates map[string]string `json:"provider_breaker_states"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// runLister is the subset of store.Store the collector needs; satisfied by
// store.Store itself, narrowed here so tests can stub just this method.
type runLister interface {
	ListRunsSince(ctx context.Context, since time.Time, limit int) ([]model.DiscoveryRun, error)
}

// maxRunsPerCollection bounds a single Collect call's read, so a runaway
// lookback window can't pull an unbounded result set.
const maxRunsPerCollection = 10000

// Collector gathers metrics from the store and, optionally, the search
// provider circuit breakers.
type Collector struct {
	store    runLister
	breakers *resilience.ServiceBreakers
}

// NewCollector creates a metrics collector. breakers may be nil, in which
// case ProviderBreakerStates is always empty.
func NewCollector(st runLister, breakers *resilience.ServiceBreakers) *Collector {
	return &Collector{store: st, breakers: breakers}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRunsSince(ctx, cutoff, maxRunsPerCollection)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs since")
	}

	snap.PipelineTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunCompleted:
			snap.PipelineCompleted++
		case model.RunFailed:
			snap.PipelineFailed++
		default:
			snap.PipelineInProgress++
		}
	}

	if finished := snap.PipelineCompleted + snap.PipelineFailed; finished > 0 {
		snap.PipelineFailRate = float64(snap.PipelineFailed) / float64(finished)
	}

	if c.breakers != nil {
		states := c.breakers.States()
		snap.ProviderBreakerStates = make(map[string]string, len(states))
		for name, state := range states {
			snap.ProviderBreakerStates[name] = state.String()
		}
	}

	return snap, nil
}

var _ runLister = store.Store(nil)
