package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/resilience"
)

type stubRunLister struct {
	runs []model.DiscoveryRun
	err  error
}

func (s *stubRunLister) ListRunsSince(_ context.Context, since time.Time, limit int) ([]model.DiscoveryRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []model.DiscoveryRun
	for _, r := range s.runs {
		if r.CreatedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(&stubRunLister{}, nil)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.PipelineTotal)
	assert.Equal(t, 0, snap.PipelineFailed)
	assert.Equal(t, 0.0, snap.PipelineFailRate)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
	assert.Empty(t, snap.ProviderBreakerStates)
}

func TestCollector_PipelineMetrics(t *testing.T) {
	now := time.Now().UTC()
	st := &stubRunLister{
		runs: []model.DiscoveryRun{
			{ID: "1", Status: model.RunCompleted, CreatedAt: now.Add(-1 * time.Hour)},
			{ID: "2", Status: model.RunCompleted, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "3", Status: model.RunFailed, CreatedAt: now.Add(-3 * time.Hour)},
			{ID: "4", Status: model.RunSearching, CreatedAt: now.Add(-30 * time.Minute)},
			// Outside lookback window — the stub itself filters these, mirroring
			// what a real ListRunsSince(since) call would already exclude.
			{ID: "5", Status: model.RunFailed, CreatedAt: now.Add(-48 * time.Hour)},
		},
	}

	c := NewCollector(st, nil)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.PipelineTotal)
	assert.Equal(t, 2, snap.PipelineCompleted)
	assert.Equal(t, 1, snap.PipelineFailed)
	assert.Equal(t, 1, snap.PipelineInProgress)
	assert.InDelta(t, 1.0/3.0, snap.PipelineFailRate, 0.001) // 1 failed / 3 finished
}

func TestCollector_FailureRateZeroFinished(t *testing.T) {
	now := time.Now().UTC()
	st := &stubRunLister{
		runs: []model.DiscoveryRun{
			{ID: "1", Status: model.RunPending, CreatedAt: now.Add(-1 * time.Hour)},
			{ID: "2", Status: model.RunExtracting, CreatedAt: now.Add(-2 * time.Hour)},
		},
	}

	c := NewCollector(st, nil)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0.0, snap.PipelineFailRate)
	assert.Equal(t, 2, snap.PipelineInProgress)
}

func TestCollector_ReportsProviderBreakerStates(t *testing.T) {
	breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	breakers.Get("firecrawl") // touch it into existence, stays closed

	c := NewCollector(&stubRunLister{}, breakers)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	require.Contains(t, snap.ProviderBreakerStates, "firecrawl")
	assert.Equal(t, "closed", snap.ProviderBreakerStates["firecrawl"])
}

func TestCollector_PropagatesStoreError(t *testing.T) {
	c := NewCollector(&stubRunLister{err: assertNeverReached{}}, nil)
	_, err := c.Collect(context.Background(), 24)
	assert.Error(t, err)
}

type assertNeverReached struct{}

func (assertNeverReached) Error() string { return "list runs failed" }
