// Package store implements the Persistence Adapter: the discovery
// pipeline's only path to durable state, backed by Postgres in production
// and SQLite for local development.
package store

import (
	"context"
	"time"

	"github.com/sells-group/competitor-intel/internal/model"
)

// CompetitorFilter specifies criteria for listing persisted competitors.
type CompetitorFilter struct {
	OrganizationID   string
	ProjectID        string
	SearchRunID      string
	Region           string // matched against the owning run's Regions
	Country          string
	Industry         string
	ValidationStatus model.ValidationStatus
	Limit            int
	Offset           int
}

// Store defines the persistence interface for the discovery pipeline.
// InsertCompetitors is idempotent by the unique key named in its doc comment.
// Errors from the database calls themselves are kinded via model.DomainError
// so callers can branch on not_found/conflict/validation/transient without
// string-matching messages; JSON encoding, list-row scanning and row
// iteration errors are returned as plain wrapped errors with no kind.
type Store interface {
	// CreateRun inserts a new run in RunPending status.
	CreateRun(ctx context.Context, projectID, userID string, keywords, regions []string) (*model.DiscoveryRun, error)

	// UpdateRunStatus enforces model.CanTransition and, for completed/failed,
	// also stamps CompletedAt. resultsCount and errMsg are optional.
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, resultsCount *int, errMsg *string) error

	GetRun(ctx context.Context, runID string) (*model.DiscoveryRun, error)
	ListRuns(ctx context.Context, projectID string) ([]model.DiscoveryRun, error)

	// ListRunsSince returns runs across all projects created at or after
	// since, for platform-wide health metrics.
	ListRunsSince(ctx context.Context, since time.Time, limit int) ([]model.DiscoveryRun, error)

	// InsertCompetitors is unique on (organization_id, normalized domain(website));
	// conflicting rows are skipped, not updated. Returns the ids of rows actually inserted.
	InsertCompetitors(ctx context.Context, orgID, runID string, candidates []model.Candidate) ([]string, error)

	FindCompetitor(ctx context.Context, id string) (*model.Competitor, error)
	ListCompetitors(ctx context.Context, filter CompetitorFilter) ([]model.Competitor, error)

	// UpdateCompetitorValidation requires status to be approved or rejected.
	UpdateCompetitorValidation(ctx context.Context, id string, status model.ValidationStatus, validatorID string) error

	// UpdateCompetitorEnrichment replaces the stored enriched payload with
	// patch.Enriched and stamps its EnrichmentDate; a patch whose Enriched is
	// nil is a no-op.
	UpdateCompetitorEnrichment(ctx context.Context, id string, patch model.CompetitorPatch) error

	// ExistingWebsites returns the organization's persisted website values,
	// for the deduplicator's cross-tenant-corpus stage.
	ExistingWebsites(ctx context.Context, orgID string) ([]string, error)

	// MatchCompetitorsByEmbedding returns candidates with cosine similarity
	// above threshold. Backends without vector support return an empty
	// slice, never an error — semantic dedup is advisory.
	MatchCompetitorsByEmbedding(ctx context.Context, orgID string, vector []float64, threshold float64, limit int) ([]model.Competitor, error)

	Migrate(ctx context.Context) error
	Close() error
}
