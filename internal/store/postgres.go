package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/db"
	"github.com/sells-group/competitor-intel/internal/dedup"
	"github.com/sells-group/competitor-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO discovery_runs (id, project_id, creator_id, status, keywords, regions, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_run_status": `UPDATE discovery_runs SET status = $1, results_count = COALESCE($2, results_count), error_message = COALESCE($3, error_message), completed_at = $4 WHERE id = $5`,
	"get_run":           `SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE id = $1`,
	"get_competitor":    `SELECT id, organization_id, search_run_id, name, website, description, industry, country, score, enriched, validation_status, validated_by, validated_at, created_at, updated_at FROM competitors WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access (e.g. the cost attribution collector).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS discovery_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id    TEXT NOT NULL,
	creator_id    TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	keywords      JSONB NOT NULL DEFAULT '[]',
	regions       JSONB NOT NULL DEFAULT '[]',
	results_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_project_id ON discovery_runs(project_id);
CREATE INDEX IF NOT EXISTS idx_discovery_runs_status ON discovery_runs(status);

CREATE TABLE IF NOT EXISTS competitors (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	organization_id    TEXT NOT NULL,
	search_run_id      TEXT NOT NULL,
	name               TEXT NOT NULL,
	website             TEXT NOT NULL,
	normalized_domain  TEXT NOT NULL,
	description        TEXT,
	industry           TEXT,
	country            TEXT,
	score              INTEGER NOT NULL DEFAULT 0,
	enriched           JSONB,
	embedding          JSONB,
	validation_status  TEXT NOT NULL DEFAULT '',
	validated_by       TEXT,
	validated_at       TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization_id, normalized_domain)
);

CREATE INDEX IF NOT EXISTS idx_competitors_org_id ON competitors(organization_id);
CREATE INDEX IF NOT EXISTS idx_competitors_search_run_id ON competitors(search_run_id);
CREATE INDEX IF NOT EXISTS idx_competitors_validation_status ON competitors(validation_status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, projectID, userID string, keywords, regions []string) (*model.DiscoveryRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal keywords")
	}
	regionsJSON, err := json.Marshal(regions)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal regions")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO discovery_runs (id, project_id, creator_id, status, keywords, regions, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, projectID, userID, string(model.RunPending), keywordsJSON, regionsJSON, now,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: insert run", err)
	}

	return &model.DiscoveryRun{
		ID:        id,
		ProjectID: projectID,
		CreatorID: userID,
		Status:    model.RunPending,
		Keywords:  keywords,
		Regions:   regions,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, resultsCount *int, errMsg *string) error {
	current, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if !model.CanTransition(current.Status, status) {
		return model.NewError(model.KindConflict, fmt.Sprintf("postgres: invalid run transition %s -> %s", current.Status, status), nil)
	}

	var completedAt *time.Time
	if status == model.RunCompleted || status == model.RunFailed {
		now := time.Now().UTC()
		completedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_runs SET status = $1, results_count = COALESCE($2, results_count), error_message = COALESCE($3, error_message), completed_at = $4 WHERE id = $5`,
		string(status), resultsCount, errMsg, completedAt, runID,
	)
	if err != nil {
		return model.NewError(model.KindPersistenceTransient, fmt.Sprintf("postgres: update run status %s", runID), err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewError(model.KindNotFound, fmt.Sprintf("postgres: run not found %s", runID), nil)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.DiscoveryRun, error) {
	var r model.DiscoveryRun
	var keywordsJSON, regionsJSON []byte
	var errMsg *string
	var completedAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.ProjectID, &r.CreatorID, &r.Status, &keywordsJSON, &regionsJSON, &r.ResultsCount, &errMsg, &r.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewError(model.KindNotFound, fmt.Sprintf("postgres: run not found %s", runID), nil)
		}
		return nil, model.NewError(model.KindPersistenceTransient, fmt.Sprintf("postgres: get run %s", runID), err)
	}
	if errMsg != nil {
		r.ErrorMessage = *errMsg
	}
	r.CompletedAt = completedAt
	if err := json.Unmarshal(keywordsJSON, &r.Keywords); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal keywords")
	}
	if err := json.Unmarshal(regionsJSON, &r.Regions); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal regions")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, projectID string) ([]model.DiscoveryRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: list runs", err)
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		var r model.DiscoveryRun
		var keywordsJSON, regionsJSON []byte
		var errMsg *string
		var completedAt *time.Time

		if err := rows.Scan(&r.ID, &r.ProjectID, &r.CreatorID, &r.Status, &keywordsJSON, &regionsJSON, &r.ResultsCount, &errMsg, &r.CreatedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.ErrorMessage = *errMsg
		}
		r.CompletedAt = completedAt
		if err := json.Unmarshal(keywordsJSON, &r.Keywords); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keywords")
		}
		if err := json.Unmarshal(regionsJSON, &r.Regions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal regions")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// ListRunsSince returns runs created at or after since, across all projects,
// newest first, capped at limit. Used for platform-wide health metrics
// rather than any one project's dashboard.
func (s *PostgresStore) ListRunsSince(ctx context.Context, since time.Time, limit int) ([]model.DiscoveryRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at
		 FROM discovery_runs WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: list runs since", err)
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		var r model.DiscoveryRun
		var keywordsJSON, regionsJSON []byte
		var errMsg *string
		var completedAt *time.Time

		if err := rows.Scan(&r.ID, &r.ProjectID, &r.CreatorID, &r.Status, &keywordsJSON, &regionsJSON, &r.ResultsCount, &errMsg, &r.CreatedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.ErrorMessage = *errMsg
		}
		r.CompletedAt = completedAt
		if err := json.Unmarshal(keywordsJSON, &r.Keywords); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keywords")
		}
		if err := json.Unmarshal(regionsJSON, &r.Regions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal regions")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs since iterate")
}

// InsertCompetitors bulk-loads candidates via a temp-table COPY, skipping
// rows that conflict on (organization_id, normalized_domain) rather than
// overwriting an existing competitor. Returns the ids actually inserted.
func (s *PostgresStore) InsertCompetitors(ctx context.Context, orgID, runID string, candidates []model.Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	pool, ok := s.pool.(*pgxpool.Pool)
	if !ok {
		return nil, eris.New("postgres: InsertCompetitors requires a live *pgxpool.Pool")
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(candidates))
	rows := make([][]any, 0, len(candidates))
	for _, c := range candidates {
		id := uuid.New().String()
		ids = append(ids, id)

		var enrichedJSON []byte
		var err error
		if c.Enriched != nil {
			enrichedJSON, err = json.Marshal(c.Enriched)
			if err != nil {
				return nil, eris.Wrap(err, "postgres: marshal enriched competitor")
			}
		}

		domain := c.NormalizedHost
		if domain == "" {
			domain = dedup.NormalizeDomain(c.Basic.Website)
		}

		var embeddingJSON []byte
		if len(c.Embedding) > 0 {
			embeddingJSON, err = json.Marshal(c.Embedding)
			if err != nil {
				return nil, eris.Wrap(err, "postgres: marshal embedding")
			}
		}

		rows = append(rows, []any{
			id, orgID, runID, c.Basic.Name, c.Basic.Website, domain,
			c.Basic.Description, c.Basic.Industry, c.Basic.Country, c.Score,
			enrichedJSON, embeddingJSON, string(model.ValidationPending), now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table: "competitors",
		Columns: []string{
			"id", "organization_id", "search_run_id", "name", "website", "normalized_domain",
			"description", "industry", "country", "score",
			"enriched", "embedding", "validation_status", "created_at", "updated_at",
		},
		ConflictKeys:        []string{"organization_id", "normalized_domain"},
		OnConflictDoNothing: true,
	}, rows)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: insert competitors", err)
	}
	if n == 0 {
		return nil, nil
	}

	// n rows were affected, but DO NOTHING conflicts can skip any subset of
	// candidates, so ids[:n] does not generally name the rows that landed.
	// Every id here was freshly generated, so a row now existing under one
	// of them is unambiguous proof that candidate was the one inserted.
	actual, err := pool.Query(ctx, `SELECT id FROM competitors WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: verify inserted competitors", err)
	}
	defer actual.Close()

	inserted := make(map[string]bool, n)
	for actual.Next() {
		var id string
		if err := actual.Scan(&id); err != nil {
			return nil, model.NewError(model.KindPersistenceTransient, "postgres: scan inserted competitor id", err)
		}
		inserted[id] = true
	}
	if err := actual.Err(); err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: iterate inserted competitor ids", err)
	}

	out := make([]string, 0, n)
	for _, id := range ids {
		if inserted[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *PostgresStore) FindCompetitor(ctx context.Context, id string) (*model.Competitor, error) {
	c, err := s.scanCompetitor(s.pool.QueryRow(ctx,
		`SELECT id, organization_id, search_run_id, name, website, description, industry, country, score, enriched, validation_status, validated_by, validated_at, created_at, updated_at FROM competitors WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewError(model.KindNotFound, fmt.Sprintf("postgres: competitor not found %s", id), nil)
		}
		return nil, model.NewError(model.KindPersistenceTransient, fmt.Sprintf("postgres: find competitor %s", id), err)
	}
	return c, nil
}

func (s *PostgresStore) ListCompetitors(ctx context.Context, filter CompetitorFilter) ([]model.Competitor, error) {
	query := `SELECT id, organization_id, search_run_id, name, website, description, industry, country, score, enriched, validation_status, validated_by, validated_at, created_at, updated_at FROM competitors WHERE organization_id = $1`
	args := []any{filter.OrganizationID}
	argIdx := 2

	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND search_run_id IN (SELECT id FROM discovery_runs WHERE project_id = $%d)`, argIdx)
		args = append(args, filter.ProjectID)
		argIdx++
	}
	if filter.SearchRunID != "" {
		query += fmt.Sprintf(` AND search_run_id = $%d`, argIdx)
		args = append(args, filter.SearchRunID)
		argIdx++
	}
	if filter.Region != "" {
		query += fmt.Sprintf(` AND search_run_id IN (SELECT id FROM discovery_runs WHERE regions @> ARRAY[$%d]::text[])`, argIdx)
		args = append(args, filter.Region)
		argIdx++
	}
	if filter.Country != "" {
		query += fmt.Sprintf(` AND country = $%d`, argIdx)
		args = append(args, filter.Country)
		argIdx++
	}
	if filter.Industry != "" {
		query += fmt.Sprintf(` AND industry = $%d`, argIdx)
		args = append(args, filter.Industry)
		argIdx++
	}
	if filter.ValidationStatus != "" {
		query += fmt.Sprintf(` AND validation_status = $%d`, argIdx)
		args = append(args, string(filter.ValidationStatus))
		argIdx++
	}
	query += ` ORDER BY score DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: list competitors", err)
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		c, err := s.scanCompetitorFromRows(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list competitors iterate")
}

func (s *PostgresStore) UpdateCompetitorValidation(ctx context.Context, id string, status model.ValidationStatus, validatorID string) error {
	if status != model.ValidationApproved && status != model.ValidationRejected {
		return model.NewError(model.KindValidation, fmt.Sprintf("postgres: invalid validation status %q", status), nil)
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE competitors SET validation_status = $1, validated_by = $2, validated_at = $3, updated_at = $3 WHERE id = $4`,
		string(status), validatorID, now, id,
	)
	if err != nil {
		return model.NewError(model.KindPersistenceTransient, fmt.Sprintf("postgres: update validation %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewError(model.KindNotFound, fmt.Sprintf("postgres: competitor not found %s", id), nil)
	}
	return nil
}

func (s *PostgresStore) UpdateCompetitorEnrichment(ctx context.Context, id string, patch model.CompetitorPatch) error {
	if patch.Enriched == nil {
		return nil
	}
	patch.Enriched.EnrichmentDate = time.Now().UTC()

	enrichedJSON, err := json.Marshal(patch.Enriched)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment patch")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE competitors SET enriched = $1, updated_at = $2 WHERE id = $3`,
		enrichedJSON, patch.Enriched.EnrichmentDate, id,
	)
	if err != nil {
		return model.NewError(model.KindPersistenceTransient, fmt.Sprintf("postgres: update enrichment %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewError(model.KindNotFound, fmt.Sprintf("postgres: competitor not found %s", id), nil)
	}
	return nil
}

func (s *PostgresStore) ExistingWebsites(ctx context.Context, orgID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT website FROM competitors WHERE organization_id = $1`, orgID)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: existing websites", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, eris.Wrap(err, "postgres: scan website")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "postgres: existing websites iterate")
}

// MatchCompetitorsByEmbedding scores every embedded competitor in the
// organization by cosine similarity and returns those above threshold. The
// corpus carries no vector extension, so similarity is computed in process
// rather than pushed down to SQL; this is fine at per-organization scale.
func (s *PostgresStore) MatchCompetitorsByEmbedding(ctx context.Context, orgID string, vector []float64, threshold float64, limit int) ([]model.Competitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, search_run_id, name, website, description, industry, country, score, enriched, validation_status, validated_by, validated_at, created_at, updated_at, embedding
		 FROM competitors WHERE organization_id = $1 AND embedding IS NOT NULL`,
		orgID,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "postgres: match by embedding", err)
	}
	defer rows.Close()

	type scored struct {
		c   model.Competitor
		sim float64
	}
	var candidates []scored
	for rows.Next() {
		c, embeddingJSON, err := s.scanCompetitorWithEmbedding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor with embedding")
		}
		if len(embeddingJSON) == 0 {
			continue
		}
		var stored []float64
		if err := json.Unmarshal(embeddingJSON, &stored); err != nil {
			continue
		}
		sim := cosineSimilarity(vector, stored)
		if sim >= threshold {
			candidates = append(candidates, scored{c: *c, sim: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: match by embedding iterate")
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]model.Competitor, len(candidates))
	for i, sc := range candidates {
		out[i] = sc.c
	}
	return out, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func (s *PostgresStore) scanCompetitor(row pgx.Row) (*model.Competitor, error) {
	var c model.Competitor
	var enrichedJSON []byte
	var validatedBy *string
	var validatedAt *time.Time

	err := row.Scan(&c.ID, &c.OrganizationID, &c.SearchRunID, &c.Name, &c.Website, &c.Description,
		&c.Industry, &c.Country, &c.Score, &enrichedJSON, &c.ValidationStatus,
		&validatedBy, &validatedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if validatedBy != nil {
		c.ValidatedBy = *validatedBy
	}
	c.ValidatedAt = validatedAt
	if len(enrichedJSON) > 0 {
		if err := json.Unmarshal(enrichedJSON, &c.Enriched); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enriched competitor")
		}
	}
	return &c, nil
}

func (s *PostgresStore) scanCompetitorFromRows(rows pgx.Rows) (*model.Competitor, error) {
	var c model.Competitor
	var enrichedJSON []byte
	var validatedBy *string
	var validatedAt *time.Time

	err := rows.Scan(&c.ID, &c.OrganizationID, &c.SearchRunID, &c.Name, &c.Website, &c.Description,
		&c.Industry, &c.Country, &c.Score, &enrichedJSON, &c.ValidationStatus,
		&validatedBy, &validatedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if validatedBy != nil {
		c.ValidatedBy = *validatedBy
	}
	c.ValidatedAt = validatedAt
	if len(enrichedJSON) > 0 {
		if err := json.Unmarshal(enrichedJSON, &c.Enriched); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enriched competitor")
		}
	}
	return &c, nil
}

func (s *PostgresStore) scanCompetitorWithEmbedding(rows pgx.Rows) (*model.Competitor, []byte, error) {
	var c model.Competitor
	var enrichedJSON, embeddingJSON []byte
	var validatedBy *string
	var validatedAt *time.Time

	err := rows.Scan(&c.ID, &c.OrganizationID, &c.SearchRunID, &c.Name, &c.Website, &c.Description,
		&c.Industry, &c.Country, &c.Score, &enrichedJSON, &c.ValidationStatus,
		&validatedBy, &validatedAt, &c.CreatedAt, &c.UpdatedAt, &embeddingJSON)
	if err != nil {
		return nil, nil, err
	}
	if validatedBy != nil {
		c.ValidatedBy = *validatedBy
	}
	c.ValidatedAt = validatedAt
	if len(enrichedJSON) > 0 {
		if err := json.Unmarshal(enrichedJSON, &c.Enriched); err != nil {
			return nil, nil, eris.Wrap(err, "postgres: unmarshal enriched competitor")
		}
	}
	return &c, embeddingJSON, nil
}
