package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/competitor-intel/internal/dedup"
	"github.com/sells-group/competitor-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// development and single-node testing — no separate Postgres needed.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS discovery_runs (
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL,
	creator_id    TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	keywords      TEXT NOT NULL DEFAULT '[]',
	regions       TEXT NOT NULL DEFAULT '[]',
	results_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_project_id ON discovery_runs(project_id);
CREATE INDEX IF NOT EXISTS idx_discovery_runs_status ON discovery_runs(status);

CREATE TABLE IF NOT EXISTS competitors (
	id                TEXT PRIMARY KEY,
	organization_id   TEXT NOT NULL,
	search_run_id     TEXT NOT NULL,
	name              TEXT NOT NULL,
	website           TEXT NOT NULL,
	normalized_domain TEXT NOT NULL,
	description       TEXT,
	industry          TEXT,
	country           TEXT,
	score             INTEGER NOT NULL DEFAULT 0,
	enriched          TEXT,
	embedding         TEXT,
	validation_status TEXT NOT NULL DEFAULT '',
	validated_by      TEXT,
	validated_at      DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (organization_id, normalized_domain)
);

CREATE INDEX IF NOT EXISTS idx_competitors_org_id ON competitors(organization_id);
CREATE INDEX IF NOT EXISTS idx_competitors_search_run_id ON competitors(search_run_id);
CREATE INDEX IF NOT EXISTS idx_competitors_validation_status ON competitors(validation_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, projectID, userID string, keywords, regions []string) (*model.DiscoveryRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal keywords")
	}
	regionsJSON, err := json.Marshal(regions)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal regions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discovery_runs (id, project_id, creator_id, status, keywords, regions, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, userID, string(model.RunPending), string(keywordsJSON), string(regionsJSON), now,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: insert run", err)
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, resultsCount *int, errMsg *string) error {
	current, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if !model.CanTransition(current.Status, status) {
		return model.NewError(model.KindConflict, fmt.Sprintf("sqlite: invalid run transition %s -> %s", current.Status, status), nil)
	}

	rc := current.ResultsCount
	if resultsCount != nil {
		rc = *resultsCount
	}
	em := current.ErrorMessage
	if errMsg != nil {
		em = *errMsg
	}
	var completedAt *time.Time
	if status == model.RunCompleted || status == model.RunFailed {
		now := time.Now().UTC()
		completedAt = &now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_runs SET status = ?, results_count = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(status), rc, em, completedAt, runID,
	)
	if err != nil {
		return model.NewError(model.KindPersistenceTransient, fmt.Sprintf("sqlite: update run status %s", runID), err)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.DiscoveryRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row, runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, projectID string) ([]model.DiscoveryRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: list runs", err)
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		r, err := scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// ListRunsSince returns runs created at or after since, across all projects,
// newest first, capped at limit. Used for platform-wide health metrics
// rather than any one project's dashboard.
func (s *SQLiteStore) ListRunsSince(ctx context.Context, since time.Time, limit int) ([]model.DiscoveryRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at
		 FROM discovery_runs WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: list runs since", err)
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		r, err := scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs since iterate")
}

func (s *SQLiteStore) InsertCompetitors(ctx context.Context, orgID, runID string, candidates []model.Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: begin tx", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var ids []string
	for _, c := range candidates {
		id := uuid.New().String()

		var enrichedJSON []byte
		if c.Enriched != nil {
			enrichedJSON, err = json.Marshal(c.Enriched)
			if err != nil {
				return nil, eris.Wrap(err, "sqlite: marshal enriched competitor")
			}
		}
		var embeddingJSON []byte
		if len(c.Embedding) > 0 {
			embeddingJSON, err = json.Marshal(c.Embedding)
			if err != nil {
				return nil, eris.Wrap(err, "sqlite: marshal embedding")
			}
		}

		domain := c.NormalizedHost
		if domain == "" {
			domain = dedup.NormalizeDomain(c.Basic.Website)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO competitors (id, organization_id, search_run_id, name, website, normalized_domain, description, industry, country, score, enriched, embedding, validation_status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (organization_id, normalized_domain) DO NOTHING`,
			id, orgID, runID, c.Basic.Name, c.Basic.Website, domain,
			c.Basic.Description, c.Basic.Industry, c.Basic.Country, c.Score,
			string(enrichedJSON), string(embeddingJSON), string(model.ValidationPending), now, now,
		)
		if err != nil {
			return nil, model.NewError(model.KindPersistenceTransient, "sqlite: insert competitor", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: commit insert competitors", err)
	}
	return ids, nil
}

func (s *SQLiteStore) FindCompetitor(ctx context.Context, id string) (*model.Competitor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, search_run_id, name, website, description, industry, country, score, enriched, validation_status, validated_by, validated_at, created_at, updated_at FROM competitors WHERE id = ?`,
		id,
	)
	c, err := scanCompetitor(row)
	if err == sql.ErrNoRows {
		return nil, model.NewError(model.KindNotFound, fmt.Sprintf("sqlite: competitor not found %s", id), nil)
	}
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, fmt.Sprintf("sqlite: find competitor %s", id), err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCompetitors(ctx context.Context, filter CompetitorFilter) ([]model.Competitor, error) {
	query := `SELECT id, organization_id, search_run_id, name, website, description, industry, country, score, enriched, validation_status, validated_by, validated_at, created_at, updated_at FROM competitors WHERE organization_id = ?`
	args := []any{filter.OrganizationID}

	if filter.ProjectID != "" {
		query += ` AND search_run_id IN (SELECT id FROM discovery_runs WHERE project_id = ?)`
		args = append(args, filter.ProjectID)
	}
	if filter.SearchRunID != "" {
		query += ` AND search_run_id = ?`
		args = append(args, filter.SearchRunID)
	}
	if filter.Region != "" {
		// Regions are stored as a JSON array; substring match is good enough
		// for the dev/local backend (Postgres uses a native array containment
		// check instead).
		query += ` AND search_run_id IN (SELECT id FROM discovery_runs WHERE regions LIKE ?)`
		args = append(args, `%"`+filter.Region+`"%`)
	}
	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, filter.Country)
	}
	if filter.Industry != "" {
		query += ` AND industry = ?`
		args = append(args, filter.Industry)
	}
	if filter.ValidationStatus != "" {
		query += ` AND validation_status = ?`
		args = append(args, string(filter.ValidationStatus))
	}
	query += ` ORDER BY score DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: list competitors", err)
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan competitor")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list competitors iterate")
}

func (s *SQLiteStore) UpdateCompetitorValidation(ctx context.Context, id string, status model.ValidationStatus, validatorID string) error {
	if status != model.ValidationApproved && status != model.ValidationRejected {
		return model.NewError(model.KindValidation, fmt.Sprintf("sqlite: invalid validation status %q", status), nil)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE competitors SET validation_status = ?, validated_by = ?, validated_at = ?, updated_at = ? WHERE id = ?`,
		string(status), validatorID, now, now, id,
	)
	if err != nil {
		return model.NewError(model.KindPersistenceTransient, fmt.Sprintf("sqlite: update validation %s", id), err)
	}
	return checkRowsAffected(res, "competitor", id)
}

func (s *SQLiteStore) UpdateCompetitorEnrichment(ctx context.Context, id string, patch model.CompetitorPatch) error {
	if patch.Enriched == nil {
		return nil
	}
	patch.Enriched.EnrichmentDate = time.Now().UTC()

	enrichedJSON, err := json.Marshal(patch.Enriched)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment patch")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE competitors SET enriched = ?, updated_at = ? WHERE id = ?`,
		string(enrichedJSON), patch.Enriched.EnrichmentDate, id,
	)
	if err != nil {
		return model.NewError(model.KindPersistenceTransient, fmt.Sprintf("sqlite: update enrichment %s", id), err)
	}
	return checkRowsAffected(res, "competitor", id)
}

func (s *SQLiteStore) ExistingWebsites(ctx context.Context, orgID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT website FROM competitors WHERE organization_id = ?`, orgID)
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: existing websites", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan website")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: existing websites iterate")
}

// MatchCompetitorsByEmbedding always returns an empty result: the local
// SQLite backend has no vector-similarity support, so semantic dedup is
// simply a no-op advisory pass-through here, never an error.
func (s *SQLiteStore) MatchCompetitorsByEmbedding(ctx context.Context, orgID string, vector []float64, threshold float64, limit int) ([]model.Competitor, error) {
	return nil, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return model.NewError(model.KindNotFound, fmt.Sprintf("sqlite: %s not found: %s", entity, id), nil)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable, runID string) (*model.DiscoveryRun, error) {
	var r model.DiscoveryRun
	var keywordsJSON, regionsJSON string
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.ProjectID, &r.CreatorID, &r.Status, &keywordsJSON, &regionsJSON, &r.ResultsCount, &errMsg, &r.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, model.NewError(model.KindNotFound, fmt.Sprintf("sqlite: run not found %s", runID), nil)
	}
	if err != nil {
		return nil, model.NewError(model.KindPersistenceTransient, "sqlite: scan run", err)
	}
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(keywordsJSON), &r.Keywords); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
	}
	if err := json.Unmarshal([]byte(regionsJSON), &r.Regions); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal regions")
	}
	return &r, nil
}

func scanRunFromRows(rows *sql.Rows) (*model.DiscoveryRun, error) {
	return scanRun(rows, "")
}

func scanCompetitor(row scannable) (*model.Competitor, error) {
	var c model.Competitor
	var enrichedJSON sql.NullString
	var validatedBy sql.NullString
	var validatedAt sql.NullTime

	err := row.Scan(&c.ID, &c.OrganizationID, &c.SearchRunID, &c.Name, &c.Website, &c.Description,
		&c.Industry, &c.Country, &c.Score, &enrichedJSON, &c.ValidationStatus,
		&validatedBy, &validatedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if validatedBy.Valid {
		c.ValidatedBy = validatedBy.String
	}
	if validatedAt.Valid {
		t := validatedAt.Time
		c.ValidatedAt = &t
	}
	if enrichedJSON.Valid && enrichedJSON.String != "" {
		if err := json.Unmarshal([]byte(enrichedJSON.String), &c.Enriched); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enriched competitor")
		}
	}
	return &c, nil
}
