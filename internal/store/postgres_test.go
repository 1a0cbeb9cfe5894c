package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_RejectsBackwardTransition(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "project_id", "creator_id", "status", "keywords", "regions",
		"results_count", "error_message", "created_at", "completed_at",
	}).AddRow("run-1", "proj-1", "user-1", "extracting", []byte(`[]`), []byte(`[]`), 0, (*string)(nil), time.Now(), (*time.Time)(nil))

	mock.ExpectQuery(`SELECT id, project_id, creator_id, status, keywords, regions, results_count, error_message, created_at, completed_at FROM discovery_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	err := s.UpdateRunStatus(context.Background(), "run-1", model.RunPending, nil, nil)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompetitorValidation_RejectsPendingStatus(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.UpdateCompetitorValidation(context.Background(), "comp-1", model.ValidationPending, "reviewer-1")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindValidation))
}

func TestPostgresStore_InsertCompetitors_EmptyReturnsNil(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	ids, err := s.InsertCompetitors(context.Background(), "org-1", "run-1", nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0}), 0.0001)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 0.0001)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
