package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/pkg/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPostgresStoreWithDB(db)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s, mock
}

func TestPostgresSaveReportKeepsUnsetFields(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), reports.user_id)")).
		WithArgs("r1", "", "file:///b.pdf", "", "", models.StatusUploaded, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SaveReport(context.Background(), &models.Report{ID: "r1", FileURI: "file:///b.pdf"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertAnalysisReturnsExistingID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO report_analysis")).
		WithArgs(sqlmock.AnyArg(), "r1", "detailed", "script", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	id, err := s.UpsertAnalysis(context.Background(), &models.AnalysisRecord{
		ReportID:         "r1",
		DetailedAnalysis: "detailed",
		DoctorScript:     "script",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertMissingReport(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO visualization_data")).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation, Message: "violates foreign key constraint"})

	_, err := s.UpsertVisualization(context.Background(), &models.VisualizationRecord{ReportID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertVisualizationEncodesJSON(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO visualization_data")).
		WithArgs(sqlmock.AnyArg(), "r1", []byte("[]"), []byte(`{"hb":13.5}`), "notes", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1"))

	id, err := s.UpsertVisualization(context.Background(), &models.VisualizationRecord{
		ReportID:    "r1",
		Metrics:     map[string]interface{}{"hb": 13.5},
		VisualNotes: "notes",
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetVisualizationDecodesJSON(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM visualization_data WHERE report_id = $1")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "report_id", "chart_data", "metrics", "visual_notes", "created_at", "updated_at",
		}).AddRow("v1", "r1", []byte(`[{"label":"HbA1c","value":6.1}]`), []byte(`{"hb":13.5}`), "notes", ts, ts))

	v, err := s.GetVisualization(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, 13.5, v.Metrics["hb"])
	chart, ok := v.ChartData.([]interface{})
	require.True(t, ok)
	assert.Len(t, chart, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAnalysisNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_analysis WHERE report_id = $1")).
		WithArgs("r1").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateReportStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET status")).
		WithArgs("r1", models.StatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET status")).
		WithArgs("missing", models.StatusFailed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpdateReportStatus(context.Background(), "r1", models.StatusCompleted))
	assert.ErrorIs(t, s.UpdateReportStatus(context.Background(), "missing", models.StatusFailed), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListImages(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_images WHERE report_id = $1")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "report_id", "url", "prompt", "model", "generated_at", "created_at",
		}).
			AddRow("i1", "r1", "https://img/1", "p", "dall-e-3", ts, ts).
			AddRow("i2", "r1", "https://img/2", "p", "dall-e-3", ts, ts.Add(time.Second)))

	images, err := s.ListImages(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "i1", images[0].ID)
	assert.Equal(t, "https://img/2", images[1].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS reports")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
