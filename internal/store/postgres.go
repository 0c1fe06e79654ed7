package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
	"medreport/pkg/models"
)

var _ Store = (*PostgresStore)(nil)

// foreign_key_violation
const pqForeignKeyViolation = "23503"

// PostgresStore persists records in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewPostgresStore opens a connection pool and verifies it with a ping.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStoreWithDB(db)
	s.log.Info().Msg("Connected to PostgreSQL")
	return s, nil
}

// NewPostgresStoreWithDB wraps an existing pool (for testing).
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger.WithComponent("store"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	file_uri    TEXT NOT NULL,
	mime_type   TEXT NOT NULL DEFAULT '',
	report_type TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'uploaded',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS report_analysis (
	id                TEXT PRIMARY KEY,
	report_id         TEXT NOT NULL UNIQUE REFERENCES reports(id) ON DELETE CASCADE,
	detailed_analysis TEXT NOT NULL,
	doctor_script     TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS visualization_data (
	id           TEXT PRIMARY KEY,
	report_id    TEXT NOT NULL UNIQUE REFERENCES reports(id) ON DELETE CASCADE,
	chart_data   JSONB NOT NULL DEFAULT '[]',
	metrics      JSONB NOT NULL DEFAULT '{}',
	visual_notes TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_images (
	id           TEXT PRIMARY KEY,
	report_id    TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	url          TEXT NOT NULL,
	prompt       TEXT NOT NULL,
	model        TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_images_report_id ON ai_images(report_id, created_at);
`

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.log.Info().Msg("Database schema is up to date")
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report id is required")
	}
	status := report.Status
	if status == "" {
		status = models.StatusUploaded
	}
	now := s.now()

	query := `
		INSERT INTO reports (id, user_id, file_uri, mime_type, report_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
			user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), reports.user_id),
			file_uri = EXCLUDED.file_uri,
			mime_type = EXCLUDED.mime_type,
			report_type = COALESCE(NULLIF(EXCLUDED.report_type, ''), reports.report_type),
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		report.ID, report.UserID, report.FileURI, report.MimeType, report.ReportType, status, now)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	query := `
		SELECT id, user_id, file_uri, mime_type, report_type, status, created_at, updated_at
		FROM reports WHERE id = $1
	`
	var r models.Report
	err := s.db.QueryRowContext(ctx, query, reportID).Scan(
		&r.ID, &r.UserID, &r.FileURI, &r.MimeType, &r.ReportType, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) UpdateReportStatus(ctx context.Context, reportID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1`, reportID, status, s.now())
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) (string, error) {
	query := `
		INSERT INTO report_analysis (id, report_id, detailed_analysis, doctor_script, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (report_id) DO UPDATE SET
			detailed_analysis = EXCLUDED.detailed_analysis,
			doctor_script = EXCLUDED.doctor_script,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	var id string
	err := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), rec.ReportID, rec.DetailedAnalysis, rec.DoctorScript, s.now()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert analysis: %w", mapError(err))
	}
	return id, nil
}

func (s *PostgresStore) UpsertVisualization(ctx context.Context, rec *models.VisualizationRecord) (string, error) {
	chartData, err := marshalJSON(rec.ChartData, "[]")
	if err != nil {
		return "", fmt.Errorf("failed to encode chart data: %w", err)
	}
	metrics, err := marshalJSON(rec.Metrics, "{}")
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}

	query := `
		INSERT INTO visualization_data (id, report_id, chart_data, metrics, visual_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (report_id) DO UPDATE SET
			chart_data = EXCLUDED.chart_data,
			metrics = EXCLUDED.metrics,
			visual_notes = EXCLUDED.visual_notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	var id string
	err = s.db.QueryRowContext(ctx, query,
		uuid.NewString(), rec.ReportID, chartData, metrics, rec.VisualNotes, s.now()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert visualization: %w", mapError(err))
	}
	return id, nil
}

func (s *PostgresStore) InsertImage(ctx context.Context, rec *models.ImageRecord) (string, error) {
	id := uuid.NewString()
	generatedAt := rec.GeneratedAt
	now := s.now()
	if generatedAt.IsZero() {
		generatedAt = now
	}

	query := `
		INSERT INTO ai_images (id, report_id, url, prompt, model, generated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		id, rec.ReportID, rec.URL, rec.Prompt, rec.Model, generatedAt, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert image: %w", mapError(err))
	}
	return id, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, reportID string) (*models.AnalysisRecord, error) {
	query := `
		SELECT id, report_id, detailed_analysis, doctor_script, created_at, updated_at
		FROM report_analysis WHERE report_id = $1
	`
	var r models.AnalysisRecord
	err := s.db.QueryRowContext(ctx, query, reportID).Scan(
		&r.ID, &r.ReportID, &r.DetailedAnalysis, &r.DoctorScript, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis for report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) GetVisualization(ctx context.Context, reportID string) (*models.VisualizationRecord, error) {
	query := `
		SELECT id, report_id, chart_data, metrics, visual_notes, created_at, updated_at
		FROM visualization_data WHERE report_id = $1
	`
	var (
		r                  models.VisualizationRecord
		chartData, metrics []byte
	)
	err := s.db.QueryRowContext(ctx, query, reportID).Scan(
		&r.ID, &r.ReportID, &chartData, &metrics, &r.VisualNotes, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("visualization for report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visualization: %w", err)
	}

	if len(chartData) > 0 {
		if err := json.Unmarshal(chartData, &r.ChartData); err != nil {
			return nil, fmt.Errorf("failed to decode chart data: %w", err)
		}
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListImages(ctx context.Context, reportID string) ([]models.ImageRecord, error) {
	query := `
		SELECT id, report_id, url, prompt, model, generated_at, created_at
		FROM ai_images WHERE report_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := []models.ImageRecord{}
	for rows.Next() {
		var r models.ImageRecord
		if err := rows.Scan(&r.ID, &r.ReportID, &r.URL, &r.Prompt, &r.Model, &r.GeneratedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// mapError turns a foreign key violation (missing report) into ErrNotFound.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return fmt.Errorf("%s: %w", pqErr.Message, ErrNotFound)
	}
	return err
}

func marshalJSON(v interface{}, empty string) ([]byte, error) {
	if v == nil {
		return []byte(empty), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}
