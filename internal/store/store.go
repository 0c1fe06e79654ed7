// Package store persists reports and everything the pipeline derives from
// them. Analysis and visualization rows are unique per report and written
// with upserts, image rows are appended.
package store

import (
	"context"
	"errors"

	"medreport/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the record store used by the pipeline.
type Store interface {
	// SaveReport inserts or replaces a base report record. On replace, an
	// empty UserID or ReportType keeps the stored value.
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, reportID string) (*models.Report, error)
	UpdateReportStatus(ctx context.Context, reportID, status string) error

	// UpsertAnalysis writes the analysis of a report and returns the row id.
	// Repeated calls for one report update the same row.
	UpsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) (string, error)
	// UpsertVisualization writes the chart data of a report and returns the row id.
	UpsertVisualization(ctx context.Context, rec *models.VisualizationRecord) (string, error)
	// InsertImage appends an illustration and returns the new row id.
	InsertImage(ctx context.Context, rec *models.ImageRecord) (string, error)

	GetAnalysis(ctx context.Context, reportID string) (*models.AnalysisRecord, error)
	GetVisualization(ctx context.Context, reportID string) (*models.VisualizationRecord, error)
	ListImages(ctx context.Context, reportID string) ([]models.ImageRecord, error)

	Close() error
}
