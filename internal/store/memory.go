package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"medreport/pkg/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory. Child records require an
// existing report, mirroring the foreign keys of the Postgres schema.
type MemoryStore struct {
	mu             sync.RWMutex
	reports        map[string]models.Report
	analyses       map[string]models.AnalysisRecord      // by report id
	visualizations map[string]models.VisualizationRecord // by report id
	images         map[string][]models.ImageRecord       // by report id
	now            func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:        make(map[string]models.Report),
		analyses:       make(map[string]models.AnalysisRecord),
		visualizations: make(map[string]models.VisualizationRecord),
		images:         make(map[string][]models.ImageRecord),
		now:            time.Now,
	}
}

func (m *MemoryStore) SaveReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := *report
	if existing, ok := m.reports[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
		if rec.UserID == "" {
			rec.UserID = existing.UserID
		}
		if rec.ReportType == "" {
			rec.ReportType = existing.ReportType
		}
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.Status == "" {
		rec.Status = models.StatusUploaded
	}
	rec.UpdatedAt = now
	m.reports[rec.ID] = rec
	return nil
}

func (m *MemoryStore) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return &rec, nil
}

func (m *MemoryStore) UpdateReportStatus(ctx context.Context, reportID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reports[reportID]
	if !ok {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	rec.Status = status
	rec.UpdatedAt = m.now()
	m.reports[reportID] = rec
	return nil
}

func (m *MemoryStore) UpsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireReport(rec.ReportID); err != nil {
		return "", fmt.Errorf("failed to upsert analysis: %w", err)
	}

	now := m.now()
	row := *rec
	if existing, ok := m.analyses[rec.ReportID]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.ID = uuid.NewString()
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	m.analyses[rec.ReportID] = row
	return row.ID, nil
}

func (m *MemoryStore) UpsertVisualization(ctx context.Context, rec *models.VisualizationRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireReport(rec.ReportID); err != nil {
		return "", fmt.Errorf("failed to upsert visualization: %w", err)
	}

	now := m.now()
	row := *rec
	if existing, ok := m.visualizations[rec.ReportID]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.ID = uuid.NewString()
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	m.visualizations[rec.ReportID] = row
	return row.ID, nil
}

func (m *MemoryStore) InsertImage(ctx context.Context, rec *models.ImageRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireReport(rec.ReportID); err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}

	row := *rec
	row.ID = uuid.NewString()
	row.CreatedAt = m.now()
	m.images[rec.ReportID] = append(m.images[rec.ReportID], row)
	return row.ID, nil
}

func (m *MemoryStore) GetAnalysis(ctx context.Context, reportID string) (*models.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.analyses[reportID]
	if !ok {
		return nil, fmt.Errorf("analysis for report %s: %w", reportID, ErrNotFound)
	}
	return &rec, nil
}

func (m *MemoryStore) GetVisualization(ctx context.Context, reportID string) (*models.VisualizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.visualizations[reportID]
	if !ok {
		return nil, fmt.Errorf("visualization for report %s: %w", reportID, ErrNotFound)
	}
	return &rec, nil
}

func (m *MemoryStore) ListImages(ctx context.Context, reportID string) ([]models.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	images := append([]models.ImageRecord(nil), m.images[reportID]...)
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CreatedAt.Before(images[j].CreatedAt)
	})
	return images, nil
}

// DeleteReport removes a report together with its child records.
func (m *MemoryStore) DeleteReport(ctx context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[reportID]; !ok {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	delete(m.reports, reportID)
	delete(m.analyses, reportID)
	delete(m.visualizations, reportID)
	delete(m.images, reportID)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// requireReport must be called with the lock held.
func (m *MemoryStore) requireReport(reportID string) error {
	if _, ok := m.reports[reportID]; !ok {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	return nil
}
