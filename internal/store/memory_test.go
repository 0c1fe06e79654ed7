package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/pkg/models"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.SaveReport(context.Background(), &models.Report{
		ID:         "r1",
		FileURI:    "file:///tmp/r1.pdf",
		MimeType:   "application/pdf",
		ReportType: "MRI",
	}))
	return s
}

func TestMemoryStoreSaveReportKeepsUnsetFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveReport(ctx, &models.Report{ID: "r1", UserID: "u1", FileURI: "file:///a.pdf", ReportType: "MRI"}))

	require.NoError(t, s.SaveReport(ctx, &models.Report{ID: "r1", FileURI: "file:///b.pdf"}))

	r, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, "MRI", r.ReportType)
	assert.Equal(t, "file:///b.pdf", r.FileURI)

	require.NoError(t, s.SaveReport(ctx, &models.Report{ID: "r1", FileURI: "file:///b.pdf", ReportType: "CT"}))
	r, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "CT", r.ReportType)
}

func TestMemoryStoreReport(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	r, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, r.Status)
	assert.Equal(t, "MRI", r.ReportType)

	require.NoError(t, s.UpdateReportStatus(ctx, "r1", models.StatusCompleted))
	r, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, r.Status)

	_, err = s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateReportStatus(ctx, "missing", models.StatusFailed), ErrNotFound)
}

func TestMemoryStoreUpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	first, err := s.UpsertAnalysis(ctx, &models.AnalysisRecord{
		ReportID:         "r1",
		DetailedAnalysis: "first",
		DoctorScript:     "hello",
	})
	require.NoError(t, err)

	second, err := s.UpsertAnalysis(ctx, &models.AnalysisRecord{
		ReportID:         "r1",
		DetailedAnalysis: "second",
		DoctorScript:     "hello again",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	a, err := s.GetAnalysis(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "second", a.DetailedAnalysis)

	v1, err := s.UpsertVisualization(ctx, &models.VisualizationRecord{ReportID: "r1", VisualNotes: "a"})
	require.NoError(t, err)
	v2, err := s.UpsertVisualization(ctx, &models.VisualizationRecord{
		ReportID: "r1",
		Metrics:  map[string]interface{}{"hb": 13.5},
	})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	v, err := s.GetVisualization(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 13.5, v.Metrics["hb"])
}

func TestMemoryStoreRequiresReport(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.UpsertAnalysis(ctx, &models.AnalysisRecord{ReportID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpsertVisualization(ctx, &models.VisualizationRecord{ReportID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.InsertImage(ctx, &models.ImageRecord{ReportID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetAnalysis(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVisualization(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreImagesInInsertOrder(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var ids []string
	for _, url := range []string{"https://img/1", "https://img/2", "https://img/3"} {
		id, err := s.InsertImage(ctx, &models.ImageRecord{ReportID: "r1", URL: url, Model: "dall-e-3"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	images, err := s.ListImages(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, images, 3)
	for i, img := range images {
		assert.Equal(t, ids[i], img.ID)
	}
	assert.Equal(t, "https://img/1", images[0].URL)

	empty, err := s.ListImages(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	_, err := s.UpsertAnalysis(ctx, &models.AnalysisRecord{ReportID: "r1", DetailedAnalysis: "x", DoctorScript: "y"})
	require.NoError(t, err)
	_, err = s.InsertImage(ctx, &models.ImageRecord{ReportID: "r1", URL: "u"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteReport(ctx, "r1"))

	_, err = s.GetAnalysis(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	images, err := s.ListImages(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, images)
}
