package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/internal/store"
	"medreport/pkg/models"
)

type fakeReports struct {
	reports map[string]*models.ProcessedReport
	err     error
}

func (f *fakeReports) GetProcessedReport(ctx context.Context, reportID string) (*models.ProcessedReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("GetProcessedReport: %w", store.ErrNotFound)
	}
	return r, nil
}

func (f *fakeReports) IsReportProcessed(ctx context.Context, reportID string) (bool, error) {
	r, ok := f.reports[reportID]
	return ok && r.Analysis != nil && len(r.Images) > 0, nil
}

func newTestServer(reports *fakeReports) *Server {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "medreport_pipeline_in_flight 0\n")
	})
	return New(":0", reports, metrics)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&fakeReports{}), "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(&fakeReports{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medreport_pipeline_in_flight")
}

func TestReportStatus(t *testing.T) {
	reports := &fakeReports{reports: map[string]*models.ProcessedReport{
		"r1": {
			Report:   models.Report{ID: "r1", Status: models.StatusCompleted},
			Analysis: &models.AnalysisRecord{ID: "a1", ReportID: "r1"},
			Images:   []models.ImageRecord{{ID: "i1", ReportID: "r1"}},
		},
	}}

	rec := get(t, newTestServer(reports), "/api/v1/reports/r1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Processed)
	require.NotNil(t, body.Report)
	assert.Equal(t, "a1", body.Report.Analysis.ID)
}

func TestReportStatusNotFound(t *testing.T) {
	rec := get(t, newTestServer(&fakeReports{}), "/api/v1/reports/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportStatusStoreError(t *testing.T) {
	rec := get(t, newTestServer(&fakeReports{err: errors.New("pq: timeout")}), "/api/v1/reports/r1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
