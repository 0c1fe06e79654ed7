package models

import "time"

// ExtractionMethod tags how the text of a report was obtained.
type ExtractionMethod string

const (
	MethodOCR       ExtractionMethod = "ocr"        // Image run through an OCR engine
	MethodPDFDirect ExtractionMethod = "pdf-direct" // Embedded PDF text layer
	MethodPDFOCR    ExtractionMethod = "pdf-ocr"    // Rendered PDF pages run through OCR
)

// Valid reports whether m is one of the known extraction methods.
func (m ExtractionMethod) Valid() bool {
	switch m {
	case MethodOCR, MethodPDFDirect, MethodPDFOCR:
		return true
	}
	return false
}

// DocumentFormat is the source format of an uploaded report.
type DocumentFormat string

const (
	FormatImage DocumentFormat = "image"
	FormatPDF   DocumentFormat = "pdf"
)

// ExtractionMetadata describes the document a text was extracted from.
type ExtractionMetadata struct {
	PageCount      int            `json:"pageCount,omitempty"`
	Language       string         `json:"language,omitempty"`
	Format         DocumentFormat `json:"format"`
	DetectedType   string         `json:"detectedType,omitempty"` // MRI, CT, X-Ray, ...
	IsValidMedical bool           `json:"isValidMedical"`
}

// ExtractedText is the normalized output of text extraction.
// Values are treated as immutable once produced.
type ExtractedText struct {
	Text             string             `json:"text"`
	Confidence       float64            `json:"confidence"` // 0.0 to 1.0
	ExtractionMethod ExtractionMethod   `json:"extractionMethod"`
	Metadata         ExtractionMetadata `json:"metadata"`
}

// VisualizationData is the chart-ready part of an analysis.
type VisualizationData struct {
	ChartData   interface{}            `json:"chartData"`
	Metrics     map[string]interface{} `json:"metrics"`
	VisualNotes string                 `json:"visualNotes"`
}

// AnalysisResult is the structured output of the LLM analysis stage.
type AnalysisResult struct {
	DetailedAnalysis  string            `json:"detailedAnalysis"`
	VisualizationData VisualizationData `json:"visualizationData"`
	DoctorScript      string            `json:"doctorScript"`
}

// GeneratedImage is a single illustration returned by the image model.
type GeneratedImage struct {
	URL         string    `json:"url"`
	Prompt      string    `json:"prompt"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Stage names a step of the report processing pipeline.
type Stage string

const (
	StageExtraction    Stage = "extraction"
	StageAnalysis      Stage = "analysis"
	StageVisualization Stage = "visualization"
	StageImage         Stage = "image"
)

// ProcessingResult is the terminal outcome of one pipeline run.
type ProcessingResult struct {
	ReportID        string   `json:"reportId"`
	AnalysisID      string   `json:"analysisId,omitempty"`
	VisualizationID string   `json:"visualizationId,omitempty"`
	ImageIDs        []string `json:"imageIds"`
	Success         bool     `json:"success"`
	Error           string   `json:"error,omitempty"`
	FailedStage     Stage    `json:"failedStage,omitempty"`

	// Retryable marks a failure caused by a transient backend condition
	// (rate limit, outage) that a later run may not hit.
	Retryable bool `json:"retryable,omitempty"`
}

// Report status values kept on the reports table.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Report is the base record a processing run is attached to.
type Report struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	FileURI    string    `json:"fileUri"`
	MimeType   string    `json:"mimeType"`
	ReportType string    `json:"reportType"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AnalysisRecord is the persisted narrative part of an analysis (one per report).
type AnalysisRecord struct {
	ID               string    `json:"id"`
	ReportID         string    `json:"reportId"`
	DetailedAnalysis string    `json:"detailedAnalysis"`
	DoctorScript     string    `json:"doctorScript"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// VisualizationRecord is the persisted chart part of an analysis (one per report).
type VisualizationRecord struct {
	ID          string                 `json:"id"`
	ReportID    string                 `json:"reportId"`
	ChartData   interface{}            `json:"chartData"`
	Metrics     map[string]interface{} `json:"metrics"`
	VisualNotes string                 `json:"visualNotes"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// ImageRecord is a persisted illustration. A report may own any number of them.
type ImageRecord struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"reportId"`
	URL         string    `json:"url"`
	Prompt      string    `json:"prompt"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generatedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProcessedReport joins a report with everything the pipeline produced for it.
// Analysis and Visualization are nil when the corresponding stage never persisted.
type ProcessedReport struct {
	Report        Report               `json:"report"`
	Analysis      *AnalysisRecord      `json:"analysis"`
	Visualization *VisualizationRecord `json:"visualization"`
	Images        []ImageRecord        `json:"images"`
}
