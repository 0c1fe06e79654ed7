// Package ocr extracts text from images of medical reports.
//
// Engines:
//   - VisionService: Google Cloud Vision text + document text detection
//   - DocumentAIService: Google Document AI OCR processor
//   - TesseractService: local Tesseract (requires the "tesseract" build tag)
//
// Engines are combined with Cascade, which tries each in order until one
// returns text.
//
// Required Environment Variables (Google engines):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// The package also hosts the medical text heuristics shared by the image
// and PDF paths: ValidateMedicalReport, DetectReportType and
// PreprocessMedicalText.
package ocr

import "context"

// Service defines the interface for image OCR engines.
type Service interface {
	// ExtractTextFromImage returns the text found in an encoded image (JPEG, PNG, ...).
	// Failures are returned as *OCRError.
	ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error)
}

// Result contains the text recognized in one image.
type Result struct {
	// Text is the recognized text, in reading order.
	Text string `json:"text"`

	// Confidence is the engine confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// BoundingBoxes holds word or block level detections when the engine reports them.
	BoundingBoxes []BoundingBox `json:"bounding_boxes,omitempty"`

	// Language is the dominant detected language code, if any.
	Language string `json:"language,omitempty"`

	// Engine names the engine that produced the result.
	Engine string `json:"engine"`
}

// BoundingBox is a detected text fragment with its polygon.
type BoundingBox struct {
	Text     string   `json:"text"`
	Vertices []Vertex `json:"vertices"`
}

// Vertex is a polygon corner in image pixel coordinates.
type Vertex struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// DefaultFlatConfidence is used when the flat annotation list carries no score.
const DefaultFlatConfidence = 0.8

// MaxImageSizeBytes is the largest image accepted for synchronous annotation (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024
