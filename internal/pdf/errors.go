package pdf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPDF is returned when the data cannot be opened as a PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrExtractionFailed is returned when neither the text layer nor OCR produced a result.
	ErrExtractionFailed = errors.New("PDF text extraction failed")

	// ErrPDFTooLarge is returned when the document exceeds the configured size limit.
	ErrPDFTooLarge = errors.New("PDF file size exceeds the maximum limit")
)

// PDFError wraps errors with the failing operation and a short reason.
type PDFError struct {
	Op      string
	Reason  string
	Err     error
	Details string
}

// Error implements the error interface.
func (e *PDFError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pdf: %s failed (%s): %s: %v", e.Op, e.Reason, e.Details, e.Err)
	}
	return fmt.Sprintf("pdf: %s failed (%s): %v", e.Op, e.Reason, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PDFError) Unwrap() error {
	return e.Err
}

// NewPDFError creates a new PDFError.
func NewPDFError(op, reason string, err error, details string) *PDFError {
	return &PDFError{Op: op, Reason: reason, Err: err, Details: details}
}
