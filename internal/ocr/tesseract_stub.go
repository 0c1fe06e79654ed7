//go:build !tesseract

package ocr

import "context"

// TesseractService is a placeholder used when the binary is built without
// the "tesseract" tag. Every call fails with ReasonUnavailable so a Cascade
// moves on to the next engine.
type TesseractService struct{}

// NewTesseractService returns the unavailable placeholder engine.
func NewTesseractService(languages []string) (*TesseractService, error) {
	return &TesseractService{}, nil
}

// ExtractTextFromImage always fails with ErrUnavailable.
func (t *TesseractService) ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error) {
	return nil, NewOCRError("TesseractService.ExtractTextFromImage", ReasonUnavailable, ErrUnavailable, "built without tesseract support")
}
