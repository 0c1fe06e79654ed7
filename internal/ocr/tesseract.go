//go:build tesseract

package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
)

// TesseractService implements Service with a local Tesseract installation.
type TesseractService struct {
	languages []string
	log       zerolog.Logger
}

// NewTesseractService creates a local Tesseract engine.
func NewTesseractService(languages []string) (*TesseractService, error) {
	return &TesseractService{
		languages: languages,
		log:       logger.WithComponent("ocr-tesseract"),
	}, nil
}

// ExtractTextFromImage runs Tesseract on one image. Word confidences are
// averaged into the result confidence.
func (t *TesseractService) ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error) {
	const op = "TesseractService.ExtractTextFromImage"

	if len(image) == 0 {
		return nil, NewOCRError(op, ReasonInvalidInput, ErrInvalidImage, "empty image")
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return nil, NewOCRError(op, ReasonUnavailable, err, "failed to set languages")
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, NewOCRError(op, ReasonInvalidInput, err, "failed to set image")
	}

	text, err := client.Text()
	if err != nil {
		return nil, NewOCRError(op, ReasonUnavailable, err, "tesseract OCR failed")
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewOCRError(op, ReasonNoText, ErrNoText, "")
	}

	result := &Result{Text: text, Confidence: DefaultFlatConfidence, Engine: "tesseract"}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		t.log.Warn().Err(err).Msg("Failed to read word boxes, using default confidence")
		return result, nil
	}
	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
		result.BoundingBoxes = append(result.BoundingBoxes, BoundingBox{
			Text: box.Word,
			Vertices: []Vertex{
				{X: int32(box.Box.Min.X), Y: int32(box.Box.Min.Y)},
				{X: int32(box.Box.Max.X), Y: int32(box.Box.Min.Y)},
				{X: int32(box.Box.Max.X), Y: int32(box.Box.Max.Y)},
				{X: int32(box.Box.Min.X), Y: int32(box.Box.Max.Y)},
			},
		})
	}
	if len(boxes) > 0 {
		result.Confidence = clamp01(sum / float64(len(boxes)) / 100)
	}

	t.log.Debug().
		Int("words", len(boxes)).
		Float64("confidence", result.Confidence).
		Msg("Tesseract OCR completed")

	return result, nil
}
