// Package extraction turns an uploaded report file into normalized text.
//
// Images go through the OCR engine, PDFs through the PDF extractor. Both
// paths end with the same cleanup and medical content validation, so callers
// always receive a models.ExtractedText.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
	"medreport/internal/ocr"
	"medreport/internal/pdf"
	"medreport/pkg/models"
)

const mimePDF = "application/pdf"

// UnsupportedTypeError is returned for MIME types that are neither images nor PDFs.
type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s (expected image/* or application/pdf)", e.MimeType)
}

// IsSupportedMimeType reports whether mimeType can be extracted.
func IsSupportedMimeType(mimeType string) bool {
	mt := normalizeMimeType(mimeType)
	return mt == mimePDF || strings.HasPrefix(mt, "image/")
}

// Service dispatches extraction by MIME type.
type Service struct {
	loader Loader
	ocr    ocr.Service
	pdf    pdf.Extractor
	log    zerolog.Logger
}

// NewService creates an extraction service.
func NewService(loader Loader, ocrService ocr.Service, pdfExtractor pdf.Extractor) *Service {
	return &Service{
		loader: loader,
		ocr:    ocrService,
		pdf:    pdfExtractor,
		log:    logger.WithComponent("extraction"),
	}
}

// ExtractText loads fileURI and extracts its text.
//
// An explicit unsupported MIME type fails before anything is loaded. An
// empty or application/octet-stream type is resolved by sniffing the content.
func (s *Service) ExtractText(ctx context.Context, fileURI, mimeType string) (*models.ExtractedText, error) {
	const op = "ExtractText"
	start := time.Now()

	mt := normalizeMimeType(mimeType)
	sniff := mt == "" || mt == "application/octet-stream"
	if !sniff && !IsSupportedMimeType(mt) {
		return nil, &UnsupportedTypeError{MimeType: mimeType}
	}

	data, err := s.loader.Load(ctx, fileURI)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load %s: %w", op, fileURI, err)
	}

	if sniff {
		detected := mimetype.Detect(data).String()
		s.log.Debug().
			Str("declared", mimeType).
			Str("detected", detected).
			Msg("Resolved MIME type from content")
		mt = normalizeMimeType(detected)
		if !IsSupportedMimeType(mt) {
			return nil, &UnsupportedTypeError{MimeType: detected}
		}
	}

	var result *models.ExtractedText
	if mt == mimePDF {
		result, err = s.extractPDF(ctx, data)
	} else {
		result, err = s.extractImage(ctx, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("mime_type", mt).
		Str("method", string(result.ExtractionMethod)).
		Float64("confidence", result.Confidence).
		Int("text_length", len(result.Text)).
		Bool("valid_medical", result.Metadata.IsValidMedical).
		Str("detected_type", result.Metadata.DetectedType).
		Dur("duration", time.Since(start)).
		Msg("Text extraction completed")

	return result, nil
}

func (s *Service) extractImage(ctx context.Context, data []byte) (*models.ExtractedText, error) {
	res, err := s.ocr.ExtractTextFromImage(ctx, data)
	if err != nil {
		return nil, err
	}

	text := ocr.PreprocessMedicalText(res.Text)
	validation := ocr.ValidateMedicalReport(text)

	return &models.ExtractedText{
		Text:             text,
		Confidence:       clamp01(res.Confidence),
		ExtractionMethod: models.MethodOCR,
		Metadata: models.ExtractionMetadata{
			PageCount:      1,
			Language:       res.Language,
			Format:         models.FormatImage,
			DetectedType:   validation.DetectedType,
			IsValidMedical: validation.IsValid,
		},
	}, nil
}

func (s *Service) extractPDF(ctx context.Context, data []byte) (*models.ExtractedText, error) {
	res, err := s.pdf.ExtractTextFromPDF(ctx, data)
	if err != nil {
		return nil, err
	}

	text := ocr.PreprocessMedicalText(res.Text)
	validation := pdf.ValidateMedicalPDF(text)

	method := models.MethodPDFDirect
	if res.Method == pdf.MethodOCR {
		method = models.MethodPDFOCR
	}

	return &models.ExtractedText{
		Text:             text,
		Confidence:       clamp01(res.Confidence),
		ExtractionMethod: method,
		Metadata: models.ExtractionMetadata{
			PageCount:      res.PageCount,
			Format:         models.FormatPDF,
			DetectedType:   ocr.DetectReportType(text),
			IsValidMedical: validation.IsValid,
		},
	}, nil
}

func normalizeMimeType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
