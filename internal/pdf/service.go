// Package pdf extracts text from PDF reports.
//
// Extraction is a two step process. The embedded text layer is read first;
// when it is missing or shorter than Config.MinDirectTextLength, every page is
// rendered to JPEG and sent through an OCR engine.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/rs/zerolog"

	"medreport/internal/logger"
	"medreport/internal/ocr"
)

// Method tags the path that produced a Result.
type Method string

const (
	MethodDirect Method = "direct"
	MethodOCR    Method = "ocr"
)

// Page is the text recognized on a single page.
type Page struct {
	PageNumber int     `json:"page_number"` // 1 based
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result contains the text extracted from a PDF.
type Result struct {
	Text       string  `json:"text"`
	PageCount  int     `json:"page_count"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
	Pages      []Page  `json:"pages,omitempty"`

	// PagesSkipped counts trailing pages left out by Config.MaxOCRPages.
	PagesSkipped int `json:"pages_skipped,omitempty"`
}

// Config tunes the extractor.
type Config struct {
	MinDirectTextLength int     // trimmed characters needed to accept the text layer
	DirectConfidence    float64 // confidence reported for an accepted text layer
	DegradedConfidence  float64 // confidence for a short text layer kept after OCR failed
	RenderDPI           float64
	JPEGQuality         int
	MaxOCRPages         int   // 0 means every page
	MaxFileSize         int64 // 0 disables the check
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		MinDirectTextLength: 100,
		DirectConfidence:    0.95,
		DegradedConfidence:  0.5,
		RenderDPI:           150,
		JPEGQuality:         90,
	}
}

// Extractor is implemented by Service.
type Extractor interface {
	ExtractTextFromPDF(ctx context.Context, data []byte) (*Result, error)
}

// Service extracts PDF text with an OCR fallback.
type Service struct {
	open Opener
	ocr  ocr.Service
	cfg  Config
	log  zerolog.Logger
}

// NewService creates an extractor backed by MuPDF.
func NewService(ocrService ocr.Service, cfg Config) *Service {
	return NewServiceWithOpener(OpenFitz, ocrService, cfg)
}

// NewServiceWithOpener creates an extractor with an explicit document opener (for testing).
func NewServiceWithOpener(open Opener, ocrService ocr.Service, cfg Config) *Service {
	return &Service{
		open: open,
		ocr:  ocrService,
		cfg:  cfg,
		log:  logger.WithComponent("pdf"),
	}
}

// ExtractTextFromPDF returns the text of a PDF document.
//
// A short or empty text layer is not an error, it only triggers the OCR
// fallback. The call fails when OCR fails and the text layer is unreadable
// or empty; the OCR error stays reachable through errors.Is and errors.As.
// When a non-empty text layer was read but OCR failed, the text layer is
// returned with Config.DegradedConfidence.
func (s *Service) ExtractTextFromPDF(ctx context.Context, data []byte) (*Result, error) {
	const op = "ExtractTextFromPDF"

	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return nil, NewPDFError(op, "too_large", ErrPDFTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}

	doc, err := s.open(data)
	if err != nil {
		return nil, NewPDFError(op, "invalid_pdf", ErrInvalidPDF, err.Error())
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil {
			s.log.Warn().Err(closeErr).Msg("Failed to close PDF document")
		}
	}()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, NewPDFError(op, "invalid_pdf", ErrInvalidPDF, "document has no pages")
	}

	// 1. Direct attempt
	directText, directErr := s.extractDirect(doc)
	if directErr == nil && len([]rune(strings.TrimSpace(directText))) >= s.cfg.MinDirectTextLength {
		s.log.Info().
			Int("page_count", pageCount).
			Int("text_length", len(directText)).
			Msg("Using embedded PDF text layer")
		return &Result{
			Text:       strings.TrimSpace(directText),
			PageCount:  pageCount,
			Method:     MethodDirect,
			Confidence: s.cfg.DirectConfidence,
		}, nil
	}

	s.log.Info().
		Err(directErr).
		Int("page_count", pageCount).
		Int("text_length", len(directText)).
		Msg("Text layer missing or too short, falling back to OCR")

	// 2. OCR fallback
	result, ocrErr := s.extractWithOCR(ctx, doc, pageCount)
	if ocrErr == nil {
		return result, nil
	}

	if directErr != nil {
		return nil, NewPDFError(op, "extraction_failed", fmt.Errorf("%w: %w", ErrExtractionFailed, ocrErr),
			fmt.Sprintf("text layer: %v", directErr))
	}

	text := strings.TrimSpace(directText)
	if text == "" {
		return nil, NewPDFError(op, "extraction_failed", fmt.Errorf("%w: %w", ErrExtractionFailed, ocrErr),
			"no text layer")
	}

	s.log.Warn().
		Err(ocrErr).
		Int("text_length", len(directText)).
		Msg("OCR fallback failed, keeping short text layer")

	return &Result{
		Text:       text,
		PageCount:  pageCount,
		Method:     MethodDirect,
		Confidence: s.cfg.DegradedConfidence,
	}, nil
}

func (s *Service) extractDirect(doc Document) (string, error) {
	var text strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		pageText, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("failed to read text of page %d: %w", n+1, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(strings.TrimSpace(pageText))
	}
	return text.String(), nil
}

func (s *Service) extractWithOCR(ctx context.Context, doc Document, pageCount int) (*Result, error) {
	if s.ocr == nil {
		return nil, errors.New("no OCR engine configured")
	}

	limit := pageCount
	if s.cfg.MaxOCRPages > 0 && limit > s.cfg.MaxOCRPages {
		s.log.Warn().
			Int("page_count", pageCount).
			Int("max_pages", s.cfg.MaxOCRPages).
			Msg("Document exceeds OCR page limit, remaining pages are skipped")
		limit = s.cfg.MaxOCRPages
	}

	pages := make([]Page, 0, limit)
	texts := make([]string, 0, limit)
	var confidenceSum float64

	for n := 0; n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Render(n, s.cfg.RenderDPI)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", n+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d as JPEG: %w", n+1, err)
		}

		page := Page{PageNumber: n + 1}
		res, err := s.ocr.ExtractTextFromImage(ctx, buf.Bytes())
		switch {
		case errors.Is(err, ocr.ErrNoText):
			s.log.Debug().Int("page", n+1).Msg("No text found on page")
		case err != nil:
			return nil, fmt.Errorf("OCR of page %d failed: %w", n+1, err)
		default:
			page.Text = strings.TrimSpace(res.Text)
			page.Confidence = res.Confidence
		}

		pages = append(pages, page)
		confidenceSum += page.Confidence
		if page.Text != "" {
			texts = append(texts, page.Text)
		}
	}

	result := &Result{
		Text:         strings.Join(texts, "\n\n"),
		PageCount:    pageCount,
		Method:       MethodOCR,
		Pages:        pages,
		PagesSkipped: pageCount - limit,
	}
	if len(pages) > 0 {
		result.Confidence = confidenceSum / float64(len(pages))
	}

	s.log.Info().
		Int("pages_processed", len(pages)).
		Float64("confidence", result.Confidence).
		Int("text_length", len(result.Text)).
		Msg("OCR fallback completed")

	return result, nil
}
