package ocr

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"medreport/internal/logger"
)

// DocumentAIConfig configures the Document AI OCR engine.
type DocumentAIConfig struct {
	Credentials GoogleCredentials
	ProjectID   string
	Location    string // "us", "eu", ...
	ProcessorID string // an OCR processor (Document OCR)
}

func (c DocumentAIConfig) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

// DocumentAIService implements Service using a Google Document AI OCR processor.
type DocumentAIService struct {
	client documentProcessor
	closer func() error
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIService creates a Document AI engine with a regional endpoint.
func NewDocumentAIService(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIService, error) {
	const op = "NewDocumentAIService"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, NewOCRError(op, ReasonUnavailable, ErrUnavailable, "project and processor id are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	opts := cfg.Credentials.clientOptions()
	if cfg.Location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	svc := NewDocumentAIServiceWithClient(client, cfg)
	svc.closer = client.Close
	return svc, nil
}

// NewDocumentAIServiceWithClient creates an engine around an explicit client (for testing).
func NewDocumentAIServiceWithClient(client documentProcessor, cfg DocumentAIConfig) *DocumentAIService {
	return &DocumentAIService{
		client: client,
		config: cfg,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

// ExtractTextFromImage sends the image as a raw document to the OCR processor.
func (d *DocumentAIService) ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error) {
	const op = "DocumentAIService.ExtractTextFromImage"

	if len(image) == 0 {
		return nil, NewOCRError(op, ReasonInvalidInput, ErrInvalidImage, "empty image")
	}

	mimeType := mimetype.Detect(image).String()
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, NewOCRError(op, ReasonInvalidInput, ErrInvalidImage, fmt.Sprintf("unsupported content: %s", mimeType))
	}

	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.config.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return nil, WrapOCRError(op, err, "Document AI call failed")
	}

	doc := resp.GetDocument()
	if doc == nil || strings.TrimSpace(doc.GetText()) == "" {
		return nil, NewOCRError(op, ReasonNoText, ErrNoText, "")
	}

	result := &Result{
		Text:       doc.GetText(),
		Confidence: DefaultFlatConfidence,
		Engine:     "documentai",
	}

	if pages := doc.GetPages(); len(pages) > 0 {
		var sum float64
		for _, page := range pages {
			sum += float64(page.GetLayout().GetConfidence())
		}
		result.Confidence = sum / float64(len(pages))
		if langs := pages[0].GetDetectedLanguages(); len(langs) > 0 {
			result.Language = langs[0].GetLanguageCode()
		}
	}

	d.log.Debug().
		Str("mime_type", mimeType).
		Int("text_length", len(result.Text)).
		Float64("confidence", result.Confidence).
		Msg("Document AI OCR completed")

	return result, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIService) Close() error {
	if d.closer != nil {
		return d.closer()
	}
	return nil
}
