package ocr

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"medreport/internal/logger"
)

// GoogleCredentials selects how Google API clients authenticate.
// Empty values fall back to Application Default Credentials.
type GoogleCredentials struct {
	JSON string // inline service account JSON (GOOGLE_CREDENTIALS)
	File string // service account file path (GOOGLE_APPLICATION_CREDENTIALS)
}

func (c GoogleCredentials) clientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	}
	return nil
}

// VisionConfig configures the Cloud Vision engine.
type VisionConfig struct {
	Credentials   GoogleCredentials
	LanguageHints []string
}

// imageAnnotator is the subset of the Vision client the engine needs.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// VisionService implements Service using Google Cloud Vision API.
type VisionService struct {
	client        imageAnnotator
	closer        func() error
	languageHints []string
	log           zerolog.Logger
}

// NewVisionService creates a Cloud Vision engine.
func NewVisionService(ctx context.Context, cfg VisionConfig) (*VisionService, error) {
	const op = "NewVisionService"

	opts := cfg.Credentials.clientOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, NewOCRError(op, ReasonAuth, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	svc := NewVisionServiceWithClient(client, cfg.LanguageHints)
	svc.closer = client.Close
	return svc, nil
}

// NewVisionServiceWithClient creates an engine around an explicit client (for testing).
func NewVisionServiceWithClient(client imageAnnotator, languageHints []string) *VisionService {
	return &VisionService{
		client:        client,
		languageHints: languageHints,
		log:           logger.WithComponent("ocr-vision"),
	}
}

// ExtractTextFromImage runs text and document text detection on one image.
func (v *VisionService) ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error) {
	const op = "VisionService.ExtractTextFromImage"

	if len(image) == 0 {
		return nil, NewOCRError(op, ReasonInvalidInput, ErrInvalidImage, "empty image")
	}
	if len(image) > MaxImageSizeBytes {
		return nil, NewOCRError(op, ReasonInvalidInput, ErrInvalidImage, fmt.Sprintf("image size: %d bytes", len(image)))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.languageHints},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, err, "Vision API call failed")
	}
	if len(resp.GetResponses()) == 0 {
		return nil, NewOCRError(op, ReasonNetwork, ErrNetwork, "no response from Vision API")
	}

	imageResp := resp.GetResponses()[0]
	if apiErr := imageResp.GetError(); apiErr != nil && apiErr.GetCode() != 0 {
		reason := reasonForCode(codes.Code(apiErr.GetCode()))
		return nil, NewOCRError(op, reason, nil, fmt.Sprintf("Vision API error: %s", apiErr.GetMessage()))
	}

	result := parseAnnotations(imageResp)
	if strings.TrimSpace(result.Text) == "" {
		return nil, NewOCRError(op, ReasonNoText, ErrNoText, "")
	}

	v.log.Debug().
		Int("text_length", len(result.Text)).
		Float64("confidence", result.Confidence).
		Int("bounding_boxes", len(result.BoundingBoxes)).
		Str("language", result.Language).
		Msg("Vision OCR completed")

	return result, nil
}

// parseAnnotations prefers the full document annotation and falls back to
// the flat text annotation list.
func parseAnnotations(resp *visionpb.AnnotateImageResponse) *Result {
	result := &Result{Engine: "vision"}

	flat := resp.GetTextAnnotations()
	if len(flat) > 1 {
		for _, ann := range flat[1:] {
			result.BoundingBoxes = append(result.BoundingBoxes, BoundingBox{
				Text:     ann.GetDescription(),
				Vertices: convertVertices(ann.GetBoundingPoly()),
			})
		}
	}

	if full := resp.GetFullTextAnnotation(); full != nil && strings.TrimSpace(full.GetText()) != "" {
		result.Text = full.GetText()
		result.Confidence = meanPageConfidence(full.GetPages())
		for _, page := range full.GetPages() {
			if langs := page.GetProperty().GetDetectedLanguages(); len(langs) > 0 {
				result.Language = langs[0].GetLanguageCode()
				break
			}
		}
		return result
	}

	if len(flat) == 0 {
		return result
	}
	result.Text = flat[0].GetDescription()
	result.Language = flat[0].GetLocale()
	result.Confidence = DefaultFlatConfidence
	if score := flat[0].GetScore(); score > 0 {
		result.Confidence = float64(score)
	}
	return result
}

func meanPageConfidence(pages []*visionpb.Page) float64 {
	if len(pages) == 0 {
		return DefaultFlatConfidence
	}
	var sum float64
	for _, page := range pages {
		sum += float64(page.GetConfidence())
	}
	return sum / float64(len(pages))
}

func convertVertices(poly *visionpb.BoundingPoly) []Vertex {
	vertices := make([]Vertex, 0, len(poly.GetVertices()))
	for _, v := range poly.GetVertices() {
		vertices = append(vertices, Vertex{X: v.GetX(), Y: v.GetY()})
	}
	return vertices
}

// Close closes the underlying Vision client.
func (v *VisionService) Close() error {
	if v.closer != nil {
		return v.closer()
	}
	return nil
}
