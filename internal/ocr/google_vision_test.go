package ocr

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAnnotator struct {
	resp *visionpb.AnnotateImageResponse
	err  error
	req  *visionpb.BatchAnnotateImagesRequest
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{f.resp},
	}, nil
}

func word(text string, x, y int32) *visionpb.EntityAnnotation {
	return &visionpb.EntityAnnotation{
		Description: text,
		BoundingPoly: &visionpb.BoundingPoly{
			Vertices: []*visionpb.Vertex{{X: x, Y: y}, {X: x + 10, Y: y}},
		},
	}
}

func TestVisionService_PrefersFullTextAnnotation(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text: "Findings: normal\nImpression: none",
			Pages: []*visionpb.Page{
				{Confidence: 0.9, Property: &visionpb.TextAnnotation_TextProperty{
					DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{{LanguageCode: "en"}},
				}},
				{Confidence: 0.7},
			},
		},
		TextAnnotations: []*visionpb.EntityAnnotation{
			{Description: "Findings: normal Impression: none", Score: 0.5},
			word("Findings:", 1, 2),
			word("normal", 20, 2),
		},
	}}

	svc := NewVisionServiceWithClient(fake, []string{"en", "de"})
	result, err := svc.ExtractTextFromImage(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "Findings: normal\nImpression: none", result.Text)
	assert.InDelta(t, 0.8, result.Confidence, 1e-6)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, "vision", result.Engine)
	require.Len(t, result.BoundingBoxes, 2)
	assert.Equal(t, "normal", result.BoundingBoxes[1].Text)
	assert.Equal(t, []Vertex{{X: 20, Y: 2}, {X: 30, Y: 2}}, result.BoundingBoxes[1].Vertices)

	require.Len(t, fake.req.GetRequests(), 1)
	sent := fake.req.GetRequests()[0]
	assert.Equal(t, []byte("jpeg-bytes"), sent.GetImage().GetContent())
	assert.Equal(t, []string{"en", "de"}, sent.GetImageContext().GetLanguageHints())
	var features []visionpb.Feature_Type
	for _, f := range sent.GetFeatures() {
		features = append(features, f.GetType())
	}
	assert.ElementsMatch(t, []visionpb.Feature_Type{
		visionpb.Feature_TEXT_DETECTION,
		visionpb.Feature_DOCUMENT_TEXT_DETECTION,
	}, features)
}

func TestVisionService_FlatAnnotationConfidence(t *testing.T) {
	tests := []struct {
		name  string
		score float32
		want  float64
	}{
		{name: "missing score uses default", score: 0, want: DefaultFlatConfidence},
		{name: "provided score", score: 0.95, want: 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
				TextAnnotations: []*visionpb.EntityAnnotation{
					{Description: "Hemoglobin 13.5 g/dL", Score: tt.score, Locale: "en"},
					word("Hemoglobin", 0, 0),
				},
			}}
			result, err := NewVisionServiceWithClient(fake, nil).ExtractTextFromImage(context.Background(), []byte{1})
			require.NoError(t, err)
			assert.Equal(t, "Hemoglobin 13.5 g/dL", result.Text)
			assert.InDelta(t, tt.want, result.Confidence, 1e-6)
			assert.Len(t, result.BoundingBoxes, 1)
		})
	}
}

func TestVisionService_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fake   *fakeAnnotator
		image  []byte
		reason Reason
		target error
	}{
		{
			name:   "blank text",
			fake:   &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{TextAnnotations: []*visionpb.EntityAnnotation{{Description: "  \n "}}}},
			image:  []byte{1},
			reason: ReasonNoText,
			target: ErrNoText,
		},
		{
			name:   "no annotations",
			fake:   &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{}},
			image:  []byte{1},
			reason: ReasonNoText,
			target: ErrNoText,
		},
		{
			name:   "empty image",
			fake:   &fakeAnnotator{},
			image:  nil,
			reason: ReasonInvalidInput,
			target: ErrInvalidImage,
		},
		{
			name:   "quota",
			fake:   &fakeAnnotator{err: status.Error(codes.ResourceExhausted, "quota exceeded")},
			image:  []byte{1},
			reason: ReasonQuota,
			target: ErrQuota,
		},
		{
			name:   "unauthenticated",
			fake:   &fakeAnnotator{err: status.Error(codes.Unauthenticated, "bad token")},
			image:  []byte{1},
			reason: ReasonAuth,
			target: ErrAuth,
		},
		{
			name:   "unavailable backend",
			fake:   &fakeAnnotator{err: status.Error(codes.Unavailable, "connection reset")},
			image:  []byte{1},
			reason: ReasonNetwork,
			target: ErrNetwork,
		},
		{
			name:   "deadline",
			fake:   &fakeAnnotator{err: context.DeadlineExceeded},
			image:  []byte{1},
			reason: ReasonNetwork,
			target: context.DeadlineExceeded,
		},
		{
			name: "per image error",
			fake: &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
				Error: &rpcstatus.Status{Code: int32(codes.PermissionDenied), Message: "Vision API disabled"},
			}},
			image:  []byte{1},
			reason: ReasonAuth,
			target: ErrAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVisionServiceWithClient(tt.fake, nil).ExtractTextFromImage(context.Background(), tt.image)
			require.Error(t, err)

			var ocrErr *OCRError
			require.True(t, errors.As(err, &ocrErr))
			assert.Equal(t, tt.reason, ocrErr.Reason)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}
