package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"medreport/pkg/models"
)

func goodResult(text string) *models.ExtractedText {
	return &models.ExtractedText{
		Text:             text,
		Confidence:       0.95,
		ExtractionMethod: models.MethodOCR,
		Metadata:         models.ExtractionMetadata{Format: models.FormatImage, IsValidMedical: true},
	}
}

func TestValidateExtractedText_LengthBoundary(t *testing.T) {
	short := ValidateExtractedText(goodResult(strings.Repeat("a", 49)))
	assert.False(t, short.IsValid)
	assert.Equal(t, []string{"Extracted text is too short"}, short.Issues)
	assert.Len(t, short.Suggestions, 1)

	exact := ValidateExtractedText(goodResult(strings.Repeat("a", 50)))
	assert.True(t, exact.IsValid)
	assert.Empty(t, exact.Issues)
}

func TestValidateExtractedText_Issues(t *testing.T) {
	text := strings.Repeat("findings normal ", 5)

	t.Run("low confidence", func(t *testing.T) {
		r := goodResult(text)
		r.Confidence = 0.69
		report := ValidateExtractedText(r)
		assert.False(t, report.IsValid)
		assert.Equal(t, []string{"Low text recognition confidence"}, report.Issues)
	})

	t.Run("not medical", func(t *testing.T) {
		r := goodResult(text)
		r.Metadata.IsValidMedical = false
		report := ValidateExtractedText(r)
		assert.Equal(t, []string{"Document does not look like a medical report"}, report.Issues)
	})

	t.Run("numeric heavy with middling confidence", func(t *testing.T) {
		r := goodResult("Glucose 1234567890 0987654321 1122334455 6677889900 55")
		r.Confidence = 0.75
		report := ValidateExtractedText(r)
		assert.Equal(t, []string{"Numeric values may have been misread"}, report.Issues)
		assert.Equal(t, []string{"Verify lab values against the original document"}, report.Suggestions)
	})

	t.Run("numeric heavy with high confidence", func(t *testing.T) {
		r := goodResult("Glucose 1234567890 0987654321 1122334455 6677889900 55")
		report := ValidateExtractedText(r)
		assert.True(t, report.IsValid)
	})

	t.Run("every issue has a suggestion", func(t *testing.T) {
		r := &models.ExtractedText{Text: "12", Confidence: 0.1}
		report := ValidateExtractedText(r)
		assert.Len(t, report.Issues, 4)
		assert.Len(t, report.Suggestions, 4)
	})
}

func TestGetExtractionStats(t *testing.T) {
	r := goodResult("Findings: normal.\n\nImpression: no acute disease")
	stats := GetExtractionStats(r)

	assert.Equal(t, 47, stats.Characters)
	assert.Equal(t, 6, stats.Words)
	assert.Equal(t, 3, stats.Lines)
	assert.Equal(t, 0.95, stats.Confidence)
	assert.Equal(t, models.MethodOCR, stats.Method)

	assert.Zero(t, GetExtractionStats(goodResult("")).Lines)
}

func TestGetExtractionStats_NilResult(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, Stats{}, GetExtractionStats(nil))
	})
}
