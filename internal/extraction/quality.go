package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"medreport/pkg/models"
)

// Quality gate thresholds.
const (
	MinTextLength        = 50
	MinConfidence        = 0.7
	MaxDigitDensity      = 0.3
	NumericMinConfidence = 0.8
)

// QualityReport lists signal quality problems of an extraction, each with a
// matching suggestion at the same index.
type QualityReport struct {
	IsValid     bool     `json:"isValid"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

func (q *QualityReport) add(issue, suggestion string) {
	q.Issues = append(q.Issues, issue)
	q.Suggestions = append(q.Suggestions, suggestion)
}

// ValidateExtractedText checks the raw quality of an extraction result.
// This is independent of the medical content validators.
func ValidateExtractedText(result *models.ExtractedText) QualityReport {
	report := QualityReport{Issues: []string{}, Suggestions: []string{}}
	if result == nil {
		report.add("No extraction result", "Upload the report again")
		return report
	}

	length := utf8.RuneCountInString(strings.TrimSpace(result.Text))
	if length < MinTextLength {
		report.add(
			"Extracted text is too short",
			"Make sure the whole report is visible and the photo is in focus",
		)
	}
	if result.Confidence < MinConfidence {
		report.add(
			"Low text recognition confidence",
			"Retake the photo in better lighting or upload the original PDF",
		)
	}
	if !result.Metadata.IsValidMedical {
		report.add(
			"Document does not look like a medical report",
			"Check that the uploaded file is a medical report",
		)
	}
	if digitDensity(result.Text) > MaxDigitDensity && result.Confidence < NumericMinConfidence {
		report.add(
			"Numeric values may have been misread",
			"Verify lab values against the original document",
		)
	}

	report.IsValid = len(report.Issues) == 0
	return report
}

// Stats summarizes an extraction for diagnostics.
type Stats struct {
	Characters int                     `json:"characters"`
	Words      int                     `json:"words"`
	Lines      int                     `json:"lines"`
	Confidence float64                 `json:"confidence"`
	Method     models.ExtractionMethod `json:"method"`
}

// GetExtractionStats counts characters, words and lines of the extracted text.
func GetExtractionStats(result *models.ExtractedText) Stats {
	if result == nil {
		return Stats{}
	}
	stats := Stats{
		Characters: utf8.RuneCountInString(result.Text),
		Words:      len(strings.Fields(result.Text)),
		Confidence: result.Confidence,
		Method:     result.ExtractionMethod,
	}
	if result.Text != "" {
		stats.Lines = strings.Count(result.Text, "\n") + 1
	}
	return stats
}

// digitDensity is the share of digits among all characters.
func digitDensity(text string) float64 {
	total, digits := 0, 0
	for _, r := range text {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(digits) / float64(total)
}
