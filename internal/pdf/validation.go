package pdf

import "strings"

// Validation is the outcome of the PDF section heuristic.
type Validation struct {
	IsValid          bool     `json:"is_valid"`
	Confidence       float64  `json:"confidence"`
	DetectedSections []string `json:"detected_sections"`
}

var reportSections = []string{
	"clinical history",
	"technique",
	"findings",
	"impression",
	"recommendation",
	"patient",
	"study date",
	"radiologist",
	"physician",
}

// ValidateMedicalPDF scores text by the fraction of typical report sections it mentions.
// The text counts as a medical report when more than 30% of the sections are present.
func ValidateMedicalPDF(text string) Validation {
	lower := strings.ToLower(text)

	detected := []string{}
	for _, section := range reportSections {
		if strings.Contains(lower, section) {
			detected = append(detected, section)
		}
	}

	confidence := float64(len(detected)) / float64(len(reportSections))
	return Validation{
		IsValid:          confidence > 0.3,
		Confidence:       confidence,
		DetectedSections: detected,
	}
}
