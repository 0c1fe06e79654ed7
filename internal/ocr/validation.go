package ocr

import (
	"regexp"
	"strings"
)

// ReportValidation is the outcome of the medical content heuristic.
type ReportValidation struct {
	IsValid      bool    `json:"is_valid"`
	Confidence   float64 `json:"confidence"`
	DetectedType string  `json:"detected_type,omitempty"`
}

// MinMedicalConfidence is the exclusive threshold above which text counts as a medical report.
const MinMedicalConfidence = 0.3

var medicalKeywords = []string{
	"patient", "diagnosis", "findings", "impression", "history",
	"examination", "clinical", "report", "radiology", "laboratory",
	"result", "normal", "abnormal", "test", "scan",
	"physician", "doctor", "hospital", "medical", "treatment",
}

var structuralMarkers = []string{"findings", "impression"}

var patientMarkers = []string{"patient", "date of birth", "dob", "mrn", "medical record"}

type reportTypeRule struct {
	label   string
	pattern *regexp.Regexp
}

// reportTypes is checked in order; the first match wins.
var reportTypes = []reportTypeRule{
	{"MRI", regexp.MustCompile(`(?i)\b(mri|magnetic resonance)\b`)},
	{"CT", regexp.MustCompile(`(?i)\b(ct|computed tomography|cat scan)\b`)},
	{"X-Ray", regexp.MustCompile(`(?i)\b(x-ray|xray|radiograph)`)},
	{"Ultrasound", regexp.MustCompile(`(?i)\b(ultrasound|sonograph|doppler)`)},
	{"Blood Test", regexp.MustCompile(`(?i)\b(blood test|complete blood count|cbc|hemoglobin|haemoglobin|glucose|cholesterol|platelets?)\b`)},
	{"Pathology", regexp.MustCompile(`(?i)\b(pathology|biopsy|histolog|cytolog)`)},
}

// DetectReportType returns the first report type whose vocabulary appears in text, or "".
func DetectReportType(text string) string {
	for _, rule := range reportTypes {
		if rule.pattern.MatchString(text) {
			return rule.label
		}
	}
	return ""
}

// ValidateMedicalReport scores how much text looks like a medical report.
//
// The score starts at 0.6 times the matched keyword fraction, then adds
// 0.2 for findings/impression sections, 0.1 for patient identifying markers
// and 0.1 when a report type is detected. IsValid is set above 0.3.
func ValidateMedicalReport(text string) ReportValidation {
	lower := strings.ToLower(text)

	matched := 0
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	confidence := 0.6 * float64(matched) / float64(len(medicalKeywords))

	if containsAny(lower, structuralMarkers) {
		confidence += 0.2
	}
	if containsAny(lower, patientMarkers) {
		confidence += 0.1
	}
	detected := DetectReportType(text)
	if detected != "" {
		confidence += 0.1
	}
	confidence = clamp01(confidence)

	return ReportValidation{
		IsValid:      confidence > MinMedicalConfidence,
		Confidence:   confidence,
		DetectedType: detected,
	}
}

type unitCorrection struct {
	pattern *regexp.Regexp
	replace string
}

var unitCorrections = []unitCorrection{
	{regexp.MustCompile(`(?i)\bmg/dl\b`), "mg/dL"},
	{regexp.MustCompile(`(?i)\bg/dl\b`), "g/dL"},
	{regexp.MustCompile(`(?i)\bmmol/l\b`), "mmol/L"},
	{regexp.MustCompile(`(?i)\bmeq/l\b`), "mEq/L"},
	{regexp.MustCompile(`(?i)\biu/l\b`), "IU/L"},
	{regexp.MustCompile(`(?i)\bu/l\b`), "U/L"},
	{regexp.MustCompile(`(?i)\bng/ml\b`), "ng/mL"},
	{regexp.MustCompile(`(?i)\bpg/ml\b`), "pg/mL"},
	{regexp.MustCompile(`(?i)\bmmhg\b`), "mmHg"},
}

var sentenceBreak = regexp.MustCompile(`\. ([A-Z])`)

// PreprocessMedicalText normalizes OCR output: whitespace is collapsed,
// unit spellings are corrected and a paragraph break is placed after each
// period that is followed by a capital letter.
func PreprocessMedicalText(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	for _, fix := range unitCorrections {
		cleaned = fix.pattern.ReplaceAllString(cleaned, fix.replace)
	}
	return sentenceBreak.ReplaceAllString(cleaned, ".\n\n$1")
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
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
