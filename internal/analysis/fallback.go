package analysis

import (
	"fmt"
	"strings"

	"medreport/pkg/models"
)

const fallbackImageTemplate = "A clean educational medical illustration for a %s report, showing the relevant anatomy in a calm and reassuring style with soft colors and no text or labels"

// FallbackAnalysis returns the fixed analysis used when the model is
// unavailable or answers with an incomplete payload. Each call returns a
// fresh value so callers may modify it.
func FallbackAnalysis() models.AnalysisResult {
	return models.AnalysisResult{
		DetailedAnalysis: "We received your report and extracted its text, but the automated analysis " +
			"is not available right now. Your results are saved and nothing has been lost. " +
			"Please review the original report with your doctor, who can explain each finding " +
			"in the context of your health history.",
		VisualizationData: models.VisualizationData{
			ChartData: []interface{}{},
			Metrics: map[string]interface{}{
				"status": "analysis unavailable",
			},
			VisualNotes: "Charts will appear here once the report has been analyzed.",
		},
		DoctorScript: "Hello, thank you for sharing your report. I was not able to prepare a full " +
			"explanation this time. Please bring the report to your next appointment and we " +
			"will go through the results together.",
	}
}

// FallbackImagePrompt returns the template illustration prompt for a report type.
func FallbackImagePrompt(reportType string) string {
	reportType = strings.TrimSpace(reportType)
	if reportType == "" {
		reportType = "medical"
	}
	return fmt.Sprintf(fallbackImageTemplate, reportType)
}
