package analysis

import (
	"fmt"
	"strings"
)

const maxReportChars = 12000

func systemPrompt() string {
	return `You are a medical report interpreter. You explain medical reports to patients
in clear, calm language without making a diagnosis beyond what the report states.

You ALWAYS answer with a single JSON object containing exactly these three fields:

{
  "detailedAnalysis": "Thorough plain-language explanation of every finding, value and conclusion in the report",
  "visualizationData": {
    "chartData": [
      {"label": "measurement name", "value": 0, "unit": "unit", "normalMin": 0, "normalMax": 0, "status": "normal|low|high"}
    ],
    "metrics": {"key metric name": "value with unit"},
    "visualNotes": "Short notes on how the measurements relate to normal ranges"
  },
  "doctorScript": "A friendly script a doctor would speak to the patient when walking them through the report"
}

Rules:
- All three fields are required and must not be empty
- Use an empty chartData array when the report has no numeric measurements, but always fill metrics and visualNotes
- Return ONLY valid JSON, no markdown fences, no text before or after`
}

func buildAnalysisPrompt(text, reportType string) string {
	var prompt strings.Builder

	if reportType == "" {
		reportType = "general"
	}
	prompt.WriteString(fmt.Sprintf("Report type: %s\n\n", reportType))
	prompt.WriteString("Report text:\n")
	prompt.WriteString(truncate(text, maxReportChars))
	prompt.WriteString("\n\nAnalyze this report and return the JSON object described in your instructions.")

	return prompt.String()
}

func imagePromptSystem() string {
	return `You write prompts for an image model that creates educational medical illustrations.
Describe one clear, anatomically accurate illustration that helps a patient understand their report.
Use a calm, friendly style with soft colors. Never include text, labels, faces of real people or graphic content.
Answer with the prompt only, at most 900 characters.`
}

func buildImagePrompt(analysisText, reportType string) string {
	if reportType == "" {
		reportType = "general"
	}
	return fmt.Sprintf("Report type: %s\n\nAnalysis:\n%s", reportType, truncate(analysisText, 4000))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
