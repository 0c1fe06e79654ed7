package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medreport/internal/container"
	"medreport/internal/extraction"
	"medreport/internal/logger"
	"medreport/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file-or-uri]",
	Short: "Extract text from a report photo or PDF",
	Long: `Extract the text of a medical report without analyzing it.

Images are read with the configured OCR engines (OCR_ENGINES, tried in order).
PDFs use their embedded text layer and fall back to OCR of rendered pages.
The output includes a quality check of the extracted text.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Print the text of a scanned report
  medreport extract blood-test.jpg

  # Full result with quality report as JSON
  medreport extract mri.pdf --json -o result.json

  # Remote file with an explicit type
  medreport extract https://example.com/report --mime application/pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput is the JSON output of the extract command.
type ExtractOutput struct {
	Result   *models.ExtractedText    `json:"result"`
	Quality  extraction.QualityReport `json:"quality"`
	Stats    extraction.Stats         `json:"stats"`
	Duration string                   `json:"duration"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().String("mime", "", "MIME type of the file (default: detected from content)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	mimeType, _ := cmd.Flags().GetString("mime")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	uri, err := fileURI(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(timeoutSecs, log)
	defer cancel()

	c, err := container.NewExtractionOnly(ctx, cfg)
	if err != nil {
		return describeError(err)
	}
	defer c.Close()

	start := time.Now()
	result, err := c.Extractor.ExtractText(ctx, uri, mimeType)
	if err != nil {
		log.Error().Err(err).Str("file", uri).Msg("Extraction failed")
		return describeError(err)
	}

	quality := extraction.ValidateExtractedText(result)
	stats := extraction.GetExtractionStats(result)

	if jsonOutput {
		return writeJSON(ExtractOutput{
			Result:   result,
			Quality:  quality,
			Stats:    stats,
			Duration: time.Since(start).String(),
		}, outputPath, log)
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("=== Extraction (%s) ===\n", result.ExtractionMethod))
	out.WriteString(fmt.Sprintf("Confidence: %.1f%%\n", result.Confidence*100))
	if result.Metadata.PageCount > 0 {
		out.WriteString(fmt.Sprintf("Pages: %d\n", result.Metadata.PageCount))
	}
	if result.Metadata.DetectedType != "" {
		out.WriteString(fmt.Sprintf("Detected type: %s\n", result.Metadata.DetectedType))
	}
	out.WriteString(fmt.Sprintf("Words: %d, lines: %d\n", stats.Words, stats.Lines))
	for i, issue := range quality.Issues {
		out.WriteString(fmt.Sprintf("Warning: %s. %s\n", issue, quality.Suggestions[i]))
	}
	out.WriteString("\n=== Extracted Text ===\n\n")
	out.WriteString(result.Text)
	out.WriteString("\n")

	return writeOutput([]byte(out.String()), outputPath, log)
}
