package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"medreport/internal/container"
	"medreport/internal/logger"
	"medreport/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [file-or-uri]",
	Short: "Run the full pipeline for one report",
	Long: `Extract, analyze and illustrate a report and persist the results.

The report record is created (or refreshed) first, so the run can be repeated
with the same --report-id: analysis and visualization rows are updated in
place and a new illustration is added. A repeated run without --type or
--user-id keeps the values stored by the earlier run.

Results are stored in PostgreSQL when DATABASE_URL is set, otherwise they
only live for the duration of the command.`,
	Example: `  medreport process mri.pdf --type MRI
  medreport process gs-export/cbc.jpg --report-id 3f1c... --json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("report-id", "", "Report id (default: new UUID)")
	processCmd.Flags().String("type", "", "Report type, e.g. MRI or Blood Test (default: detected)")
	processCmd.Flags().String("mime", "", "MIME type of the file (default: detected from content)")
	processCmd.Flags().String("user-id", "", "Owner of the report")
	processCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().Bool("json", false, "Output the processed report as JSON")
	processCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	reportID, _ := cmd.Flags().GetString("report-id")
	reportType, _ := cmd.Flags().GetString("type")
	mimeType, _ := cmd.Flags().GetString("mime")
	userID, _ := cmd.Flags().GetString("user-id")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if reportID == "" {
		reportID = uuid.NewString()
	}

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

	c, err := container.New(ctx, cfg)
	if err != nil {
		return describeError(err)
	}
	defer c.Close()

	report, err := saveReport(ctx, c.Store, &models.Report{
		ID:         reportID,
		UserID:     userID,
		FileURI:    uri,
		MimeType:   mimeType,
		ReportType: reportType,
		Status:     models.StatusUploaded,
	})
	if err != nil {
		return err
	}
	reportType = report.ReportType

	result := <-c.Pipeline.ProcessReportAsync(ctx, reportID, uri, mimeType, reportType)

	if jsonOutput {
		processed, err := c.Pipeline.GetProcessedReport(context.WithoutCancel(ctx), reportID)
		if err != nil {
			return err
		}
		if err := writeJSON(struct {
			Result models.ProcessingResult `json:"result"`
			Report *models.ProcessedReport `json:"report"`
		}{result, processed}, outputPath, log); err != nil {
			return err
		}
	} else {
		fmt.Printf("Report:        %s\n", result.ReportID)
		fmt.Printf("Success:       %t\n", result.Success)
		if result.AnalysisID != "" {
			fmt.Printf("Analysis:      %s\n", result.AnalysisID)
		}
		if result.VisualizationID != "" {
			fmt.Printf("Visualization: %s\n", result.VisualizationID)
		}
		for _, id := range result.ImageIDs {
			fmt.Printf("Image:         %s\n", id)
		}
	}

	if !result.Success {
		return fmt.Errorf("%s failed: %s", result.FailedStage, result.Error)
	}
	return nil
}
