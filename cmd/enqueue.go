package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"medreport/internal/container"
	"medreport/internal/jobs"
	"medreport/internal/logger"
	"medreport/pkg/models"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [file-or-uri]",
	Short: "Queue a report for background processing",
	Long: `Create the report record and queue a processing run for the worker.

The URI must be readable by the worker, so prefer http(s) URLs or paths on
shared storage. A report can only be queued once until its run finishes.`,
	Example: `  medreport enqueue https://storage.example.com/reports/cbc.pdf --type "Blood Test"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().String("report-id", "", "Report id (default: new UUID)")
	enqueueCmd.Flags().String("type", "", "Report type (default: detected)")
	enqueueCmd.Flags().String("mime", "", "MIME type of the file (default: detected from content)")
	enqueueCmd.Flags().String("user-id", "", "Owner of the report")
	enqueueCmd.Flags().Int("max-retry", 3, "Retries for failures after extraction")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("enqueue")

	reportID, _ := cmd.Flags().GetString("report-id")
	reportType, _ := cmd.Flags().GetString("type")
	mimeType, _ := cmd.Flags().GetString("mime")
	userID, _ := cmd.Flags().GetString("user-id")
	maxRetry, _ := cmd.Flags().GetInt("max-retry")

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
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL is not set, the worker will not find this report's record")
	}

	ctx, cancel := signalContext(30, log)
	defer cancel()

	st, err := container.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := saveReport(ctx, st, &models.Report{
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

	enqueuer, err := jobs.NewEnqueuer(cfg.RedisURL, jobs.EnqueuerConfig{
		Queue:    cfg.QueueName,
		MaxRetry: maxRetry,
		// every stage may use its full timeout
		Timeout: 6 * cfg.StageTimeout,
	})
	if err != nil {
		return err
	}
	defer enqueuer.Close()

	taskID, err := enqueuer.Enqueue(ctx, jobs.ProcessPayload{
		ReportID:   reportID,
		UserID:     report.UserID,
		FileURI:    uri,
		MimeType:   mimeType,
		ReportType: report.ReportType,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Queued report %s (task %s)\n", reportID, taskID)
	return nil
}
