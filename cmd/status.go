package cmd

import (
	"github.com/spf13/cobra"

	"medreport/internal/container"
	"medreport/internal/logger"
	"medreport/internal/pipeline"
	"medreport/internal/server"
)

var statusCmd = &cobra.Command{
	Use:   "status [report-id]",
	Short: "Show the stored results of a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("status")
	outputPath, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL is not set, no stored reports are available")
	}

	ctx, cancel := signalContext(30, log)
	defer cancel()

	st, err := container.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// reads only touch the store
	p := pipeline.New(nil, nil, nil, st, pipeline.DefaultConfig())

	report, err := p.GetProcessedReport(ctx, args[0])
	if err != nil {
		return err
	}
	processed, err := p.IsReportProcessed(ctx, args[0])
	if err != nil {
		return err
	}

	return writeJSON(server.StatusResponse{Processed: processed, Report: report}, outputPath, log)
}
