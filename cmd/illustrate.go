package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"medreport/internal/container"
	"medreport/internal/logger"
)

var illustrateCmd = &cobra.Command{
	Use:   "illustrate [report-id]",
	Short: "Generate additional illustrations for a processed report",
	Long: `Derive an illustration prompt from the stored analysis and generate
--count images. Failed images are skipped; the command fails only when no
image could be generated.`,
	Example: `  medreport illustrate 3f1c... --count 3`,
	Args:    cobra.ExactArgs(1),
	RunE:    runIllustrate,
}

func init() {
	rootCmd.AddCommand(illustrateCmd)

	illustrateCmd.Flags().String("type", "", "Report type (default: stored type)")
	illustrateCmd.Flags().Int("count", 1, "Number of illustrations")
	illustrateCmd.Flags().Int("timeout", 300, "Timeout in seconds")
}

func runIllustrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("illustrate")

	reportType, _ := cmd.Flags().GetString("type")
	count, _ := cmd.Flags().GetInt("count")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
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

	ids, err := c.Pipeline.RegenerateIllustrations(ctx, args[0], reportType, count)
	for _, id := range ids {
		fmt.Printf("Image: %s\n", id)
	}
	if err != nil {
		return err
	}
	if len(ids) < count {
		log.Warn().
			Int("requested", count).
			Int("generated", len(ids)).
			Msg("Some illustrations could not be generated")
	}
	return nil
}
