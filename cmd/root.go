package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medreport/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "medreport",
	Short: "Medical report processing pipeline",
	Long: `medreport extracts text from medical report photos and PDFs, asks an
OpenAI model for a patient-friendly analysis, generates an illustration and
stores the results.

Reports can be processed synchronously with "process" or queued with
"enqueue" and picked up by a long-running "worker".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
