package analysis_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"medreport/internal/analysis"
)

// ExampleAnalyzer explains an extracted lab report and prepares an
// illustration prompt for it.
func ExampleAnalyzer() {
	// OPENAI_API_KEY is loaded by godotenv in main().
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	analyzer := analysis.NewAnalyzer(os.Getenv("OPENAI_API_KEY"), analysis.DefaultConfig())

	text, err := os.ReadFile("blood_test.txt")
	if err != nil {
		log.Fatalf("Failed to read report text: %v", err)
	}

	// Never fails: without a key or on a bad answer the fixed fallback is returned.
	result := analyzer.AnalyzeReport(ctx, string(text), "Blood Test")

	fmt.Println(result.DetailedAnalysis)
	for name, value := range result.VisualizationData.Metrics {
		fmt.Printf("  %s: %v\n", name, value)
	}
	fmt.Printf("\nDoctor script:\n%s\n", result.DoctorScript)

	prompt := analyzer.GenerateImagePrompt(ctx, result.DetailedAnalysis, "Blood Test")
	fmt.Printf("\nIllustration prompt:\n%s\n", prompt)
}
