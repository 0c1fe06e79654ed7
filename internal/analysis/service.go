// Package analysis turns extracted report text into a structured analysis
// with an OpenAI chat model.
//
// Both operations always return a usable value. Transport errors, malformed
// JSON and incomplete payloads are retried and finally replaced with a fixed
// fallback, so callers never need to handle an analysis error.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"medreport/internal/logger"
	"medreport/pkg/models"
)

// Config configures the analyzer.
type Config struct {
	Model       string  // gpt-4o-mini, gpt-4o, ...
	Temperature float32 // sampling temperature
	MaxRetries  int     // attempts before falling back
	MaxTokens   int
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Temperature: 0.3,
		MaxRetries:  2,
		MaxTokens:   2500,
	}
}

// ChatCompleter is the subset of the OpenAI client the analyzer needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Analyzer implements the analysis stage.
type Analyzer struct {
	client ChatCompleter
	config Config
	log    zerolog.Logger
}

// NewAnalyzer creates an analyzer for an OpenAI API key.
func NewAnalyzer(apiKey string, config Config) *Analyzer {
	return NewAnalyzerWithClient(openai.NewClient(apiKey), config)
}

// NewAnalyzerWithClient creates an analyzer with an explicit client (for testing).
func NewAnalyzerWithClient(client ChatCompleter, config Config) *Analyzer {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &Analyzer{
		client: client,
		config: config,
		log:    logger.WithComponent("analysis"),
	}
}

// AnalyzeReport returns a structured analysis of text. It never fails: any
// error or incomplete model answer results in FallbackAnalysis().
func (a *Analyzer) AnalyzeReport(ctx context.Context, text, reportType string) (result models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("Analysis panicked, using fallback")
			result = FallbackAnalysis()
		}
	}()

	if strings.TrimSpace(text) == "" {
		a.log.Warn().Msg("Empty report text, using fallback analysis")
		return FallbackAnalysis()
	}

	analysis, err := a.requestAnalysis(ctx, text, reportType)
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("report_type", reportType).
			Msg("Analysis failed, using fallback")
		return FallbackAnalysis()
	}
	return *analysis
}

func (a *Analyzer) requestAnalysis(ctx context.Context, text, reportType string) (*models.AnalysisResult, error) {
	const op = "requestAnalysis"

	prompt := buildAnalysisPrompt(text, reportType)

	a.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("model", a.config.Model).
		Str("report_type", reportType).
		Msg("Sending analysis request")

	var lastErr error
	for attempt := 1; attempt <= a.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.config.Model,
			Temperature: a.config.Temperature,
			MaxTokens:   a.config.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			lastErr = err
			a.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", a.config.MaxRetries).
				Msg("Analysis request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("no response choices from model")
			continue
		}

		analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			a.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Invalid analysis payload, retrying")
			continue
		}

		a.log.Info().
			Int("attempt", attempt).
			Int("analysis_length", len(analysis.DetailedAnalysis)).
			Int("metrics", len(analysis.VisualizationData.Metrics)).
			Msg("Analysis completed")
		return analysis, nil
	}

	return nil, fmt.Errorf("%s: all %d attempts failed, last error: %w", op, a.config.MaxRetries, lastErr)
}

// parseAnalysis validates the model answer. Every field must be present and non-empty.
func parseAnalysis(content string) (*models.AnalysisResult, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}

	detailed := strings.TrimSpace(getString(raw, "detailedAnalysis"))
	if detailed == "" {
		return nil, errors.New("missing detailedAnalysis")
	}
	script := strings.TrimSpace(getString(raw, "doctorScript"))
	if script == "" {
		return nil, errors.New("missing doctorScript")
	}

	vis, ok := raw["visualizationData"].(map[string]interface{})
	if !ok || len(vis) == 0 {
		return nil, errors.New("missing visualizationData")
	}

	result := &models.AnalysisResult{
		DetailedAnalysis: detailed,
		DoctorScript:     script,
		VisualizationData: models.VisualizationData{
			ChartData:   vis["chartData"],
			VisualNotes: getString(vis, "visualNotes"),
		},
	}
	if metrics, ok := vis["metrics"].(map[string]interface{}); ok {
		result.VisualizationData.Metrics = metrics
	}
	if result.VisualizationData.ChartData == nil {
		result.VisualizationData.ChartData = []interface{}{}
	}
	if result.VisualizationData.Metrics == nil {
		result.VisualizationData.Metrics = map[string]interface{}{}
	}

	return result, nil
}

// GenerateImagePrompt asks the model for an illustration prompt that fits the
// analysis. Any failure returns FallbackImagePrompt(reportType).
func (a *Analyzer) GenerateImagePrompt(ctx context.Context, analysisText, reportType string) (prompt string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("Image prompt generation panicked, using template")
			prompt = FallbackImagePrompt(reportType)
		}
	}()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.config.Model,
		Temperature: 0.7,
		MaxTokens:   400,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: imagePromptSystem()},
			{Role: openai.ChatMessageRoleUser, Content: buildImagePrompt(analysisText, reportType)},
		},
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("Image prompt request failed, using template")
		return FallbackImagePrompt(reportType)
	}
	if len(resp.Choices) == 0 {
		return FallbackImagePrompt(reportType)
	}

	prompt = strings.TrimSpace(stripCodeFence(resp.Choices[0].Message.Content))
	if prompt == "" {
		return FallbackImagePrompt(reportType)
	}
	return truncate(prompt, 1000)
}

// stripCodeFence removes a surrounding markdown code block, if any.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func getString(m map[string]interface{}, key string) string {
	if value, exists := m[key]; exists && value != nil {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return ""
}
