// Package pipeline runs a report through extraction, analysis, persistence
// and illustration, and reports the outcome as a models.ProcessingResult.
//
// Stages run strictly in order. Extraction and persistence failures abort
// the run. Analysis and image prompt failures are replaced with fallbacks.
// Whether an illustration failure aborts the run is controlled by
// Config.RequireImage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medreport/internal/analysis"
	"medreport/internal/extraction"
	"medreport/internal/logger"
	"medreport/internal/ocr"
	"medreport/internal/store"
	"medreport/pkg/models"
)

// NoTextMessage is the run error when extraction produced no usable text.
const NoTextMessage = "No text could be extracted from the file"

// ErrStageTimeout is returned when a stage exceeds Config.StageTimeout.
var ErrStageTimeout = errors.New("stage timed out")

// TextExtractor loads a file and returns its text.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileURI, mimeType string) (*models.ExtractedText, error)
}

// ReportAnalyzer produces the analysis and the illustration prompt. Both
// methods return usable values even when the model is unavailable.
type ReportAnalyzer interface {
	AnalyzeReport(ctx context.Context, text, reportType string) models.AnalysisResult
	GenerateImagePrompt(ctx context.Context, analysisText, reportType string) string
}

// IllustrationGenerator creates illustrations for a prompt.
type IllustrationGenerator interface {
	GenerateMedicalIllustration(ctx context.Context, prompt string) (*models.GeneratedImage, error)
	GenerateVariations(ctx context.Context, prompt string, count int) ([]models.GeneratedImage, error)
}

// Observer receives run and stage measurements.
type Observer interface {
	RunStarted() func()
	ObserveRun(result *models.ProcessingResult)
	ObserveStage(stage models.Stage, d time.Duration, err error)
	ImagesGenerated(n int)
}

type nopObserver struct{}

func (nopObserver) RunStarted() func() { return func() {} }

func (nopObserver) ObserveRun(*models.ProcessingResult) {}

func (nopObserver) ObserveStage(models.Stage, time.Duration, error) {}

func (nopObserver) ImagesGenerated(int) {}

// Config configures the pipeline.
type Config struct {
	StageTimeout time.Duration // per stage call; zero disables the limit
	RequireImage bool          // an illustration failure fails the run
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		StageTimeout: 2 * time.Minute,
		RequireImage: true,
	}
}

// Pipeline processes reports. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	extractor TextExtractor
	analyzer  ReportAnalyzer
	images    IllustrationGenerator
	store     store.Store
	observer  Observer
	config    Config
	log       zerolog.Logger
}

// New creates a pipeline.
func New(extractor TextExtractor, analyzer ReportAnalyzer, images IllustrationGenerator, st store.Store, config Config) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		analyzer:  analyzer,
		images:    images,
		store:     st,
		observer:  nopObserver{},
		config:    config,
		log:       logger.WithComponent("pipeline"),
	}
}

// WithObserver sets the observer that receives run metrics.
func (p *Pipeline) WithObserver(observer Observer) *Pipeline {
	if observer != nil {
		p.observer = observer
	}
	return p
}

// ProcessReport runs every stage for one report. It always returns a result:
// errors and panics are reported through Success, Error and FailedStage.
func (p *Pipeline) ProcessReport(ctx context.Context, reportID, fileURI, mimeType, reportType string) (result models.ProcessingResult) {
	log := logger.WithReportID("pipeline", reportID)
	start := time.Now()
	done := p.observer.RunStarted()

	result = models.ProcessingResult{ReportID: reportID, ImageIDs: []string{}}
	stage := models.StageExtraction

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", string(stage)).Msg("Pipeline panicked")
			result = failed(result, stage, fmt.Sprintf("internal error during %s: %v", stage, r))
		}
		p.finish(ctx, log, &result, start)
		done()
	}()

	log.Info().
		Str("file_uri", fileURI).
		Str("mime_type", mimeType).
		Str("report_type", reportType).
		Msg("Processing report")

	if mimeType != "" && !extraction.IsSupportedMimeType(mimeType) && !isOctetStream(mimeType) {
		err := &extraction.UnsupportedTypeError{MimeType: mimeType}
		return failed(result, stage, "Text extraction failed: "+err.Error())
	}

	p.setStatus(ctx, log, reportID, models.StatusProcessing)

	extracted, err := runStage(p, ctx, stage, func(ctx context.Context) (*models.ExtractedText, error) {
		return p.extractor.ExtractText(ctx, fileURI, mimeType)
	})
	if err != nil {
		result.Retryable = ocr.IsTransient(err)
		return failed(result, stage, "Text extraction failed: "+err.Error())
	}
	if extracted == nil || strings.TrimSpace(extracted.Text) == "" {
		return failed(result, stage, NoTextMessage)
	}
	if reportType == "" {
		reportType = extracted.Metadata.DetectedType
	}

	log.Debug().
		Str("method", string(extracted.ExtractionMethod)).
		Float64("confidence", extracted.Confidence).
		Int("text_length", len(extracted.Text)).
		Msg("Text extracted")

	stage = models.StageAnalysis
	analyzed, err := runStage(p, ctx, stage, func(ctx context.Context) (models.AnalysisResult, error) {
		return p.analyzer.AnalyzeReport(ctx, extracted.Text, reportType), nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("Analysis did not complete, using fallback")
		analyzed = analysis.FallbackAnalysis()
	}

	analysisID, err := runStage(p, ctx, stage, func(ctx context.Context) (string, error) {
		return p.store.UpsertAnalysis(ctx, &models.AnalysisRecord{
			ReportID:         reportID,
			DetailedAnalysis: analyzed.DetailedAnalysis,
			DoctorScript:     analyzed.DoctorScript,
		})
	})
	if err != nil {
		return failed(result, stage, err.Error())
	}
	result.AnalysisID = analysisID

	stage = models.StageVisualization
	visualizationID, err := runStage(p, ctx, stage, func(ctx context.Context) (string, error) {
		return p.store.UpsertVisualization(ctx, &models.VisualizationRecord{
			ReportID:    reportID,
			ChartData:   analyzed.VisualizationData.ChartData,
			Metrics:     analyzed.VisualizationData.Metrics,
			VisualNotes: analyzed.VisualizationData.VisualNotes,
		})
	})
	if err != nil {
		return failed(result, stage, err.Error())
	}
	result.VisualizationID = visualizationID

	stage = models.StageImage
	prompt := p.imagePrompt(ctx, log, analyzed.DetailedAnalysis, reportType)

	image, err := runStage(p, ctx, stage, func(ctx context.Context) (*models.GeneratedImage, error) {
		return p.images.GenerateMedicalIllustration(ctx, prompt)
	})
	if err != nil {
		if p.config.RequireImage {
			return failed(result, stage, "Image generation failed: "+err.Error())
		}
		log.Warn().Err(err).Msg("Image generation failed, continuing without illustration")
		result.Success = true
		return result
	}

	imageID, err := runStage(p, ctx, stage, func(ctx context.Context) (string, error) {
		return p.store.InsertImage(ctx, imageRecord(reportID, image))
	})
	if err != nil {
		return failed(result, stage, err.Error())
	}
	result.ImageIDs = append(result.ImageIDs, imageID)
	p.observer.ImagesGenerated(1)

	result.Success = true
	return result
}

// ProcessReportAsync runs ProcessReport in the background and delivers the
// result on the returned channel, which is closed afterwards.
func (p *Pipeline) ProcessReportAsync(ctx context.Context, reportID, fileURI, mimeType, reportType string) <-chan models.ProcessingResult {
	ch := make(chan models.ProcessingResult, 1)
	go func() {
		defer close(ch)
		ch <- p.ProcessReport(ctx, reportID, fileURI, mimeType, reportType)
	}()
	return ch
}

// GetProcessedReport loads a report and its child records. Analysis and
// Visualization are nil when they were never persisted.
func (p *Pipeline) GetProcessedReport(ctx context.Context, reportID string) (*models.ProcessedReport, error) {
	const op = "GetProcessedReport"

	report, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	processed := &models.ProcessedReport{Report: *report}

	processed.Analysis, err = p.store.GetAnalysis(ctx, reportID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	processed.Visualization, err = p.store.GetVisualization(ctx, reportID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	processed.Images, err = p.store.ListImages(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return processed, nil
}

// IsReportProcessed reports whether the analysis, the visualization and at
// least one image exist for reportID.
func (p *Pipeline) IsReportProcessed(ctx context.Context, reportID string) (bool, error) {
	if _, err := p.store.GetAnalysis(ctx, reportID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := p.store.GetVisualization(ctx, reportID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	images, err := p.store.ListImages(ctx, reportID)
	if err != nil {
		return false, err
	}
	return len(images) > 0, nil
}

// RegenerateIllustrations derives a prompt from the stored analysis and
// persists every variation that could be generated. It returns the new image
// ids; imagegen.ErrNoImagesGenerated is returned when none succeeded.
func (p *Pipeline) RegenerateIllustrations(ctx context.Context, reportID, reportType string, count int) ([]string, error) {
	const op = "RegenerateIllustrations"
	log := logger.WithReportID("pipeline", reportID)

	stored, err := p.store.GetAnalysis(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if reportType == "" {
		if report, err := p.store.GetReport(ctx, reportID); err == nil {
			reportType = report.ReportType
		}
	}

	prompt := p.imagePrompt(ctx, log, stored.DetailedAnalysis, reportType)

	images, err := p.images.GenerateVariations(ctx, prompt, count)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids := make([]string, 0, len(images))
	for i := range images {
		id, err := p.store.InsertImage(ctx, imageRecord(reportID, &images[i]))
		if err != nil {
			p.observer.ImagesGenerated(len(ids))
			return ids, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	p.observer.ImagesGenerated(len(ids))

	log.Info().
		Int("requested", count).
		Int("generated", len(ids)).
		Msg("Illustrations regenerated")
	return ids, nil
}

func (p *Pipeline) imagePrompt(ctx context.Context, log zerolog.Logger, analysisText, reportType string) string {
	prompt, err := runStage(p, ctx, models.StageImage, func(ctx context.Context) (string, error) {
		return p.analyzer.GenerateImagePrompt(ctx, analysisText, reportType), nil
	})
	if err != nil || strings.TrimSpace(prompt) == "" {
		log.Warn().Err(err).Msg("Image prompt unavailable, using template")
		return analysis.FallbackImagePrompt(reportType)
	}
	return prompt
}

func (p *Pipeline) finish(ctx context.Context, log zerolog.Logger, result *models.ProcessingResult, start time.Time) {
	status := models.StatusCompleted
	if !result.Success {
		status = models.StatusFailed
	}
	p.setStatus(ctx, log, result.ReportID, status)
	p.observer.ObserveRun(result)

	if result.Success {
		log.Info().
			Str("analysis_id", result.AnalysisID).
			Str("visualization_id", result.VisualizationID).
			Int("images", len(result.ImageIDs)).
			Dur("duration", time.Since(start)).
			Msg("Report processed")
		return
	}
	log.Error().
		Str("stage", string(result.FailedStage)).
		Str("error", result.Error).
		Dur("duration", time.Since(start)).
		Msg("Report processing failed")
}

// setStatus updates the report status. Failures are only logged.
func (p *Pipeline) setStatus(ctx context.Context, log zerolog.Logger, reportID, status string) {
	if err := p.store.UpdateReportStatus(context.WithoutCancel(ctx), reportID, status); err != nil {
		log.Debug().Err(err).Str("status", status).Msg("Could not update report status")
	}
}

// runStage calls fn under the stage timeout. A panic in fn is returned as an error.
func runStage[T any](p *Pipeline, ctx context.Context, stage models.Stage, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()

	var (
		stageCtx context.Context
		cancel   context.CancelFunc
	)
	if p.config.StageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, p.config.StageTimeout)
	} else {
		stageCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		value, err := fn(stageCtx)
		ch <- outcome{value: value, err: err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-stageCtx.Done():
		out.err = stageCtx.Err()
	}
	if out.err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		out.err = fmt.Errorf("%s: %w after %s", stage, ErrStageTimeout, p.config.StageTimeout)
	}

	p.observer.ObserveStage(stage, time.Since(start), out.err)
	return out.value, out.err
}

func failed(result models.ProcessingResult, stage models.Stage, message string) models.ProcessingResult {
	result.Success = false
	result.Error = message
	result.FailedStage = stage
	return result
}

func imageRecord(reportID string, image *models.GeneratedImage) *models.ImageRecord {
	return &models.ImageRecord{
		ReportID:    reportID,
		URL:         image.URL,
		Prompt:      image.Prompt,
		Model:       image.Model,
		GeneratedAt: image.GeneratedAt,
	}
}

func isOctetStream(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "application/octet-stream")
}
