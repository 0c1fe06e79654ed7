// Package container builds the service graph from configuration.
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medreport/internal/analysis"
	"medreport/internal/config"
	"medreport/internal/extraction"
	"medreport/internal/imagegen"
	"medreport/internal/jobs"
	"medreport/internal/logger"
	"medreport/internal/metrics"
	"medreport/internal/ocr"
	"medreport/internal/pdf"
	"medreport/internal/pipeline"
	"medreport/internal/store"
)

// Container holds the wired services of one process.
type Container struct {
	Config    *config.Config
	OCR       ocr.Service
	Extractor *extraction.Service
	Analyzer  *analysis.Analyzer
	Images    *imagegen.Generator
	Store     store.Store
	Metrics   *metrics.Recorder
	Pipeline  *pipeline.Pipeline

	closers []func() error
	log     zerolog.Logger
}

// New wires every service. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Metrics: metrics.NewRecorder(),
		log:     logger.WithComponent("container"),
	}

	var err error
	c.OCR, err = c.buildOCR(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Store, err = NewStore(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, c.Store.Close)

	loader := extraction.NewFileLoader(extraction.LoaderConfig{
		MaxFileSize:    cfg.MaxFileSize,
		MaxRetries:     cfg.DownloadRetries,
		InitialBackoff: time.Second,
		MaxBackoff:     16 * time.Second,
		Timeout:        cfg.DownloadTimeout,
	})

	pdfConfig := pdf.DefaultConfig()
	pdfConfig.MaxFileSize = cfg.MaxFileSize
	c.Extractor = extraction.NewService(loader, c.OCR, pdf.NewService(c.OCR, pdfConfig))

	analysisConfig := analysis.DefaultConfig()
	analysisConfig.Model = cfg.OpenAIModel
	analysisConfig.Temperature = cfg.OpenAITemperature
	analysisConfig.MaxRetries = cfg.AnalysisRetries
	c.Analyzer = analysis.NewAnalyzer(cfg.OpenAIAPIKey, analysisConfig)

	imageConfig := imagegen.DefaultConfig()
	imageConfig.Model = cfg.OpenAIImageModel
	c.Images = imagegen.NewGenerator(cfg.OpenAIAPIKey, imageConfig)

	c.Pipeline = pipeline.New(c.Extractor, c.Analyzer, c.Images, c.Store, pipeline.Config{
		StageTimeout: cfg.StageTimeout,
		RequireImage: cfg.RequireImage,
	}).WithObserver(c.Metrics)

	c.log.Debug().
		Strs("ocr_engines", cfg.OCREngines).
		Bool("postgres", cfg.DatabaseURL != "").
		Bool("require_image", cfg.RequireImage).
		Msg("Services initialized")
	return c, nil
}

// NewExtractionOnly wires the OCR engines and the extraction service, which
// is all the text preview needs.
func NewExtractionOnly(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg, log: logger.WithComponent("container")}

	var err error
	c.OCR, err = c.buildOCR(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	loader := extraction.NewFileLoader(extraction.LoaderConfig{
		MaxFileSize:    cfg.MaxFileSize,
		MaxRetries:     cfg.DownloadRetries,
		InitialBackoff: time.Second,
		MaxBackoff:     16 * time.Second,
		Timeout:        cfg.DownloadTimeout,
	})
	pdfConfig := pdf.DefaultConfig()
	pdfConfig.MaxFileSize = cfg.MaxFileSize
	c.Extractor = extraction.NewService(loader, c.OCR, pdf.NewService(c.OCR, pdfConfig))
	return c, nil
}

// buildOCR creates the configured engines in order behind a cascade.
func (c *Container) buildOCR(ctx context.Context) (ocr.Service, error) {
	cfg := c.Config
	creds := ocr.GoogleCredentials{JSON: cfg.GoogleCredentialsJSON, File: cfg.GoogleCredentialsFile}

	if !cfg.HasGoogleCredentials() {
		c.log.Debug().Msg("No explicit Google credentials, using Application Default Credentials")
	}

	var engines []ocr.Service
	for _, name := range cfg.OCREngines {
		switch name {
		case "vision":
			svc, err := ocr.NewVisionService(ctx, ocr.VisionConfig{
				Credentials:   creds,
				LanguageHints: cfg.OCRLanguageHints,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create vision engine: %w", err)
			}
			c.closers = append(c.closers, svc.Close)
			engines = append(engines, svc)
		case "documentai":
			svc, err := ocr.NewDocumentAIService(ctx, ocr.DocumentAIConfig{
				Credentials: creds,
				ProjectID:   cfg.GoogleCloudProject,
				Location:    cfg.GoogleCloudLocation,
				ProcessorID: cfg.DocumentAIProcessorID,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create document ai engine: %w", err)
			}
			c.closers = append(c.closers, svc.Close)
			engines = append(engines, svc)
		case "tesseract":
			svc, err := ocr.NewTesseractService(cfg.TesseractLangs)
			if err != nil {
				return nil, fmt.Errorf("failed to create tesseract engine: %w", err)
			}
			engines = append(engines, svc)
		default:
			return nil, fmt.Errorf("unknown OCR engine: %s", name)
		}
	}
	if len(engines) == 0 {
		return nil, errors.New("no OCR engine configured")
	}
	return ocr.NewCascade(engines...), nil
}

// NewStore opens Postgres when DATABASE_URL is set and falls back to the
// in-memory store otherwise.
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.DatabaseURL)
}

// NewRedisClient connects to REDIS_URL and verifies the connection.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Notifier publishes results on NOTIFY_CHANNEL, or logs them when Redis is
// unreachable.
func (c *Container) Notifier(ctx context.Context) jobs.Notifier {
	client, err := NewRedisClient(ctx, c.Config)
	if err != nil {
		c.log.Warn().Err(err).Msg("Result notifications will only be logged")
		return jobs.NewLogNotifier()
	}
	c.closers = append(c.closers, client.Close)
	return jobs.NewRedisNotifier(client, c.Config.NotifyChannel)
}

// Close releases every client in reverse creation order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
