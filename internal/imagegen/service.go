// Package imagegen creates patient facing medical illustrations with the
// OpenAI image API.
package imagegen

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"medreport/internal/logger"
	"medreport/pkg/models"
)

// Config configures the generator.
type Config struct {
	Model          string // dall-e-3, dall-e-2, ...
	Size           string
	Quality        string
	Style          string
	MaxConcurrency int // parallel requests in GenerateVariations
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		Model:          openai.CreateImageModelDallE3,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        openai.CreateImageQualityStandard,
		Style:          openai.CreateImageStyleNatural,
		MaxConcurrency: 2,
	}
}

// ImageClient is the subset of the OpenAI client the generator needs.
type ImageClient interface {
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// Generator implements illustration generation.
type Generator struct {
	client ImageClient
	config Config
	now    func() time.Time
	log    zerolog.Logger
}

// NewGenerator creates a generator for an OpenAI API key.
func NewGenerator(apiKey string, config Config) *Generator {
	return NewGeneratorWithClient(openai.NewClient(apiKey), config)
}

// NewGeneratorWithClient creates a generator with an explicit client (for testing).
func NewGeneratorWithClient(client ImageClient, config Config) *Generator {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	return &Generator{
		client: client,
		config: config,
		now:    time.Now,
		log:    logger.WithComponent("imagegen"),
	}
}

// GenerateMedicalIllustration requests a single image for prompt.
func (g *Generator) GenerateMedicalIllustration(ctx context.Context, prompt string) (*models.GeneratedImage, error) {
	const op = "GenerateMedicalIllustration"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, wrapError(op, ErrEmptyPrompt, "")
	}

	start := g.now()
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.config.Model,
		N:              1,
		Size:           g.config.Size,
		Quality:        g.config.Quality,
		Style:          g.config.Style,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, wrapError(op, err, "image API call failed")
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, wrapError(op, ErrNoImageData, "")
	}

	image := &models.GeneratedImage{
		URL:         resp.Data[0].URL,
		Prompt:      prompt,
		Model:       g.config.Model,
		GeneratedAt: g.now(),
	}

	g.log.Info().
		Str("model", image.Model).
		Dur("duration", image.GeneratedAt.Sub(start)).
		Bool("prompt_revised", resp.Data[0].RevisedPrompt != "").
		Msg("Illustration generated")

	return image, nil
}

// GenerateVariations requests count images for the same prompt. Individual
// failures are logged and skipped; the surviving images keep their request
// order. When count > 0 and every request failed, ErrNoImagesGenerated is
// returned so callers can tell "no images" apart from a partial result.
func (g *Generator) GenerateVariations(ctx context.Context, prompt string, count int) ([]models.GeneratedImage, error) {
	const op = "GenerateVariations"

	if count <= 0 {
		return nil, nil
	}

	slots := make([]*models.GeneratedImage, count)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.config.MaxConcurrency)

	for i := 0; i < count; i++ {
		i := i
		group.Go(func() error {
			image, err := g.GenerateMedicalIllustration(groupCtx, prompt)
			if err != nil {
				g.log.Warn().
					Err(err).
					Int("variant", i+1).
					Int("count", count).
					Msg("Illustration variant failed")
				return nil
			}
			slots[i] = image
			return nil
		})
	}
	_ = group.Wait()

	images := make([]models.GeneratedImage, 0, count)
	for _, image := range slots {
		if image != nil {
			images = append(images, *image)
		}
	}

	if len(images) == 0 {
		return nil, wrapError(op, ErrNoImagesGenerated, "")
	}
	if len(images) < count {
		g.log.Warn().
			Int("requested", count).
			Int("generated", len(images)).
			Msg("Some illustration variants failed")
	}
	return images, nil
}
