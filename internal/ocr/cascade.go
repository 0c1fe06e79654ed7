package ocr

import (
	"context"

	"github.com/rs/zerolog"

	"medreport/internal/logger"
)

// Cascade tries a list of engines in order and returns the first result.
type Cascade struct {
	engines []Service
	log     zerolog.Logger
}

// NewCascade builds a cascade over the given engines.
func NewCascade(engines ...Service) *Cascade {
	return &Cascade{
		engines: engines,
		log:     logger.WithComponent("ocr-cascade"),
	}
}

// ExtractTextFromImage returns the result of the first engine that succeeds.
// Invalid input and context cancellation stop the cascade immediately. When
// every engine fails, the first failure other than ReasonUnavailable is returned.
func (c *Cascade) ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error) {
	const op = "Cascade.ExtractTextFromImage"

	if len(c.engines) == 0 {
		return nil, NewOCRError(op, ReasonUnavailable, ErrUnavailable, "no OCR engines configured")
	}

	var firstErr, lastErr error
	for i, engine := range c.engines {
		result, err := engine.ExtractTextFromImage(ctx, image)
		if err == nil {
			if i > 0 {
				c.log.Info().
					Int("tier", i+1).
					Str("engine", result.Engine).
					Msg("OCR succeeded on fallback engine")
			}
			return result, nil
		}

		lastErr = err
		reason := ReasonOf(err)
		c.log.Warn().
			Err(err).
			Int("tier", i+1).
			Str("reason", string(reason)).
			Msg("OCR engine failed")

		if reason == ReasonInvalidInput || ctx.Err() != nil {
			return nil, WrapOCRError(op, err, "")
		}
		if firstErr == nil && reason != ReasonUnavailable {
			firstErr = err
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, WrapOCRError(op, lastErr, "all OCR engines failed")
}
