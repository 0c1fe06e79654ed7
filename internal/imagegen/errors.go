package imagegen

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned when no prompt was given.
	ErrEmptyPrompt = errors.New("image prompt is empty")

	// ErrNoImageData is returned when the image model answered without an image.
	ErrNoImageData = errors.New("image model returned no image")

	// ErrNoImagesGenerated is returned by GenerateVariations when every variant failed.
	ErrNoImagesGenerated = errors.New("no images were generated")
)

// ImageGenError wraps image generation failures.
type ImageGenError struct {
	Op      string
	Err     error
	Details string
}

// Error implements the error interface.
func (e *ImageGenError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("imagegen: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("imagegen: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ImageGenError) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var genErr *ImageGenError
	if errors.As(err, &genErr) {
		return err
	}
	return &ImageGenError{Op: op, Err: err, Details: details}
}
