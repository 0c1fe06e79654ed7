package ocr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFunc func(ctx context.Context, image []byte) (*Result, error)

func (f engineFunc) ExtractTextFromImage(ctx context.Context, image []byte) (*Result, error) {
	return f(ctx, image)
}

func failing(reason Reason) engineFunc {
	return func(ctx context.Context, image []byte) (*Result, error) {
		return nil, NewOCRError("fake", reason, nil, "")
	}
}

func succeeding(engine string) engineFunc {
	return func(ctx context.Context, image []byte) (*Result, error) {
		return &Result{Text: "text from " + engine, Confidence: 0.9, Engine: engine}, nil
	}
}

func TestCascade_FallsThroughToNextEngine(t *testing.T) {
	c := NewCascade(failing(ReasonQuota), failing(ReasonUnavailable), succeeding("documentai"))

	result, err := c.ExtractTextFromImage(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "documentai", result.Engine)
}

func TestCascade_StopsOnInvalidInput(t *testing.T) {
	calls := 0
	second := engineFunc(func(ctx context.Context, image []byte) (*Result, error) {
		calls++
		return &Result{Text: "x"}, nil
	})

	_, err := NewCascade(failing(ReasonInvalidInput), second).ExtractTextFromImage(context.Background(), []byte{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Zero(t, calls)
}

func TestCascade_ReturnsFirstMeaningfulError(t *testing.T) {
	_, err := NewCascade(failing(ReasonUnavailable), failing(ReasonNoText), failing(ReasonNetwork)).
		ExtractTextFromImage(context.Background(), []byte{1})
	require.Error(t, err)
	assert.Equal(t, ReasonNoText, ReasonOf(err))
}

func TestCascade_NoEngines(t *testing.T) {
	_, err := NewCascade().ExtractTextFromImage(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewOCRError("fake", ReasonQuota, nil, "")))
	assert.True(t, IsTransient(fmt.Errorf("page 2: %w", NewOCRError("fake", ReasonNetwork, nil, ""))))
	assert.False(t, IsTransient(NewOCRError("fake", ReasonAuth, nil, "")))
	assert.False(t, IsTransient(NewOCRError("fake", ReasonNoText, nil, "")))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(nil))
}
