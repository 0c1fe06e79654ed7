package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/internal/config"
	"medreport/internal/ocr"
	"medreport/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		OpenAIAPIKey:     "sk-test",
		OpenAIModel:      "gpt-4o-mini",
		OpenAIImageModel: "dall-e-3",
		AnalysisRetries:  2,
		OCREngines:       []string{"tesseract"},
		TesseractLangs:   []string{"eng"},
		MaxFileSize:      1 << 20,
		DownloadRetries:  1,
	}
}

func TestNewUsesMemoryStoreWithoutDatabase(t *testing.T) {
	c, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Store.(*store.MemoryStore)
	assert.True(t, ok)
	assert.NotNil(t, c.Pipeline)
	assert.NotNil(t, c.Metrics)
	_, ok = c.OCR.(*ocr.Cascade)
	assert.True(t, ok)
}

func TestUnknownEngine(t *testing.T) {
	cfg := testConfig()
	cfg.OCREngines = []string{"abbyy"}

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown OCR engine")
}

func TestNoEngines(t *testing.T) {
	cfg := testConfig()
	cfg.OCREngines = nil

	_, err := NewExtractionOnly(context.Background(), cfg)
	assert.Error(t, err)
}
