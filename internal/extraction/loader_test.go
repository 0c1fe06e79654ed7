package extraction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoaderConfig() LoaderConfig {
	cfg := DefaultLoaderConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestFileLoader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))

	loader := NewFileLoader(testLoaderConfig())

	data, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	data, err = loader.Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestFileLoader_LocalFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jpg")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o600))

	cfg := testLoaderConfig()
	cfg.MaxFileSize = 32

	_, err := NewFileLoader(cfg).Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestFileLoader_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	data, err := NewFileLoader(testLoaderConfig()).Load(context.Background(), srv.URL+"/scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFileLoader_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFileLoader(testLoaderConfig()).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFileLoader_UnknownScheme(t *testing.T) {
	_, err := NewFileLoader(testLoaderConfig()).Load(context.Background(), "ftp://host/file.pdf")
	assert.ErrorContains(t, err, "unsupported file URI scheme")
}
