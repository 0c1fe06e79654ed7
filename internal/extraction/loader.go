package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medreport/internal/logger"
)

// ErrFileTooLarge is returned when a source file exceeds the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Loader fetches the bytes behind a file URI.
type Loader interface {
	Load(ctx context.Context, fileURI string) ([]byte, error)
}

// LoaderConfig configures FileLoader.
type LoaderConfig struct {
	MaxFileSize    int64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultLoaderConfig returns the loader defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		MaxFileSize:    20 * 1024 * 1024,
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     16 * time.Second,
		Timeout:        60 * time.Second,
	}
}

// FileLoader reads local paths, file:// URIs and http(s) URLs.
type FileLoader struct {
	client *http.Client
	cfg    LoaderConfig
	log    zerolog.Logger
}

// NewFileLoader creates a loader.
func NewFileLoader(cfg LoaderConfig) *FileLoader {
	return &FileLoader{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		log:    logger.WithComponent("loader"),
	}
}

// Load returns the file contents.
func (l *FileLoader) Load(ctx context.Context, fileURI string) ([]byte, error) {
	u, err := url.Parse(fileURI)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses with a one letter scheme
		return l.readLocal(fileURI)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return l.readLocal(u.Path)
	case "http", "https":
		return l.download(ctx, fileURI)
	default:
		return nil, fmt.Errorf("unsupported file URI scheme %q", u.Scheme)
	}
}

func (l *FileLoader) readLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if l.cfg.MaxFileSize > 0 && info.Size() > l.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, info.Size(), l.cfg.MaxFileSize)
	}
	return os.ReadFile(path)
}

// download fetches a URL, retrying transport errors and 5xx/429 responses
// with exponential backoff.
func (l *FileLoader) download(ctx context.Context, fileURL string) ([]byte, error) {
	attempts := l.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := l.cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, retry, err := l.fetch(ctx, fileURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}

		l.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Str("url", fileURL).
			Msg("Download failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("download canceled: %w", ctx.Err())
		}
		backoff *= 2
		if l.cfg.MaxBackoff > 0 && backoff > l.cfg.MaxBackoff {
			backoff = l.cfg.MaxBackoff
		}
	}

	return nil, fmt.Errorf("download failed: %w", lastErr)
}

func (l *FileLoader) fetch(ctx context.Context, fileURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if l.cfg.MaxFileSize > 0 && resp.ContentLength > l.cfg.MaxFileSize {
		return nil, false, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, resp.ContentLength, l.cfg.MaxFileSize)
	}

	limit := l.cfg.MaxFileSize
	if limit <= 0 {
		limit = 1 << 30
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, false, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	return data, false, nil
}
