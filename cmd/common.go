package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"medreport/internal/config"
	"medreport/internal/extraction"
	"medreport/internal/ocr"
	"medreport/internal/pdf"
	"medreport/internal/store"
	"medreport/pkg/models"
)

// saveReport creates or refreshes the report record and returns it as stored,
// so fields left empty on a repeated run come back with their earlier values.
func saveReport(ctx context.Context, st store.Store, report *models.Report) (*models.Report, error) {
	if err := st.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report record: %w", err)
	}
	stored, err := st.GetReport(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read report record: %w", err)
	}
	return stored, nil
}

func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT/SIGTERM or, when timeoutSecs > 0,
// after the timeout.
func signalContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// fileURI turns a local path into a file:// URI and leaves other URIs alone.
func fileURI(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", arg, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", arg)
		}
		return "", fmt.Errorf("error accessing file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("path is not a regular file: %s", arg)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("file is empty: %s", arg)
	}
	return "file://" + abs, nil
}

// describeError turns adapter errors into actionable messages.
func describeError(err error) error {
	var unsupported *extraction.UnsupportedTypeError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.As(err, &unsupported):
		return err
	case errors.Is(err, extraction.ErrFileTooLarge), errors.Is(err, pdf.ErrPDFTooLarge):
		return fmt.Errorf("file is too large. Set MAX_FILE_SIZE or upload a smaller file: %w", err)
	case errors.Is(err, pdf.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity: %w", err)
	case errors.Is(err, ocr.ErrNoText):
		return fmt.Errorf("no readable text found. Retake the photo in better lighting: %w", err)
	case errors.Is(err, ocr.ErrAuth), errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n" +
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path\n" +
			"2. Or set GOOGLE_CREDENTIALS with inline JSON\n" +
			"3. Or run: gcloud auth application-default login\n\n" +
			"Original error: %v", err)
	case errors.Is(err, ocr.ErrQuota):
		return fmt.Errorf("OCR quota exceeded. Check your project quotas in the Google Cloud Console: %w", err)
	default:
		return err
	}
}

func writeJSON(v interface{}, outputPath string, log zerolog.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(append(data, '\n'), outputPath, log)
}

func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
