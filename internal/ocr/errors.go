package ocr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Reason classifies why an OCR request failed.
type Reason string

const (
	ReasonAuth         Reason = "auth"
	ReasonQuota        Reason = "quota"
	ReasonNetwork      Reason = "network"
	ReasonNoText       Reason = "no_text"
	ReasonInvalidInput Reason = "invalid_input"
	ReasonUnavailable  Reason = "unavailable"
)

// Common OCR processing errors, one per Reason.
var (
	// ErrAuth is returned when the OCR backend rejects the configured credentials.
	ErrAuth = errors.New("OCR authentication failed")

	// ErrQuota is returned when the OCR backend reports an exhausted quota or rate limit.
	ErrQuota = errors.New("OCR quota exceeded")

	// ErrNetwork is returned for transport failures, timeouts and backend outages.
	ErrNetwork = errors.New("OCR service unreachable")

	// ErrNoText is returned when the image contains no recognizable text.
	ErrNoText = errors.New("no text detected in image")

	// ErrInvalidImage is returned when the input is empty or cannot be decoded.
	ErrInvalidImage = errors.New("invalid or empty image")

	// ErrUnavailable is returned when an engine is not compiled in or not configured.
	ErrUnavailable = errors.New("OCR engine unavailable")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS is configured and no default credentials exist.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

var reasonErrors = map[Reason]error{
	ReasonAuth:         ErrAuth,
	ReasonQuota:        ErrQuota,
	ReasonNetwork:      ErrNetwork,
	ReasonNoText:       ErrNoText,
	ReasonInvalidInput: ErrInvalidImage,
	ReasonUnavailable:  ErrUnavailable,
}

// OCRError wraps errors with the operation and failure reason.
type OCRError struct {
	// Op is the operation that failed (e.g., "VisionService.ExtractTextFromImage").
	Op string

	// Reason is the failure class callers branch on.
	Reason Reason

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed (%s): %s: %v", e.Op, e.Reason, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed (%s): %v", e.Op, e.Reason, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the reason as well as the wrapped error.
func (e *OCRError) Is(target error) bool {
	if sentinel, ok := reasonErrors[e.Reason]; ok && sentinel == target {
		return true
	}
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError.
func NewOCRError(op string, reason Reason, err error, details string) *OCRError {
	if err == nil {
		err = reasonErrors[reason]
	}
	return &OCRError{
		Op:      op,
		Reason:  reason,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one,
// classifying the reason from the error itself.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, classifyError(err), err, details)
}

// ReasonOf returns the reason carried by err, or "" when err is not an OCRError.
func ReasonOf(err error) Reason {
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return ocrErr.Reason
	}
	return ""
}

// IsTransient reports whether err is a quota or network OCR failure that a
// later attempt may not repeat.
func IsTransient(err error) bool {
	switch ReasonOf(err) {
	case ReasonQuota, ReasonNetwork:
		return true
	default:
		return false
	}
}

// classifyError maps gRPC status codes and context errors onto a Reason.
func classifyError(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonNetwork
	}
	for reason, sentinel := range reasonErrors {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return reasonForCode(status.Code(err))
}

func reasonForCode(code codes.Code) Reason {
	switch code {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ReasonAuth
	case codes.ResourceExhausted:
		return ReasonQuota
	case codes.InvalidArgument:
		return ReasonInvalidInput
	default:
		return ReasonNetwork
	}
}
