// Package duckerr defines the typed error kinds spec §7 names, so
// callers can distinguish them with errors.Is/errors.As instead of
// string-matching. Construction wraps an underlying cause with
// fmt.Errorf's %w, matching the style the teacher uses throughout its
// own error handling (no third-party error-wrapping library is used
// for this in the corpus; see DESIGN.md).
package duckerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is(err, duckerr.ErrCollectorTransport) etc.
// to classify a wrapped error.
var (
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrConfigParse        = errors.New("configuration could not be parsed")
	ErrConfigValidation   = errors.New("configuration failed validation")
	ErrCollectorTransport = errors.New("collector transport error")
	ErrCollectorProtocol  = errors.New("collector protocol error")
	ErrObserverTransport  = errors.New("observer transport error")
	ErrChannelClosed      = errors.New("internal channel closed")
	ErrCancelled          = errors.New("operation cancelled")
)

// Wrap annotates cause with kind so errors.Is(wrapped, kind) succeeds.
// Only kind is wrapped: the cause is kept as message text, so
// errors.Unwrap yields kind and errors.Is does not match the cause.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", kind, cause)
}

// Wrapf is Wrap with a formatted message inserted between kind and
// cause.
func Wrapf(kind error, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s: %v", kind, msg, cause)
}
