package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrQuotaExhausted is a routing signal, not a failure: the ledger denied
	// the request and the caller should fall back to offline sources.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrProviderUnavailable covers network errors and non-2xx responses
	// from a remote provider; the source is skipped for the pass.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrTimeout             = errors.New("timeout")
	// ErrTranscode marks clip production failures in the prefetch path.
	ErrTranscode = errors.New("transcode failure")
	// ErrPersistenceCorrupt marks unreadable ledger/history state; callers
	// reinitialize to a safe default rather than failing closed.
	ErrPersistenceCorrupt = errors.New("persisted state corrupt")
	ErrConfiguration      = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProviderUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsQuotaExhausted reports whether err is the quota routing signal.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// IsProviderFailure reports whether err should be treated as "skip this
// source for the pass": unavailable, timed out, or context deadline.
func IsProviderFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
