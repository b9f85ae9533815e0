package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/nidhogg/giffly/internal/retry"
)

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("empty response from provider")

// StatusError is a non-200 reply from a provider or token endpoint.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.Code, e.Body)
}

// Classify sorts provider errors for the retry loop: rate limits, server
// errors and transport failures are retried, expired or rejected credentials
// trigger a refresh, everything else is terminal.
func Classify(err error) retry.Class {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return retry.Reauth
		case se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout:
			return retry.Retryable
		case se.Code >= 500:
			return retry.Retryable
		default:
			return retry.Terminal
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Retryable
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return retry.Retryable
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return retry.Retryable
	}
	return retry.Terminal
}
