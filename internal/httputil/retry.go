package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryConfig bounds retries of transient server errors.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns three retries with exponential backoff from one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}
}

// retryableStatus is the fixed set of statuses worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryTransient runs op until it succeeds, fails permanently, or the budget
// runs out. op reports the HTTP status it saw (0 if none) and any error.
// Only retryable statuses are retried; transport errors are returned as-is.
func retryTransient(ctx context.Context, logger zerolog.Logger, cfg RetryConfig, url string, op func() (int, error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)

	operation := func() error {
		status, err := op()
		if retryableStatus(status) {
			return &StatusError{StatusCode: status, URL: url}
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		logger.Warn().
			Err(err).
			Str("url", url).
			Str("next_attempt_in", next.Round(time.Millisecond).String()).
			Msg("Transient response, retrying")
	}

	return backoff.RetryNotify(operation, policy, notify)
}
