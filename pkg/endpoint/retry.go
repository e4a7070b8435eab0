package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for connection-level retries.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// backoff converts the config into a gax backoff. Each call returns a fresh
// backoff so concurrent calls never share pause state.
func (c RetryConfig) backoff() *gax.Backoff {
	return &gax.Backoff{
		Initial:    c.InitialBackoff,
		Max:        c.MaxBackoff,
		Multiplier: c.BackoffMultiplier,
	}
}

// sleep waits between attempts; replaced in tests.
var sleep = gax.Sleep

// shouldRetry reports whether a failed attempt of method may be repeated.
// Only connection-level failures qualify. Failures before the connection is
// established are retried for every method; a connection dropped afterwards
// only for GET and DELETE, since the server may already have acted on a POST
// or PUT. Timeouts, caller cancellation and anything unrecognised are final.
func shouldRetry(method string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	if !idempotent(method) {
		return false
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodDelete
}

// retryConnection executes fn with exponential backoff while it keeps failing
// with retryable connection-level errors for method. HTTP status codes never
// reach this loop as errors.
func retryConnection(ctx context.Context, cfg RetryConfig, method string, logger zerolog.Logger, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := cfg.backoff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !shouldRetry(method, err) {
			return err
		}

		if attempt >= attempts {
			break
		}

		retriesTotal.Inc()
		pause := bo.Pause()

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", pause).
			Msg("Connection failed, retrying after backoff")

		if err := sleep(ctx, pause); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	retryExhaustedTotal.Inc()
	logger.Warn().
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
