package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"syscall"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
	Multiplier      float64
}

func DefaultConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

// LLMConfig keeps retries short: a slow writer only delays the template fallback
func LLMConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxRetries:      2,
		Multiplier:      2.0,
	}
}

// delay returns InitialInterval * Multiplier^n; retry-go caps it at MaxInterval
func (c BackoffConfig) delay(n uint, _ error, _ *retrygo.Config) time.Duration {
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(c.InitialInterval) * math.Pow(mult, float64(n)))
}

// StatusError carries an HTTP status so the retry policy can inspect it
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.StatusCode)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableHTTPStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// IsNotFound indicates a definitive NXDOMAIN, which shouldn't be retried
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
		if errors.Is(opErr.Err, syscall.ECONNRESET) {
			return true
		}
		if errors.Is(opErr.Err, syscall.EPIPE) {
			return true
		}
	}

	return false
}

func IsRetryableHTTPStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}

	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	if statusCode == http.StatusRequestTimeout {
		return true
	}

	return false
}

// WithBackoff retries fn on transient network and HTTP status errors
func WithBackoff(ctx context.Context, cfg BackoffConfig, fn func() error) error {
	return WithBackoffIf(ctx, cfg, IsRetryableError, fn)
}

// WithBackoffIf retries fn while retryable reports true, up to cfg.MaxRetries extra attempts.
// The last error is returned unwrapped; a cancelled ctx returns ctx.Err().
func WithBackoffIf(ctx context.Context, cfg BackoffConfig, retryable func(error) bool, fn func() error) error {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return retrygo.Do(fn,
		retrygo.Context(ctx),
		retrygo.Attempts(uint(maxRetries+1)),
		retrygo.Delay(cfg.InitialInterval),
		retrygo.MaxDelay(cfg.MaxInterval),
		retrygo.DelayType(cfg.delay),
		retrygo.RetryIf(retryable),
		retrygo.LastErrorOnly(true),
	)
}
