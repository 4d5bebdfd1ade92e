package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ownlingo/phrasebatch/translator"
)

// IsRetryable checks if an error is a backend failure worth sending again
func IsRetryable(err error) bool {
	var backendErr *translator.BackendError
	return errors.As(err, &backendErr) && backendErr.Retryable()
}

// Config holds retry configuration
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// OnRetry is called before each backoff wait
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// WithBaseDelay returns a copy of the default configuration whose backoff
// starts at delay and allows maxRetries retries
func WithBaseDelay(maxRetries int, delay time.Duration) *Config {
	config := DefaultConfig()
	config.MaxRetries = maxRetries
	if delay > 0 {
		config.InitialBackoff = delay
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	return config
}

// Do executes the operation with exponential backoff retry.
// The operation runs at most MaxRetries+1 times.
func Do(ctx context.Context, config *Config, operation func() error) error {
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == config.MaxRetries {
			break
		}

		backoff := Backoff(config, attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Backoff returns the wait before retry number attempt+1
func Backoff(config *Config, attempt int) time.Duration {
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	backoff := float64(config.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}
