package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/miradorstack/instana-sre/internal/config"
)

// Policy is a bounded exponential retry policy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Retryable decides whether a failed attempt may be repeated. Nil never retries.
	Retryable func(error) bool
}

// FromConfig builds a Policy that retries on the configured HTTP statuses.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Multiplier:  cfg.Multiplier,
		Retryable:   OnStatus(cfg.RetryableStatuses...),
	}
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// OnStatus returns a predicate matching errors whose HTTP status is one of statuses.
func OnStatus(statuses ...int) func(error) bool {
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return func(err error) bool {
		var sc StatusCoder
		if !errors.As(err, &sc) {
			return false
		}
		_, ok := set[sc.HTTPStatus()]
		return ok
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, the attempts are used up,
// or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.BaseDelay
	expo.RandomizationFactor = 0
	expo.Multiplier = p.Multiplier
	if expo.Multiplier < 1 {
		expo.Multiplier = 2
	}
	if p.MaxDelay > 0 {
		expo.MaxInterval = p.MaxDelay
	}
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying after failure",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	return backoff.RetryNotify(operation, policy, notify)
}
