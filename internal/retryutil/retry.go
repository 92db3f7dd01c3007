package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultDelay = 2 * time.Second
)

// Do runs fn up to attempts+1 times, sleeping delay (doubled each retry)
// between tries. retryable decides whether a failure is worth another try;
// a nil retryable retries every error. The last error is returned.
func Do(ctx context.Context, logger *slog.Logger, name string, attempts int, delay time.Duration, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if attempts < 0 {
		attempts = 0
	}
	if delay <= 0 {
		delay = defaultDelay
	}

	var err error
	for try := 0; ; try++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if try >= attempts || (retryable != nil && !retryable(err)) {
			return err
		}
		if logger != nil {
			logger.Warn(name+"_retry", "attempt", try+1, "delay", delay.String(), "error", err.Error())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
