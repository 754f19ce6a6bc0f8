package dispatch

import (
	"context"
	"time"

	"github.com/voxgate/voxgate/pkg/engine"
	"github.com/voxgate/voxgate/pkg/observability"
)

// maxBackoff caps the exponential backoff between attempts.
const maxBackoff = 30 * time.Second

// callWithRetry performs the backend call with a per-attempt timeout and
// bounded retries. Only transient failures (network errors, 5xx, backend
// rate limiting) are retried; everything else surfaces after one attempt.
// Caller cancellation aborts the backoff wait immediately.
func (d *Dispatcher) callWithRetry(ctx context.Context, eng engine.Engine, req *engine.Request) (*engine.Result, error) {
	var lastErr error
	backoff := d.cfg.RetryBackoff

	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			observability.EngineRetriesTotal.WithLabelValues(eng.Name()).Inc()
			d.logger.Warn("retrying backend call",
				"engine", eng.Name(),
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		start := time.Now()
		result, err := eng.Synthesize(attemptCtx, req)
		cancel()

		observability.EngineLatency.WithLabelValues(eng.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			observability.EngineRequestsTotal.WithLabelValues(eng.Name(), "success").Inc()
			return result, nil
		}

		observability.EngineRequestsTotal.WithLabelValues(eng.Name(), "error").Inc()
		lastErr = err

		if !engine.IsTransient(err) {
			break
		}
		if ctx.Err() != nil {
			// The caller is gone; a retry would complete into the void.
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
