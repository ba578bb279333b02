package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Watcher is the poll-based observer client: it fetches a read endpoint on
// a fixed interval, diffs the body against the last-known value and invokes
// OnChange only when the value moved. Transport failures are retried after
// a fixed delay up to MaxFailures consecutive attempts; a success resets
// the count. Functionally equivalent to a push subscription, just with
// higher latency.
type Watcher struct {
	URL      string
	Interval time.Duration

	// RetryDelay is waited after a failed poll before the next attempt.
	RetryDelay time.Duration

	// MaxFailures bounds consecutive failures before Run gives up.
	MaxFailures int

	Client   *http.Client
	OnChange func(body []byte)
}

func (w *Watcher) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}

// Run polls until the context is cancelled or MaxFailures consecutive polls
// fail. The first successful poll always invokes OnChange (the initial
// snapshot); afterwards only changed values do.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	retryDelay := w.RetryDelay
	if retryDelay <= 0 {
		retryDelay = interval
	}
	maxFailures := w.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}

	var last []byte
	seen := false
	failures := 0

	for {
		body, err := w.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures >= maxFailures {
				return fmt.Errorf("gave up after %d consecutive poll failures: %w", failures, err)
			}
			if err := sleep(ctx, retryDelay); err != nil {
				return err
			}
			continue
		}

		failures = 0
		if !seen || string(body) != string(last) {
			seen = true
			last = body
			if w.OnChange != nil {
				w.OnChange(body)
			}
		}

		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (w *Watcher) poll(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
