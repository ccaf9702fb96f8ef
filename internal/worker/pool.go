package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tilegrind/internal/logging"
)

// Launcher starts one worker for one item and blocks until it reports a
// result or ctx expires. Implementations must reap the worker before
// returning a ctx error.
type Launcher interface {
	Launch(ctx context.Context, it Item) (Result, error)
}

// Pool runs items across a fixed number of concurrent workers. All items are
// known up front; there is no work stealing or requeueing.
type Pool struct {
	launcher Launcher
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPool sizes a dispatch pool. workers is clamped to at least one.
func NewPool(launcher Launcher, workers int, timeout time.Duration, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{launcher: launcher, workers: workers, timeout: timeout, logger: logger}
}

// Run dispatches every item and returns one result per item, in submission
// order. A failed or timed-out item never stops the rest of the batch; Run
// itself only stops early when ctx is cancelled, and even then the already
// dispatched items run to their own conclusion.
func (p *Pool) Run(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, it := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			started := time.Now()
			for j, rest := range items[i:] {
				results[i+j] = failure(rest, OutcomeTimeout, started, ctx.Err())
			}
			wg.Wait()
			return results
		}

		wg.Add(1)
		go func(i int, it Item) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.runOne(ctx, it)
		}(i, it)
	}

	wg.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, it Item) Result {
	started := time.Now()
	itemCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.timeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	res, err := p.launcher.Launch(itemCtx, it)
	switch {
	case err == nil:
		res.Index = it.Index
		if res.Key == "" {
			res.Key = it.Key
		}
		return res
	case errors.Is(itemCtx.Err(), context.DeadlineExceeded):
		p.logger.Warn("worker killed on timeout",
			logging.FieldTile, it.Key, logging.FieldItemIndex, it.Index,
			"timeout", p.timeout.String())
		return failure(it, OutcomeTimeout, started, errors.New("hard timeout of "+p.timeout.String()+" exceeded"))
	default:
		// The worker process itself died or produced an unreadable report.
		p.logger.Error("worker failed before reporting",
			logging.FieldTile, it.Key, logging.FieldItemIndex, it.Index, "error", err)
		return failure(it, OutcomeEngineFailed, started, err)
	}
}
