package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tilegrind/internal/corrector"
	"tilegrind/internal/logging"
	"tilegrind/internal/pipeline"
	"tilegrind/internal/progress"
	"tilegrind/internal/reconcile"
	"tilegrind/internal/services"
)

// Execute runs one item inside a worker process and returns its result. It
// never returns an error: every failure is folded into a classified result so
// the dispatcher can keep the batch moving.
func Execute(ctx context.Context, engine pipeline.Engine, it Item, logger *slog.Logger) Result {
	started := time.Now()
	logger = logging.WithContext(logging.WithItemIndex(logging.WithTile(ctx, it.Key), it.Index), logger)
	logger.Info("item started", "kind", string(it.Kind))

	var res Result
	switch it.Kind {
	case KindDownload:
		res = executeDownload(ctx, engine, it, started)
	case KindDenoise:
		res = executeDenoise(ctx, engine, it, started)
	case KindCorrect:
		res = executeCorrect(it, started)
	default:
		res = failure(it, OutcomeEngineFailed, started, fmt.Errorf("unknown work item kind %q", it.Kind))
	}

	if res.Outcome.Failed() {
		logger.Error("item failed", "outcome", string(res.Outcome), "error", res.Error)
	} else {
		logger.Info("item finished", "points", res.Points, "operation", res.Operation,
			"duration_ms", res.Duration)
	}
	return res
}

func executeDownload(ctx context.Context, engine pipeline.Engine, it Item, started time.Time) Result {
	if err := os.MkdirAll(it.StagingDir, 0o755); err != nil {
		return failure(it, OutcomeEngineFailed, started, fmt.Errorf("create staging dir: %w", err))
	}

	points, err := engine.Execute(ctx, pipeline.Pipeline{Stages: it.Stages})
	if err != nil {
		// The whole dispatch is discarded: partially staged shards must not
		// be promoted against a resume offset computed for the full scope.
		os.RemoveAll(it.StagingDir)
		return failure(it, classify(err), started, err)
	}

	rec := reconcile.New(progress.NewStore(it.DestRoot))
	completed, err := rec.Reconcile(it.StagingDir, it.DestDir(), it.Key, it.ResumeOffset, it.TargetCount)
	if err != nil {
		return failure(it, classify(err), started, err)
	}

	return Result{
		Index:     it.Index,
		Key:       it.Key,
		Outcome:   OutcomeSucceeded,
		Points:    points,
		Completed: completed,
		Duration:  time.Since(started).Milliseconds(),
	}
}

func executeDenoise(ctx context.Context, engine pipeline.Engine, it Item, started time.Time) Result {
	for _, dir := range []string{filepath.Dir(it.StagingPath), filepath.Dir(it.OutputPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failure(it, OutcomeEngineFailed, started, fmt.Errorf("create output dir: %w", err))
		}
	}
	defer os.Remove(it.StagingPath)

	points, err := engine.Execute(ctx, pipeline.Pipeline{Stages: it.Stages})
	if err != nil {
		return failure(it, classify(err), started, err)
	}
	if err := os.Rename(it.StagingPath, it.OutputPath); err != nil {
		err = services.Wrap(services.ErrEngine, "worker", "promote filtered tile", it.Key, err)
		return failure(it, classify(err), started, err)
	}

	return Result{
		Index:    it.Index,
		Key:      it.Key,
		Outcome:  OutcomeSucceeded,
		Points:   points,
		Duration: time.Since(started).Milliseconds(),
	}
}

func executeCorrect(it Item, started time.Time) Result {
	if err := os.MkdirAll(filepath.Dir(it.OutputPath), 0o755); err != nil {
		return failure(it, OutcomeCorrectionFailed, started, fmt.Errorf("create output dir: %w", err))
	}

	decision, err := corrector.Correct(it.SourcePath, it.OutputPath, it.Threshold)
	if err != nil {
		return failure(it, classify(err), started, err)
	}

	return Result{
		Index:     it.Index,
		Key:       it.Key,
		Outcome:   OutcomeSucceeded,
		Points:    int64(decision.Retained),
		Operation: decision.Operation(),
		Duration:  time.Since(started).Milliseconds(),
	}
}
