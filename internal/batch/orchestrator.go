package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"tilegrind/internal/config"
	"tilegrind/internal/journal"
	"tilegrind/internal/logging"
	"tilegrind/internal/progress"
	"tilegrind/internal/registry"
	"tilegrind/internal/services"
	"tilegrind/internal/worker"
)

const lockFileName = ".tilegrind.lock"

// Summary aggregates one run's outcomes. Item failures live here, not in the
// orchestrator's error return.
type Summary struct {
	SessionID  string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Skipped    int
	Succeeded  int
	TimedOut   int
	Failed     int
	Points     int64
	Results    []worker.Result
	Skips      []Skip
}

// Orchestrator owns one batch run end to end: locking, preflight, dispatch,
// aggregation, and the run journal.
type Orchestrator struct {
	cfg      *config.Config
	launcher worker.Launcher
	logger   *slog.Logger
}

// New builds an orchestrator. A nil launcher gets the process launcher.
func New(cfg *config.Config, launcher worker.Launcher, logger *slog.Logger) *Orchestrator {
	if launcher == nil {
		launcher = &worker.ProcessLauncher{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{cfg: cfg, launcher: launcher, logger: logger}
}

// Download partitions the registry against committed progress and dispatches
// the tiles that still need shards.
func (o *Orchestrator) Download(ctx context.Context) (Summary, error) {
	return o.run(ctx, "download", func() ([]worker.Item, []Skip, error) {
		tiles, err := registry.Load(o.cfg.Paths.Registry)
		if err != nil {
			return nil, nil, services.Wrap(services.ErrConfiguration, "orchestrator", "load registry", "", err)
		}
		store := progress.NewStore(o.cfg.Paths.DestRoot)
		return PartitionDownloads(tiles, store, o.cfg.Paths.DestRoot, o.cfg.Batch.TargetCount)
	})
}

// Denoise dispatches the statistical noise filter across the source tree,
// mirroring outputs below the destination root.
func (o *Orchestrator) Denoise(ctx context.Context) (Summary, error) {
	return o.run(ctx, "denoise", func() ([]worker.Item, []Skip, error) {
		if err := o.checkReadable(o.cfg.Paths.SourceRoot); err != nil {
			return nil, nil, err
		}
		return EnumerateDenoise(o.cfg.Paths.SourceRoot, o.cfg.Paths.DestRoot)
	})
}

// Correct dispatches the oversized-tile correction pass across the source
// tree, mirroring outputs below the destination root.
func (o *Orchestrator) Correct(ctx context.Context) (Summary, error) {
	return o.run(ctx, "correct", func() ([]worker.Item, []Skip, error) {
		if err := o.checkReadable(o.cfg.Paths.SourceRoot); err != nil {
			return nil, nil, err
		}
		return EnumerateCorrections(o.cfg.Paths.SourceRoot, o.cfg.Paths.DestRoot, o.cfg.Correction.ExtentThreshold)
	})
}

func (o *Orchestrator) run(ctx context.Context, command string, build func() ([]worker.Item, []Skip, error)) (Summary, error) {
	summary := Summary{
		SessionID: shortSessionID(),
		Command:   command,
		StartedAt: time.Now(),
	}
	ctx = logging.WithRunID(ctx, summary.SessionID)
	logger := logging.WithContext(ctx, o.logger)

	if err := o.prepareDestRoot(); err != nil {
		return summary, err
	}

	lock := flock.New(filepath.Join(o.cfg.Paths.DestRoot, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "orchestrator", "acquire lock", o.cfg.Paths.DestRoot, err)
	}
	if !acquired {
		return summary, services.Wrap(services.ErrConfiguration, "orchestrator", "acquire lock",
			fmt.Sprintf("destination %s is owned by another dispatcher", o.cfg.Paths.DestRoot), nil)
	}
	defer func() { _ = lock.Unlock() }()

	items, skips, err := build()
	if err != nil {
		return summary, err
	}
	summary.Skips = skips
	summary.Skipped = len(skips)
	summary.Total = len(items) + len(skips)
	for _, skip := range skips {
		logger.Info("tile skipped", logging.FieldTile, skip.Key, "reason", skip.Reason)
	}

	if len(items) > 0 {
		timeout := time.Duration(o.cfg.Engine.TimeoutSeconds) * time.Second
		pool := worker.NewPool(o.launcher, o.cfg.Batch.Workers, timeout, logger)
		logger.Info("dispatch started", "command", command,
			"items", len(items), "workers", o.cfg.Batch.Workers, "timeout", timeout.String())
		summary.Results = pool.Run(ctx, items)
	}

	for _, res := range summary.Results {
		switch res.Outcome {
		case worker.OutcomeSucceeded:
			summary.Succeeded++
			summary.Points += res.Points
		case worker.OutcomeTimeout:
			summary.TimedOut++
		default:
			summary.Failed++
		}
	}
	summary.FinishedAt = time.Now()
	logger.Info("dispatch finished", "command", command,
		"total", summary.Total, "skipped", summary.Skipped, "succeeded", summary.Succeeded,
		"timed_out", summary.TimedOut, "failed", summary.Failed, "points", summary.Points)

	o.recordRun(ctx, logger, summary)
	return summary, nil
}

// prepareDestRoot creates the destination root and verifies it is writable
// before any worker starts.
func (o *Orchestrator) prepareDestRoot() error {
	root := strings.TrimSpace(o.cfg.Paths.DestRoot)
	if root == "" {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "preflight", "destination root not configured", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "preflight", root, err)
	}
	if err := unix.Access(root, unix.W_OK); err != nil {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "preflight",
			fmt.Sprintf("destination %s not writable", root), err)
	}
	return nil
}

func (o *Orchestrator) checkReadable(root string) error {
	if strings.TrimSpace(root) == "" {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "preflight", "source root not configured", nil)
	}
	if err := unix.Access(root, unix.R_OK); err != nil {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "preflight",
			fmt.Sprintf("source %s not readable", root), err)
	}
	return nil
}

// recordRun writes the run to the journal. The journal is observational, so
// failures degrade to a warning.
func (o *Orchestrator) recordRun(ctx context.Context, logger *slog.Logger, summary Summary) {
	if strings.TrimSpace(o.cfg.Paths.LogDir) == "" {
		return
	}
	if err := o.cfg.EnsureLogDir(); err != nil {
		logger.Warn("journal skipped", "error", err)
		return
	}
	store, err := journal.Open(o.cfg.JournalPath())
	if err != nil {
		logger.Warn("journal unavailable", "error", err)
		return
	}
	defer store.Close()

	_, err = store.RecordRun(ctx, journal.Run{
		SessionID:  summary.SessionID,
		Command:    summary.Command,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Total:      summary.Total,
		Skipped:    summary.Skipped,
		Succeeded:  summary.Succeeded,
		TimedOut:   summary.TimedOut,
		Failed:     summary.Failed,
		Points:     summary.Points,
	}, summary.Results)
	if err != nil {
		logger.Warn("journal write failed", "error", err)
	}
}

func shortSessionID() string {
	return uuid.NewString()[:8]
}
