package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"tilegrind/internal/batch"
	"tilegrind/internal/config"
	"tilegrind/internal/logging"
	"tilegrind/internal/worker"
)

type runFlags struct {
	registry       string
	source         string
	dest           string
	target         int
	workers        int
	timeoutSeconds int
}

func (f *runFlags) register(cmd *cobra.Command, withRegistry, withSource bool) {
	if withRegistry {
		cmd.Flags().StringVar(&f.registry, "registry", "", "Tile registry file (overrides config)")
		cmd.Flags().IntVar(&f.target, "target", 0, "Target shard count per tile (overrides config)")
	}
	if withSource {
		cmd.Flags().StringVar(&f.source, "source", "", "Source tree root (overrides config)")
	}
	cmd.Flags().StringVar(&f.dest, "dest", "", "Destination root (overrides config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker pool size, -1 for CPU count (overrides config)")
	cmd.Flags().IntVar(&f.timeoutSeconds, "timeout", 0, "Per-item timeout in seconds (overrides config)")
}

// apply copies the base config and layers the flag overrides on top.
func (f *runFlags) apply(base *config.Config) (*config.Config, error) {
	cfg := *base
	var err error
	overrides := []struct {
		value  string
		target *string
	}{
		{f.registry, &cfg.Paths.Registry},
		{f.source, &cfg.Paths.SourceRoot},
		{f.dest, &cfg.Paths.DestRoot},
	}
	for _, o := range overrides {
		if strings.TrimSpace(o.value) == "" {
			continue
		}
		if *o.target, err = config.ExpandPath(o.value); err != nil {
			return nil, err
		}
	}
	if f.target > 0 {
		cfg.Batch.TargetCount = f.target
	}
	if f.workers != 0 {
		cfg.Batch.Workers = f.workers
	}
	if f.timeoutSeconds > 0 {
		cfg.Engine.TimeoutSeconds = f.timeoutSeconds
	}
	return &cfg, nil
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch remaining shards for every registry tile",
		Long: "Compares each registry tile against its committed progress record and " +
			"dispatches engine pipelines for the shards still missing. Finished tiles " +
			"are skipped; interrupted tiles resume where the last run left off.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(ctx, cmd, &flags, func(orch *batch.Orchestrator) (batch.Summary, error) {
				return orch.Download(cmd.Context())
			})
		},
	}
	flags.register(cmd, true, false)
	return cmd
}

func newDenoiseCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "denoise",
		Short: "Run the statistical noise filter across a tile tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(ctx, cmd, &flags, func(orch *batch.Orchestrator) (batch.Summary, error) {
				return orch.Denoise(cmd.Context())
			})
		},
	}
	flags.register(cmd, false, true)
	return cmd
}

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var threshold float64
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Split oversized tiles across a tile tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(ctx, cmd, &flags, func(orch *batch.Orchestrator) (batch.Summary, error) {
				return orch.Correct(cmd.Context())
			}, func(cfg *config.Config) {
				if threshold > 0 {
					cfg.Correction.ExtentThreshold = threshold
				}
			})
		},
	}
	flags.register(cmd, false, true)
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Extent threshold in projected units (overrides config)")
	return cmd
}

// runBatch shares the orchestration plumbing across the three run modes. Item
// failures are reported in the summary and do not affect the exit status;
// only orchestration errors do.
func runBatch(ctx *commandContext, cmd *cobra.Command, flags *runFlags,
	run func(*batch.Orchestrator) (batch.Summary, error), tweaks ...func(*config.Config)) error {
	base, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg, err := flags.apply(base)
	if err != nil {
		return err
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	launcher := &worker.ProcessLauncher{ConfigPath: ctx.resolvedConfigPath()}
	summary, err := run(batch.New(cfg, launcher, logger))
	if err != nil {
		return err
	}

	renderSummary(cmd.OutOrStdout(), summary)
	return nil
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}
