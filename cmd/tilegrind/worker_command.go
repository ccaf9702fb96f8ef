package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tilegrind/internal/logging"
	"tilegrind/internal/pipeline"
	"tilegrind/internal/worker"
)

// newWorkerCommand is the hidden re-exec entry point. The dispatcher hands
// one work item on stdin; the result goes to stdout as JSON. Logging stays on
// stderr so stdout carries nothing but the result.
func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    worker.SubcommandName,
		Short:  "Execute one work item from stdin (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			payload, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read work item: %w", err)
			}
			item, err := worker.DecodeItem(bytes.TrimSpace(payload))
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			engine, err := pipeline.NewCommandEngine(cfg.Engine.Binary)
			if err != nil {
				return err
			}

			result := worker.Execute(cmd.Context(), engine, item, logger)
			out, err := result.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
}
