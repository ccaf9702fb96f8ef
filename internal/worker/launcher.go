package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// SubcommandName is the hidden CLI subcommand a worker process runs under.
const SubcommandName = "worker"

// ProcessLauncher runs each item in a re-exec of the current binary. The
// child gets the item as JSON on stdin and reports a Result as JSON on
// stdout; its stderr (logging) passes straight through to the dispatcher's.
type ProcessLauncher struct {
	// ConfigPath, when set, is forwarded so the child resolves the same
	// configuration file as the dispatcher.
	ConfigPath string
}

// Launch starts a worker process for one item. On ctx expiry the whole
// process group is killed with SIGKILL: the engine holds no state worth a
// graceful shutdown, and a wedged native call would ignore anything softer.
func (l *ProcessLauncher) Launch(ctx context.Context, it Item) (Result, error) {
	exe, err := os.Executable()
	if err != nil {
		return Result{}, fmt.Errorf("locate executable: %w", err)
	}
	payload, err := it.Encode()
	if err != nil {
		return Result{}, err
	}

	args := []string{SubcommandName}
	if l.ConfigPath != "" {
		args = append(args, "--config", l.ConfigPath)
	}

	// Not CommandContext: cancellation must kill the group, not just the
	// direct child, or an engine grandchild keeps writing to staging.
	cmd := exec.Command(exe, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start worker: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		<-done
		return Result{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return Result{}, fmt.Errorf("worker exited: %w", err)
		}
	}

	res, err := DecodeResult(bytes.TrimSpace(stdout.Bytes()))
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
