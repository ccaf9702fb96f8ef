package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"tilegrind/internal/services"
)

// Engine executes one pipeline synchronously and reports the number of points
// processed when the engine exposes it. A count of zero with a nil error is a
// legitimate outcome: a scoped read may match no points.
type Engine interface {
	Execute(ctx context.Context, p Pipeline) (int64, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte, onStdout func(string)) error
}

// Option configures the command engine.
type Option func(*CommandEngine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *CommandEngine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// CommandEngine drives an engine binary that accepts pipeline JSON on stdin.
type CommandEngine struct {
	binary string
	exec   Executor
}

// NewCommandEngine constructs an engine wrapper around the given binary.
func NewCommandEngine(binary string, opts ...Option) (*CommandEngine, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("engine binary required")
	}
	engine := &CommandEngine{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Execute runs the engine synchronously. The caller bounds the call through
// ctx; the engine itself is never asked to stop gracefully.
func (e *CommandEngine) Execute(ctx context.Context, p Pipeline) (int64, error) {
	payload, err := p.Marshal()
	if err != nil {
		return 0, services.Wrap(services.ErrEngine, "engine", "marshal pipeline", "", err)
	}

	var count int64
	var haveCount bool
	err = e.exec.Run(ctx, e.binary, []string{"pipeline", "--stdin"}, payload, func(line string) {
		if n, ok := parsePointCount(line); ok {
			count = n
			haveCount = true
		}
	})
	if err != nil {
		return 0, services.Wrap(services.ErrEngine, "engine", "execute pipeline", "", err)
	}
	if !haveCount {
		return 0, nil
	}
	return count, nil
}

// parsePointCount accepts a bare integer line, the engine's point-count
// report. Anything else is diagnostic chatter and is ignored.
func parsePointCount(line string) (int64, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	var wg sync.WaitGroup
	var stderrTail []string
	var mu sync.Mutex

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	})
	go scan(stderr, func(line string) {
		mu.Lock()
		stderrTail = append(stderrTail, line)
		if len(stderrTail) > 10 {
			stderrTail = stderrTail[1:]
		}
		mu.Unlock()
	})

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		mu.Lock()
		tail := strings.TrimSpace(strings.Join(stderrTail, "; "))
		mu.Unlock()
		if tail != "" {
			return fmt.Errorf("engine exited: %w (%s)", err, tail)
		}
		return fmt.Errorf("engine exited: %w", err)
	}
	return nil
}
