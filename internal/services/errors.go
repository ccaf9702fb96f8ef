package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngine marks failures raised by the external point-cloud engine.
	ErrEngine = errors.New("engine execution failure")
	// ErrTimeout marks work items that exceeded their wall-clock bound.
	ErrTimeout = errors.New("timeout")
	// ErrReconciliation marks unexpected staging layouts, such as a colliding
	// global shard id.
	ErrReconciliation = errors.New("reconciliation anomaly")
	// ErrCorrection marks tiles that could not be read or written during the
	// correction pass.
	ErrCorrection = errors.New("correction io error")
	// ErrConfiguration marks per-key configuration problems, such as a corrupt
	// progress record. The affected tile is skipped; the batch continues.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrEngine
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
