package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for batch run session identifiers.
	FieldRunID = "run_id"
	// FieldTile is the standardized structured logging key for tile destination keys.
	FieldTile = "tile"
	// FieldItemIndex is the standardized structured logging key for work item indexes.
	FieldItemIndex = "item_index"
	// FieldEventType is the standardized structured logging key for event categories.
	FieldEventType = "event_type"
	// FieldErrorHint points operators at the likely remediation for a failure.
	FieldErrorHint = "error_hint"
)

type contextKey int

const (
	tileContextKey contextKey = iota
	itemIndexContextKey
	runIDContextKey
)

// WithTile stores the tile destination key on the context.
func WithTile(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, tileContextKey, key)
}

// WithItemIndex stores the work item index on the context.
func WithItemIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, itemIndexContextKey, index)
}

// WithRunID stores the batch run session identifier on the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDContextKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(runIDContextKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if tile, ok := ctx.Value(tileContextKey).(string); ok && tile != "" {
		fields = append(fields, slog.String(FieldTile, tile))
	}
	if index, ok := ctx.Value(itemIndexContextKey).(int); ok {
		fields = append(fields, slog.Int(FieldItemIndex, index))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
