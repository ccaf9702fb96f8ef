// Package logging builds the slog loggers used across tilegrind.
//
// It provides a console handler that renders component-prefixed key=value
// lines, a JSON handler for machine consumption, standardized field keys, and
// a no-op logger for tests. Worker processes inherit the same configuration so
// parent and child log lines interleave consistently.
package logging
