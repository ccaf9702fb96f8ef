package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tilegrind/internal/services"
)

// Outcome classifies how an item finished. Every dispatched item produces
// exactly one outcome; failures never abort the batch.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeEngineFailed     Outcome = "engine_failed"
	OutcomeReconcileFailed  Outcome = "reconcile_failed"
	OutcomeCorrectionFailed Outcome = "correction_failed"
)

// Failed reports whether the outcome is any failure class.
func (o Outcome) Failed() bool {
	return o != OutcomeSucceeded
}

// Result is the record a worker process reports back for one item. It crosses
// the process boundary as JSON on the worker's stdout.
type Result struct {
	Index     int     `json:"index"`
	Key       string  `json:"key"`
	Outcome   Outcome `json:"outcome"`
	Points    int64   `json:"points,omitempty"`
	Completed int     `json:"completed,omitempty"`
	Operation string  `json:"operation,omitempty"`
	Error     string  `json:"error,omitempty"`
	Duration  int64   `json:"duration_ms"`
}

// Encode renders the wire form written to the worker's stdout.
func (r Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses the wire form read from a worker's stdout.
func DecodeResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode worker result: %w", err)
	}
	return r, nil
}

// failure builds a classified failure result for an item.
func failure(it Item, outcome Outcome, started time.Time, err error) Result {
	return Result{
		Index:    it.Index,
		Key:      it.Key,
		Outcome:  outcome,
		Error:    err.Error(),
		Duration: time.Since(started).Milliseconds(),
	}
}

// classify maps a wrapped error onto its outcome class.
func classify(err error) Outcome {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, services.ErrReconciliation):
		return OutcomeReconcileFailed
	case errors.Is(err, services.ErrCorrection):
		return OutcomeCorrectionFailed
	default:
		return OutcomeEngineFailed
	}
}
