package batch

import "github.com/framery/outliner/internal/domain/outline"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of converting one item in a batch or
// per-character job. A result list always mirrors the input list: same
// length, same order, one entry per item regardless of failures.
type Result struct {
	id      string
	status  ItemStatus
	outline outline.Outline
	err     error
}

// NewOK creates a successful item result carrying its outline.
func NewOK(id string, o outline.Outline) Result {
	return Result{id: id, status: StatusOK, outline: o}
}

// NewError creates a failed item result.
func NewError(id string, err error) Result {
	return Result{id: id, status: StatusError, err: err}
}

// ID returns the item identifier (the input name, or the character for
// per-glyph conversions).
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Outline returns the converted outline. Zero-valued on error results.
func (r Result) Outline() outline.Outline { return r.outline }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
