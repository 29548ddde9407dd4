package domain

import "errors"

var (
	// ErrInvalidInput signals missing, empty, or oversized input rejected
	// before any processing begins.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecode signals a bitmap that could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrTrace signals a failure reported by the contour-tracing engine.
	ErrTrace = errors.New("trace failed")
	// ErrEmptyResult signals a decomposition that produced zero path records.
	ErrEmptyResult = errors.New("no path records produced")
	// ErrFontNotFound signals an unknown font key.
	ErrFontNotFound = errors.New("font not found")
	// ErrUnknownJobKind signals an unrecognized conversion kind.
	ErrUnknownJobKind = errors.New("unknown job kind")
	// ErrBatchTooLarge signals a batch exceeding the configured item limit.
	ErrBatchTooLarge = errors.New("batch too large")
)
