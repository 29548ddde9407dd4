package chi

import (
	"github.com/framery/outliner/internal/domain/batch"
	"github.com/framery/outliner/internal/domain/outline"
	"github.com/framery/outliner/internal/domain/raster"
)

// errorCode identifies an error category in API responses.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeDecodeFailed     errorCode = "decode_failed"
	codeUnknownJobKind   errorCode = "unknown_job_kind"
	codeBatchTooLarge    errorCode = "batch_too_large"
	codeFontNotFound     errorCode = "font_not_found"
	codeEmptyResult      errorCode = "empty_result"
	codeTraceFailed      errorCode = "trace_failed"
	codeTimeout          errorCode = "timeout"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// batchRequest is the body of POST /v1/convert/batch. Item data travels
// base64-encoded inside JSON so item order survives transport.
type batchRequest struct {
	Items []batchItemRequest `json:"items"`
}

type batchItemRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
	Kind string `json:"kind,omitempty"`
}

// textRequest is the body of POST /v1/convert/text.
type textRequest struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	FontKey  string  `json:"font_key,omitempty"`
	Mode     string  `json:"mode,omitempty"`
}

type trimResponse struct {
	OriginalWidth  int `json:"original_width"`
	OriginalHeight int `json:"original_height"`
	TrimmedWidth   int `json:"trimmed_width"`
	TrimmedHeight  int `json:"trimmed_height"`
	OffsetX        int `json:"offset_x"`
	OffsetY        int `json:"offset_y"`
}

type outlineResponse struct {
	Paths   []string      `json:"paths"`
	ViewBox string        `json:"view_box"`
	Trim    *trimResponse `json:"trim,omitempty"`
}

type batchItemResponse struct {
	ID      string           `json:"id"`
	Status  string           `json:"status"`
	Outline *outlineResponse `json:"outline,omitempty"`
	Error   *errorResponse   `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItemResponse `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func outlineToDTO(o outline.Outline) outlineResponse {
	paths := make([]string, len(o.Paths))
	for i, p := range o.Paths {
		paths[i] = string(p)
	}
	return outlineResponse{
		Paths:   paths,
		ViewBox: o.ViewBox.String(),
		Trim:    trimToDTO(o.Trim),
	}
}

func trimToDTO(t *raster.TrimBox) *trimResponse {
	if t == nil {
		return nil
	}
	return &trimResponse{
		OriginalWidth:  t.OriginalWidth,
		OriginalHeight: t.OriginalHeight,
		TrimmedWidth:   t.TrimmedWidth,
		TrimmedHeight:  t.TrimmedHeight,
		OffsetX:        t.OffsetX,
		OffsetY:        t.OffsetY,
	}
}

func batchResultToDTO(r batch.Result) batchItemResponse {
	item := batchItemResponse{
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if r.Status() == batch.StatusOK {
		o := outlineToDTO(r.Outline())
		item.Outline = &o
	}
	if r.Err() != nil {
		item.Error = &errorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func batchToDTO(results []batch.Result) batchResponse {
	succeeded, failed := 0, 0
	items := make([]batchItemResponse, len(results))
	for i, res := range results {
		items[i] = batchResultToDTO(res)
		if res.Status() == batch.StatusOK {
			succeeded++
		} else {
			failed++
		}
	}
	return batchResponse{Items: items, Succeeded: succeeded, Failed: failed}
}
