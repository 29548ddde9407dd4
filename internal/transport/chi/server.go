package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/framery/outliner/internal/domain"
	dombatch "github.com/framery/outliner/internal/domain/batch"
	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/outline"
	convertuc "github.com/framery/outliner/internal/usecase/convert"
	healthuc "github.com/framery/outliner/internal/usecase/health"
)

// ImageConverter converts one raster input to an outline. Satisfied by
// the convert service directly or wrapped in the outline cache.
type ImageConverter interface {
	ConvertImage(ctx context.Context, data []byte, kind jobkind.Kind) (outline.Outline, error)
}

// BatchConverter converts an ordered set of raster inputs.
type BatchConverter interface {
	ConvertBatch(ctx context.Context, items []convertuc.NamedInput) ([]dombatch.Result, error)
}

// TextConverter converts rendered text to outlines.
type TextConverter interface {
	ConvertText(ctx context.Context, text string, fontSize float64, fontKey string) (outline.Outline, error)
	ConvertGlyphs(ctx context.Context, text string, fontSize float64, fontKey string) ([]dombatch.Result, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the conversion pipeline over HTTP.
type Server struct {
	images        ImageConverter
	batch         BatchConverter
	text          TextConverter
	health        *healthuc.Service
	maxBodyBytes  int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxBodyBytes caps raw upload
// bodies; zero means the converter's own input limit is the only cap.
func NewServer(
	images ImageConverter,
	batch BatchConverter,
	text TextConverter,
	health *healthuc.Service,
	maxBodyBytes int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		images:       images,
		batch:        batch,
		text:         text,
		health:       health,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDecode, http.StatusBadRequest, codeDecodeFailed),
		sentinelHandler(domain.ErrUnknownJobKind, http.StatusBadRequest, codeUnknownJobKind),
		sentinelHandler(domain.ErrBatchTooLarge, http.StatusBadRequest, codeBatchTooLarge),
		sentinelHandler(domain.ErrFontNotFound, http.StatusNotFound, codeFontNotFound),
		sentinelHandler(domain.ErrEmptyResult, http.StatusUnprocessableEntity, codeEmptyResult),
		sentinelHandler(domain.ErrTrace, http.StatusBadGateway, codeTraceFailed),
	}
	return s
}

// Routes mounts the API on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/convert/image", s.ConvertImage)
	r.Post("/v1/convert/shape", s.ConvertShape)
	r.Post("/v1/convert/batch", s.ConvertBatch)
	r.Post("/v1/convert/text", s.ConvertText)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// ConvertImage handles POST /v1/convert/image. The raster travels as
// the raw request body; the job kind is a query parameter.
func (s *Server) ConvertImage(w http.ResponseWriter, r *http.Request) {
	kind := jobkind.Vectorize
	if k := r.URL.Query().Get("kind"); k != "" {
		kind = jobkind.Kind(k)
	}

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	o, err := s.images.ConvertImage(r.Context(), data, kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outlineToDTO(o))
}

// ConvertShape handles POST /v1/convert/shape.
func (s *Server) ConvertShape(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	o, err := s.images.ConvertImage(r.Context(), data, jobkind.Shape)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outlineToDTO(o))
}

// ConvertBatch handles POST /v1/convert/batch.
func (s *Server) ConvertBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	items := make([]convertuc.NamedInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = convertuc.NamedInput{
			Name: item.Name,
			Data: item.Data,
			Kind: jobkind.Kind(item.Kind),
		}
	}

	results, err := s.batch.ConvertBatch(r.Context(), items)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batchToDTO(results))
}

// ConvertText handles POST /v1/convert/text.
func (s *Server) ConvertText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	mode := convertuc.TextCombined
	if req.Mode != "" {
		mode = convertuc.TextMode(req.Mode)
	}
	if !mode.IsValid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("text mode %q is not supported", req.Mode))
		return
	}

	if mode == convertuc.TextIndividual {
		results, err := s.text.ConvertGlyphs(r.Context(), req.Text, req.FontSize, req.FontKey)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, batchToDTO(results))
		return
	}

	o, err := s.text.ConvertText(r.Context(), req.Text, req.FontSize, req.FontKey)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outlineToDTO(o))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// readBody reads a raw upload body, enforcing the transport-level size
// cap. Writes the error response itself when reading fails.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := r.Body
	if s.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, codeValidationFailed,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Failed to read request body")
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrDecode,
		domain.ErrTrace,
		domain.ErrEmptyResult,
		domain.ErrFontNotFound,
		domain.ErrUnknownJobKind,
		domain.ErrBatchTooLarge,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "item timed out"
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func batchErrorCode(err error) errorCode {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return codeValidationFailed
	case errors.Is(err, domain.ErrDecode):
		return codeDecodeFailed
	case errors.Is(err, domain.ErrUnknownJobKind):
		return codeUnknownJobKind
	case errors.Is(err, domain.ErrEmptyResult):
		return codeEmptyResult
	case errors.Is(err, domain.ErrTrace):
		return codeTraceFailed
	case errors.Is(err, context.DeadlineExceeded):
		return codeTimeout
	default:
		return codeInternalError
	}
}
