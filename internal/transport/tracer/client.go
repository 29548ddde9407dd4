package tracer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/framery/outliner/internal/domain"
	"github.com/framery/outliner/internal/domain/profile"
	"github.com/framery/outliner/internal/domain/raster"
	"github.com/framery/outliner/internal/metrics"
)

const maxErrorBodyBytes = 4 << 10

// Client talks to the contour-tracing engine over HTTP. The engine
// accepts a binarized PNG and returns an SVG document.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the tracing engine settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a tracing engine client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

// Trace sends a binarized raster to the engine and returns the SVG it
// produced. Profile values travel as query parameters so the engine
// can tune contour filtering and curve fitting per job kind.
func (c *Client) Trace(ctx context.Context, buf raster.Buffer, p profile.Profile) ([]byte, error) {
	body, err := encodePNG(buf)
	if err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}

	q := url.Values{}
	q.Set("min_area", strconv.Itoa(p.MinContourArea))
	q.Set("optimize_curves", strconv.FormatBool(p.OptimizeCurves))
	q.Set("threshold", strconv.Itoa(int(p.Threshold)))
	q.Set("fill", p.FillTag)
	q.Set("background", p.BackgroundTag)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/trace?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build trace request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "image/svg+xml")

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.TraceRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("trace request failed: %w: %w", domain.ErrTrace, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.TraceRequestsTotal.WithLabelValues("error").Inc()
		return nil, parseEngineError(resp)
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TraceRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read trace response: %w: %w", domain.ErrTrace, err)
	}

	metrics.TraceRequestsTotal.WithLabelValues("success").Inc()
	metrics.TraceRequestDuration.Observe(duration.Seconds())

	c.logger.Debug("Trace request completed",
		zap.Int("raster_bytes", len(body)),
		zap.Int("svg_bytes", len(doc)),
		zap.Duration("duration", duration))

	return doc, nil
}

// HealthCheck verifies engine availability via its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health check: status %d", resp.StatusCode)
	}
	return nil
}

// encodePNG wraps the buffer pixels as a grayscale image and encodes
// it without copying the pixel data.
func encodePNG(buf raster.Buffer) ([]byte, error) {
	img := &image.Gray{
		Pix:    buf.Pix,
		Stride: buf.Width,
		Rect:   image.Rect(0, 0, buf.Width, buf.Height),
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// parseEngineError extracts a human-readable message from an engine
// error response. All errors wrap domain.ErrTrace for correct 502 mapping.
func parseEngineError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	detail := extractDetail(body)
	if detail != "" {
		return fmt.Errorf("tracing engine error %d: %s: %w", resp.StatusCode, detail, domain.ErrTrace)
	}
	if len(body) > 0 {
		return fmt.Errorf("tracing engine error %d: %s: %w", resp.StatusCode, string(body), domain.ErrTrace)
	}
	return fmt.Errorf("tracing engine error %d: %w", resp.StatusCode, domain.ErrTrace)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
