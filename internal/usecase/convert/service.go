package convert

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/framery/outliner/internal/domain"
	"github.com/framery/outliner/internal/domain/batch"
	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/outline"
	"github.com/framery/outliner/internal/domain/profile"
	"github.com/framery/outliner/internal/domain/raster"
	"github.com/framery/outliner/internal/metrics"
)

// Default limits, overridable via WithLimits.
const (
	DefaultRecordCap     = 200
	DefaultMaxBatchSize  = 20
	DefaultMaxInputBytes = 10 << 20
	DefaultItemTimeout   = 30 * time.Second
)

// TextMode selects whole-string versus per-character text conversion.
type TextMode string

// Text conversion modes.
const (
	TextCombined   TextMode = "combined"
	TextIndividual TextMode = "individual"
)

// IsValid checks if the mode is one of the supported values.
func (m TextMode) IsValid() bool { return m == TextCombined || m == TextIndividual }

// NamedInput is one item of a batch conversion.
type NamedInput struct {
	Name string
	Data []byte
	// Kind defaults to vectorize when empty.
	Kind jobkind.Kind
}

// Service composes normalizer, text rasterizer, tracer, and decomposer
// into conversion jobs with per-item failure isolation.
type Service struct {
	norm     Normalizer
	text     TextRasterizer
	tracer   Tracer
	dec      Decomposer
	profiles *profile.Registry

	recordCap     int
	maxBatchSize  int
	maxInputBytes int
	itemTimeout   time.Duration
}

// New creates a conversion service.
func New(norm Normalizer, text TextRasterizer, tracer Tracer, dec Decomposer, profiles *profile.Registry) *Service {
	return &Service{
		norm:          norm,
		text:          text,
		tracer:        tracer,
		dec:           dec,
		profiles:      profiles,
		recordCap:     DefaultRecordCap,
		maxBatchSize:  DefaultMaxBatchSize,
		maxInputBytes: DefaultMaxInputBytes,
		itemTimeout:   DefaultItemTimeout,
	}
}

// WithLimits configures the extraction cap, batch size, input size, and
// per-item timeout. Non-positive values keep the defaults.
func (s *Service) WithLimits(recordCap, maxBatchSize, maxInputBytes int, itemTimeout time.Duration) *Service {
	if recordCap > 0 {
		s.recordCap = recordCap
	}
	if maxBatchSize > 0 {
		s.maxBatchSize = maxBatchSize
	}
	if maxInputBytes > 0 {
		s.maxInputBytes = maxInputBytes
	}
	if itemTimeout > 0 {
		s.itemTimeout = itemTimeout
	}
	return s
}

// ConvertImage runs the single-item pipeline on uploaded bitmap bytes.
// Any stage error aborts and surfaces immediately; there is no partial
// result.
func (s *Service) ConvertImage(ctx context.Context, data []byte, kind jobkind.Kind) (outline.Outline, error) {
	if len(data) == 0 {
		return outline.Outline{}, fmt.Errorf("empty input: %w", domain.ErrInvalidInput)
	}
	if len(data) > s.maxInputBytes {
		return outline.Outline{}, fmt.Errorf("input of %d bytes exceeds %d: %w", len(data), s.maxInputBytes, domain.ErrInvalidInput)
	}
	p, err := s.profileFor(kind)
	if err != nil {
		return outline.Outline{}, err
	}

	start := time.Now()
	buf, trim, err := s.norm.Normalize(data, p, kind)
	metrics.StageDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(kind)
		return outline.Outline{}, fmt.Errorf("normalize: %w", err)
	}

	o, err := s.traceAndDecompose(ctx, buf, p, kind)
	if err != nil {
		s.fail(kind)
		return outline.Outline{}, err
	}
	if kind == jobkind.SmartCrop {
		o.Trim = trim
	}
	s.succeed(kind, o)
	return o, nil
}

// ConvertShape converts an uploaded shape sketch: trim, then trace with
// the fine-detail shape profile, preserving holes.
func (s *Service) ConvertShape(ctx context.Context, data []byte) (outline.Outline, error) {
	return s.ConvertImage(ctx, data, jobkind.Shape)
}

// ConvertBatch converts an ordered list of named inputs. Each item runs
// the single-item pipeline independently: a failure on one item is
// recorded in its result slot without aborting the rest. The result list
// always has the same length and order as the input.
func (s *Service) ConvertBatch(ctx context.Context, items []NamedInput) ([]batch.Result, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items supplied: %w", domain.ErrInvalidInput)
	}
	if len(items) > s.maxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds %d items: %w", len(items), s.maxBatchSize, domain.ErrBatchTooLarge)
	}

	// Items run sequentially, one fully completed pipeline after another:
	// the tracer gives no concurrency guarantee on overlapping buffers,
	// and sequential runs bound peak memory per request.
	results := make([]batch.Result, len(items))
	for i, item := range items {
		kind := item.Kind
		if kind == "" {
			kind = jobkind.Vectorize
		}
		o, err := s.runItem(ctx, func(itemCtx context.Context) (outline.Outline, error) {
			return s.ConvertImage(itemCtx, item.Data, kind)
		})
		if err != nil {
			results[i] = batch.NewError(item.Name, err)
			continue
		}
		results[i] = batch.NewOK(item.Name, o)
	}
	return results, nil
}

// ConvertText rasterizes the whole string once and runs the pipeline a
// single time.
func (s *Service) ConvertText(ctx context.Context, text string, fontSize float64, fontKey string) (outline.Outline, error) {
	if strings.TrimSpace(text) == "" {
		return outline.Outline{}, fmt.Errorf("empty text: %w", domain.ErrInvalidInput)
	}
	p, err := s.profileFor(jobkind.Text)
	if err != nil {
		return outline.Outline{}, err
	}

	start := time.Now()
	img, err := s.text.RasterizeText(text, fontSize, fontKey)
	metrics.StageDuration.WithLabelValues("rasterize").Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(jobkind.Text)
		return outline.Outline{}, fmt.Errorf("rasterize text: %w", err)
	}

	o, err := s.convertRendered(ctx, img, p)
	if err != nil {
		s.fail(jobkind.Text)
		return outline.Outline{}, err
	}
	s.succeed(jobkind.Text, o)
	return o, nil
}

// ConvertGlyphs converts each non-whitespace character independently.
// One glyph's failure, whether it failed to render or failed in the
// pipeline, is recorded in its result slot; the other glyphs are
// unaffected. Result order mirrors character order.
func (s *Service) ConvertGlyphs(ctx context.Context, text string, fontSize float64, fontKey string) ([]batch.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text: %w", domain.ErrInvalidInput)
	}
	p, err := s.profileFor(jobkind.Text)
	if err != nil {
		return nil, err
	}

	glyphs, err := s.text.RasterizeGlyphs(text, fontSize, fontKey)
	if err != nil {
		return nil, fmt.Errorf("rasterize glyphs: %w", err)
	}

	results := make([]batch.Result, len(glyphs))
	for i, g := range glyphs {
		if g.Err != nil {
			s.fail(jobkind.Text)
			results[i] = batch.NewError(string(g.Char), fmt.Errorf("glyph %q: %w", g.Char, g.Err))
			continue
		}
		img := g.Image
		o, err := s.runItem(ctx, func(itemCtx context.Context) (outline.Outline, error) {
			return s.convertRendered(itemCtx, img, p)
		})
		if err != nil {
			s.fail(jobkind.Text)
			results[i] = batch.NewError(string(g.Char), fmt.Errorf("glyph %q: %w", g.Char, err))
			continue
		}
		s.succeed(jobkind.Text, o)
		results[i] = batch.NewOK(string(g.Char), o)
	}
	return results, nil
}

// convertRendered feeds a rendered text bitmap through the same
// normalize-trace-decompose chain an upload goes through.
func (s *Service) convertRendered(ctx context.Context, img image.Image, p profile.Profile) (outline.Outline, error) {
	start := time.Now()
	buf, _, err := s.norm.NormalizeImage(img, p, jobkind.Text)
	metrics.StageDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())
	if err != nil {
		return outline.Outline{}, fmt.Errorf("normalize: %w", err)
	}
	return s.traceAndDecompose(ctx, buf, p, jobkind.Text)
}

func (s *Service) runItem(ctx context.Context, run func(context.Context) (outline.Outline, error)) (outline.Outline, error) {
	// A slow item becomes that item's error slot instead of aborting the
	// whole job.
	itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()
	return run(itemCtx)
}

func (s *Service) traceAndDecompose(ctx context.Context, buf raster.Buffer, p profile.Profile, kind jobkind.Kind) (outline.Outline, error) {
	start := time.Now()
	doc, err := s.tracer.Trace(ctx, buf, p)
	metrics.StageDuration.WithLabelValues("trace").Observe(time.Since(start).Seconds())
	if err != nil {
		return outline.Outline{}, fmt.Errorf("trace: %w", err)
	}

	mode := outline.Flatten
	if kind.PreservesHoles() {
		mode = outline.Compound
	}

	start = time.Now()
	paths, vb, err := s.dec.Decompose(doc, mode, s.recordCap)
	metrics.StageDuration.WithLabelValues("decompose").Observe(time.Since(start).Seconds())
	if err != nil {
		return outline.Outline{}, fmt.Errorf("decompose: %w", err)
	}
	return outline.Outline{Paths: paths, ViewBox: vb}, nil
}

func (s *Service) profileFor(kind jobkind.Kind) (profile.Profile, error) {
	if !kind.IsValid() {
		return profile.Profile{}, fmt.Errorf("job kind %q: %w", kind, domain.ErrUnknownJobKind)
	}
	p, ok := s.profiles.For(kind)
	if !ok {
		return profile.Profile{}, fmt.Errorf("no profile for job kind %q: %w", kind, domain.ErrUnknownJobKind)
	}
	return p, nil
}

func (s *Service) fail(kind jobkind.Kind) {
	metrics.ConversionsTotal.WithLabelValues(string(kind), "error").Inc()
}

func (s *Service) succeed(kind jobkind.Kind, o outline.Outline) {
	metrics.ConversionsTotal.WithLabelValues(string(kind), "success").Inc()
	metrics.PathsPerConversion.Observe(float64(len(o.Paths)))
}
