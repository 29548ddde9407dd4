package outlinecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/framery/outliner/internal/db"
	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/outline"
	"github.com/framery/outliner/internal/domain/profile"
	"github.com/framery/outliner/internal/domain/raster"
)

var cacheKeyPrefix = "outliner:outline:"

// store is the consumer interface for the outline cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// converter is the byte-input single conversion being decorated.
type converter interface {
	ConvertImage(ctx context.Context, data []byte, kind jobkind.Kind) (outline.Outline, error)
}

// CachedConverter caches single-image conversion results in a key-value
// store. The pipeline is deterministic in (kind, profile, bytes), so a
// hit is byte-identical to a fresh run. Cache trouble never fails a
// conversion; it degrades to pass-through with a warning.
type CachedConverter struct {
	inner      converter
	store      store
	profiles   *profile.Registry
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner converter,
	s store,
	profiles *profile.Registry,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedConverter {
	return &CachedConverter{
		inner:      inner,
		store:      s,
		profiles:   profiles,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// ConvertImage returns a cached outline or runs the inner pipeline.
func (c *CachedConverter) ConvertImage(ctx context.Context, data []byte, kind jobkind.Kind) (outline.Outline, error) {
	key := c.cacheKey(data, kind)

	if o, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return o, nil
	}
	c.incCache("miss")

	o, err := c.inner.ConvertImage(ctx, data, kind)
	if err != nil {
		return outline.Outline{}, fmt.Errorf("convert image: %w", err)
	}

	c.putToCache(ctx, key, o)
	return o, nil
}

func (c *CachedConverter) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the kind, the resolved profile values, and the input
// bytes, so a config-level profile change invalidates naturally.
func (c *CachedConverter) cacheKey(data []byte, kind jobkind.Kind) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|", kind)
	if p, ok := c.profiles.For(kind); ok {
		fmt.Fprintf(h, "%d:%t:%d|", p.MinContourArea, p.OptimizeCurves, p.Threshold)
	}
	h.Write(data)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedConverter) getFromCache(ctx context.Context, key string) (outline.Outline, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached outline", zap.String("key", key), zap.Error(err))
		}
		return outline.Outline{}, false
	}
	o, err := decodeOutline(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached outline", zap.String("key", key), zap.Error(err))
		return outline.Outline{}, false
	}
	return o, true
}

func (c *CachedConverter) putToCache(ctx context.Context, key string, o outline.Outline) {
	data, err := encodeOutline(o)
	if err != nil {
		c.logger.Warn("Failed to encode outline for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache outline", zap.String("key", key), zap.Error(err))
	}
}

// cachedOutline is the stored form of an outline.
type cachedOutline struct {
	Paths   []string        `json:"paths"`
	ViewBox [4]float64      `json:"view_box"` // left, top, width, height
	Trim    *raster.TrimBox `json:"trim,omitempty"`
}

func encodeOutline(o outline.Outline) ([]byte, error) {
	co := cachedOutline{
		Paths:   make([]string, len(o.Paths)),
		ViewBox: [4]float64{o.ViewBox.Left, o.ViewBox.Top, o.ViewBox.Width, o.ViewBox.Height},
		Trim:    o.Trim,
	}
	for i, p := range o.Paths {
		co.Paths[i] = string(p)
	}
	return json.Marshal(co)
}

func decodeOutline(data []byte) (outline.Outline, error) {
	var co cachedOutline
	if err := json.Unmarshal(data, &co); err != nil {
		return outline.Outline{}, fmt.Errorf("invalid outline cache data: %w", err)
	}
	if len(co.Paths) == 0 {
		return outline.Outline{}, fmt.Errorf("invalid outline cache data: no paths")
	}
	o := outline.Outline{
		Paths: make([]outline.PathRecord, len(co.Paths)),
		ViewBox: outline.ViewBox{
			Left: co.ViewBox[0], Top: co.ViewBox[1],
			Width: co.ViewBox[2], Height: co.ViewBox[3],
		},
		Trim: co.Trim,
	}
	for i, p := range co.Paths {
		o.Paths[i] = outline.PathRecord(p)
	}
	return o, nil
}
