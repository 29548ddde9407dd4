package health

import "context"

// CachePinger checks outline cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// TracerChecker checks contour-tracing engine availability.
type TracerChecker interface {
	HealthCheck(ctx context.Context) error
}
