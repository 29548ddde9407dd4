package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockTracerChecker struct {
	err error
}

func (m *mockTracerChecker) HealthCheck(_ context.Context) error { return m.err }

type mockCachePinger struct {
	err error
}

func (m *mockCachePinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockTracerChecker{}, &mockCachePinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["tracer"] != CheckOK {
		t.Errorf("expected tracer %q, got %q", CheckOK, r.Checks["tracer"])
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
}

func TestCheck_TracerError(t *testing.T) {
	svc := New(&mockTracerChecker{err: errors.New("conn refused")}, &mockCachePinger{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["tracer"] != CheckError {
		t.Errorf("expected tracer %q, got %q", CheckError, r.Checks["tracer"])
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(&mockTracerChecker{}, &mockCachePinger{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["tracer"] != CheckOK {
		t.Errorf("expected tracer %q, got %q", CheckOK, r.Checks["tracer"])
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
}

func TestCheck_BothFail(t *testing.T) {
	svc := New(
		&mockTracerChecker{err: errors.New("engine down")},
		&mockCachePinger{err: errors.New("cache down")},
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["tracer"] != CheckError {
		t.Error("expected tracer error")
	}
	if r.Checks["cache"] != CheckError {
		t.Error("expected cache error")
	}
}

func TestCheck_NoCache(t *testing.T) {
	svc := New(&mockTracerChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["tracer"] != CheckOK {
		t.Errorf("expected tracer %q, got %q", CheckOK, r.Checks["tracer"])
	}
	if _, ok := r.Checks["cache"]; ok {
		t.Error("cache check should be absent when cache is nil")
	}
}

func TestCheck_NoCache_TracerError(t *testing.T) {
	svc := New(&mockTracerChecker{err: errors.New("fail")}, nil)
	r := svc.Check(context.Background())

	// The tracer is the only component, so its failure is total.
	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["tracer"] != CheckError {
		t.Error("expected tracer error")
	}
	if _, ok := r.Checks["cache"]; ok {
		t.Error("cache check should be absent when cache is nil")
	}
}
