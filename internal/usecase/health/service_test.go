package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbedChecker struct{ err error }

func (m *mockEmbedChecker) HealthCheck(_ context.Context) error { return m.err }

type mockBackends struct{ unhealthy map[string]bool }

func (m *mockBackends) Healthy(backend string) bool { return !m.unhealthy[backend] }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockEmbedChecker{}, &mockBackends{})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("status = %q, want ok", report.Status)
	}
	for name, result := range report.Checks {
		if result != CheckOK {
			t.Errorf("check %q = %q, want ok", name, result)
		}
	}
	if len(report.Checks) != 4 {
		t.Errorf("checks = %v, want database, embedding and both backends", report.Checks)
	}
}

func TestCheck_DatabaseDown(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("down")}, &mockEmbedChecker{}, &mockBackends{})

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("status = %q, want degraded", report.Status)
	}
	if report.Checks["database"] != CheckError {
		t.Errorf("database check = %q, want error", report.Checks["database"])
	}
}

func TestCheck_BackendUnhealthy(t *testing.T) {
	backends := &mockBackends{unhealthy: map[string]bool{"knowledge": true}}
	svc := New(&mockPinger{}, &mockEmbedChecker{}, backends)

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("status = %q, want degraded", report.Status)
	}
	if report.Checks["knowledge"] != CheckError {
		t.Errorf("knowledge check = %q, want error", report.Checks["knowledge"])
	}
	if report.Checks["vector"] != CheckOK {
		t.Errorf("vector check = %q, want ok", report.Checks["vector"])
	}
}

func TestCheck_NilOptionalComponents(t *testing.T) {
	svc := New(&mockPinger{}, nil, nil)

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("status = %q, want ok", report.Status)
	}
	if len(report.Checks) != 1 {
		t.Errorf("checks = %v, want database only", report.Checks)
	}
}
