package health

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type pinger func(context.Context) error

func (f pinger) Ping(ctx context.Context) error { return f(ctx) }

type checker func(context.Context) error

func (f checker) HealthCheck(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func hang(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		svc        *Service
		wantStatus Status
		wantChecks map[string]CheckResult
		wantFail   []string
	}{
		{
			name:       "all healthy",
			svc:        New(pinger(ok), checker(ok)),
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"database": CheckOK, "embedding": CheckOK},
		},
		{
			name:       "store down",
			svc:        New(pinger(failing("conn refused")), checker(ok)),
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"database": CheckError, "embedding": CheckOK},
			wantFail:   []string{"database"},
		},
		{
			name:       "everything down",
			svc:        New(pinger(failing("db")), checker(failing("emb"))).WithRerank(checker(failing("rr"))),
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"database": CheckError, "embedding": CheckError, "rerank": CheckError},
			wantFail:   []string{"database", "embedding", "rerank"},
		},
		{
			name:       "no embedder check",
			svc:        New(pinger(ok), nil),
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"database": CheckOK},
		},
		{
			name:       "nil rerank ignored",
			svc:        New(pinger(ok), nil).WithRerank(nil),
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"database": CheckOK},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.svc.Check(context.Background())
			if r.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", r.Status, tt.wantStatus)
			}
			if !reflect.DeepEqual(r.Checks, tt.wantChecks) {
				t.Errorf("checks = %v, want %v", r.Checks, tt.wantChecks)
			}
			if !reflect.DeepEqual(r.Failing(), tt.wantFail) {
				t.Errorf("Failing() = %v, want %v", r.Failing(), tt.wantFail)
			}
			if len(r.Latency) != len(tt.wantChecks) {
				t.Errorf("latency recorded for %d components, want %d", len(r.Latency), len(tt.wantChecks))
			}
		})
	}
}

func TestCheck_DetailsOnlyForFailures(t *testing.T) {
	r := New(pinger(ok), checker(ok)).WithRerank(checker(failing("rerank: status 503"))).
		Check(context.Background())

	if r.Details["rerank"] != "rerank: status 503" {
		t.Errorf("unexpected detail %q", r.Details["rerank"])
	}
	if _, found := r.Details["database"]; found {
		t.Error("passing checks carry no detail")
	}
}

func TestCheck_HungProbeTimesOut(t *testing.T) {
	r := New(pinger(hang), nil).WithTimeout(5 * time.Millisecond).Check(context.Background())

	if r.Checks["database"] != CheckError {
		t.Errorf("expected hung ping to fail, got %q", r.Checks["database"])
	}
}

func TestCheck_ProbesRunConcurrently(t *testing.T) {
	slow := func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	start := time.Now()
	r := New(pinger(slow), checker(slow)).WithRerank(checker(slow)).Check(context.Background())

	if r.Status != Healthy {
		t.Fatalf("status = %q", r.Status)
	}
	if elapsed := time.Since(start); elapsed > 140*time.Millisecond {
		t.Errorf("checks took %v, expected them to overlap", elapsed)
	}
}
