package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authtokens "github.com/talatkuyuk/authtokens"
)

type fakeSource struct {
	snapshot authtokens.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authtokens.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authtokens.MetricsSnapshot{
			Counters: map[authtokens.MetricID]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounters(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authtokens.MetricsSnapshot{
			Counters: map[authtokens.MetricID]uint64{
				authtokens.MetricRotateSuccess:       7,
				authtokens.MetricRotateReuseDetected: 1,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "authtokens_rotate_success_total 7") {
		t.Fatalf("expected rotate_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authtokens_rotate_reuse_detected_total 1") {
		t.Fatalf("expected reuse_detected counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE authtokens_rotate_success_total counter") {
		t.Fatalf("expected TYPE line in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authtokens_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authtokens.MetricsSnapshot{
			Counters: map[authtokens.MetricID]uint64{authtokens.MetricMintSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authtokens.MetricsSnapshot{
			Counters: map[authtokens.MetricID]uint64{
				authtokens.MetricMintSuccess:    1000,
				authtokens.MetricRotateSuccess:  800,
				authtokens.MetricRotateFailure:  10,
				authtokens.MetricLogout:         40,
				authtokens.MetricActionIssued:   120,
				authtokens.MetricActionRedeemed: 90,
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
