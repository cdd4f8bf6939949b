package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBeforeInitIsNoop(t *testing.T) {
	promMetrics = nil
	RecordDispatch("fn")
	RecordInvocation("fn", "ok", 200, time.Millisecond)
	IncInflight()
	SetPoolStats(1, 2)

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before init, got %d", rec.Code)
	}
}

func TestRecordInvocation(t *testing.T) {
	InitPrometheus("lambdaburst", nil)
	defer func() { promMetrics = nil }()

	RecordDispatch("fn")
	RecordDispatch("fn")
	RecordInvocation("fn", "ok", 200, 12*time.Millisecond)
	RecordInvocation("fn", "non_ok", 500, 30*time.Millisecond)
	RecordInvocation("fn", "fault", 0, time.Second)

	if got := testutil.ToFloat64(promMetrics.dispatchedTotal.WithLabelValues("fn")); got != 2 {
		t.Fatalf("expected 2 dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(promMetrics.invocationsTotal.WithLabelValues("fn", "ok")); got != 1 {
		t.Fatalf("expected 1 ok, got %v", got)
	}
	if got := testutil.ToFloat64(promMetrics.statusCodesTotal.WithLabelValues("fn", "500")); got != 1 {
		t.Fatalf("expected one 500, got %v", got)
	}
	if got := testutil.CollectAndCount(promMetrics.statusCodesTotal); got != 2 {
		t.Fatalf("faults must not record a status code, got %d series", got)
	}
}

func TestGauges(t *testing.T) {
	InitPrometheus("lambdaburst", nil)
	defer func() { promMetrics = nil }()

	IncInflight()
	IncInflight()
	DecInflight()
	SetPoolStats(4, 10)
	SetProfilerActive(true)

	if got := testutil.ToFloat64(promMetrics.inflight); got != 1 {
		t.Fatalf("expected 1 in flight, got %v", got)
	}
	if got := testutil.ToFloat64(promMetrics.poolWaiting); got != 10 {
		t.Fatalf("expected 10 waiting, got %v", got)
	}
	if got := testutil.ToFloat64(promMetrics.profilerActive); got != 1 {
		t.Fatalf("expected profiler active, got %v", got)
	}
}

func TestPrometheusHandler(t *testing.T) {
	InitPrometheus("lambdaburst", nil)
	defer func() { promMetrics = nil }()

	RecordInvocation("fn", "ok", 200, time.Millisecond)
	RecordBatchDuration("fn", 3*time.Second)

	srv := httptest.NewServer(PrometheusHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`lambdaburst_invocations_total{function="fn",outcome="ok"} 1`,
		`lambdaburst_batch_duration_seconds_count{function="fn"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition", want)
		}
	}
}
