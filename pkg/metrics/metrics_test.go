package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/psantana5/lumirender/pkg/models"
)

func TestSchedulerMetricsCounters(t *testing.T) {
	m := NewSchedulerMetrics()

	m.JobEnqueued(models.ModeRecording)
	m.JobEnqueued(models.ModeRecording)
	m.JobsDiscarded("coalesced", 3)
	m.JobsDiscarded("coalesced", 0)
	m.RenderFinished(models.ModeRendering, "ok", 20*time.Millisecond)
	m.FrameStored("memory")
	m.StoreError("archive")
	m.QueueDepth(4)
	m.DrainCompleted()

	if got := testutil.ToFloat64(m.jobsEnqueued.WithLabelValues("recording")); got != 2 {
		t.Errorf("jobs enqueued: expected 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsDiscarded.WithLabelValues("coalesced")); got != 3 {
		t.Errorf("jobs discarded: expected 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.renders.WithLabelValues("rendering", "ok")); got != 1 {
		t.Errorf("renders: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.framesStored.WithLabelValues("memory")); got != 1 {
		t.Errorf("frames stored: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeErrors.WithLabelValues("archive")); got != 1 {
		t.Errorf("store errors: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 4 {
		t.Errorf("queue depth: expected 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.drains); got != 1 {
		t.Errorf("drains: expected 1, got %v", got)
	}
}

func TestModeGaugeIsOneHot(t *testing.T) {
	m := NewSchedulerMetrics()
	m.ModeChanged(models.ModeRendering)

	for _, mode := range modes {
		expected := 0.0
		if mode == models.ModeRendering {
			expected = 1
		}
		if got := testutil.ToFloat64(m.mode.WithLabelValues(string(mode))); got != expected {
			t.Errorf("mode %s: expected %v, got %v", mode, expected, got)
		}
	}
}

func TestWriteTextIncludesProgress(t *testing.T) {
	m := NewSchedulerMetrics()
	if err := m.WatchProgress(func() float64 { return 42 }); err != nil {
		t.Fatalf("WatchProgress failed: %v", err)
	}

	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "lumirender_progress_percent 42") {
		t.Errorf("progress gauge missing from output:\n%s", out)
	}
	if !strings.Contains(out, "lumirender_host_memory_used_percent") {
		t.Errorf("host memory gauge missing from output")
	}
}

func TestHTTPMonitorLabelsRouteTemplate(t *testing.T) {
	m := NewSchedulerMetrics()
	hm := m.NewHTTPMonitor()

	r := mux.NewRouter()
	r.Use(hm.Middleware)
	r.HandleFunc("/frames/{index}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/frames/1", "/frames/2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(hm.requests.WithLabelValues("GET", "/frames/{index}", "404")); got != 2 {
		t.Errorf("expected 2 requests on the route template, got %v", got)
	}
}
