package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecordWeekAccumulates(t *testing.T) {
	c := NewCollector()
	c.RecordWeek(500_000, 1, 0, 0, 0)
	c.RecordWeek(420_000, 0, 1, 1, 55_000)

	if c.WeeksCompleted != 2 {
		t.Errorf("expected 2 weeks, got %d", c.WeeksCompleted)
	}
	if c.Cash != 420_000 {
		t.Errorf("expected cash gauge to hold the latest value, got %d", c.Cash)
	}
	if c.BoxOfficeRevenue != 55_000 || c.FilmsArchived != 1 || c.CrisesTriggered != 1 {
		t.Errorf("unexpected counters: %+v", c.Snapshot()["studio"])
	}
}

func TestTickLatencyMax(t *testing.T) {
	c := NewCollector()
	c.RecordTick(5 * time.Millisecond)
	c.RecordTick(2 * time.Millisecond)

	if c.TickLatencyMax != int64(5*time.Millisecond) {
		t.Fatalf("expected max 5ms, got %d", c.TickLatencyMax)
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := NewCollector()
	c.RecordWeek(123, 0, 0, 0, 0)

	rec := httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "backlot_cash_dollars 123") {
		t.Fatalf("expected cash gauge in output:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestJSONHandler(t *testing.T) {
	c := NewCollector()
	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `"studio"`) {
		t.Fatalf("expected studio section, got %s", rec.Body.String())
	}
}
