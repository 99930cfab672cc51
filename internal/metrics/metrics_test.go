package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserveRequestAppearsInHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/", 200)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, r)

	body := w.Body.String()
	if !strings.Contains(body, `nightwatch_http_requests_total{route="/api/",status="200"} 1`) {
		t.Errorf("expected request counter in output, got:\n%s", body)
	}
}

func TestSetLiveSubscribers(t *testing.T) {
	m := New()
	m.SetLiveSubscribers(5, 3)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, r)

	body := w.Body.String()
	if !strings.Contains(body, `nightwatch_live_subscribers{stream_id="5"} 3`) {
		t.Errorf("expected live subscribers gauge in output, got:\n%s", body)
	}
}

func TestObserveLockHoldRecordsSample(t *testing.T) {
	m := New()
	m.ObserveLockHold(0.005)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "nightwatch_db_lock_hold_seconds_count 1") {
		t.Errorf("expected lock-hold histogram count in output, got:\n%s", body)
	}
}
