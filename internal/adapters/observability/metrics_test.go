package observability_test

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phenohub/internal/adapters/observability"
)

func scrape(t *testing.T) string {
	t.Helper()
	mh := observability.MetricsHandler(observability.InitRegistry())
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestMetricsRegistryAndHandler(t *testing.T) {
	// record one sample so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)

	out := scrape(t)
	if !strings.Contains(out, "phenohub_http_requests_total") {
		t.Fatalf("expected phenohub_http_requests_total in output")
	}
}

func TestObserveRecalcAndStore(t *testing.T) {
	observability.ObserveRecalc("provider", 3, nil, 40*time.Millisecond)
	observability.ObserveRecalc("cultivar", 0, errors.New("boom"), time.Millisecond)
	observability.ObserveStore("provider_stats", nil, time.Millisecond)

	out := scrape(t)
	for _, want := range []string{
		`phenohub_recalc_runs_total{pass="provider",result="ok"}`,
		`phenohub_recalc_runs_total{pass="cultivar",result="error"}`,
		`phenohub_recalc_entities_total{pass="provider"}`,
		`phenohub_store_ops_total{op="provider_stats",result="ok"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output", want)
		}
	}
}

func TestServe_UsesGivenAddress(t *testing.T) {
	observability.Serve("") // disabled, returns at once

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	observability.Serve(addr)

	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			_ = res.Body.Close()
			if res.StatusCode != http.StatusOK {
				t.Fatalf("metrics status: %d", res.StatusCode)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics listener never came up on %s: %v", addr, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
