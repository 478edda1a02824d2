package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusFetchCounters(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())
	ctx := context.Background()

	p.OnFetchComplete(ctx, "graph", 10*time.Millisecond, nil)
	p.OnFetchComplete(ctx, "graph", 20*time.Millisecond, errors.New("boom"))
	p.OnFetchComplete(ctx, "step", time.Millisecond, nil)
	p.OnFetchStale(ctx, "graph")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"graph ok", testutil.ToFloat64(p.FetchTotal.WithLabelValues("graph", "ok")), 1},
		{"graph error", testutil.ToFloat64(p.FetchTotal.WithLabelValues("graph", "error")), 1},
		{"step ok", testutil.ToFloat64(p.FetchTotal.WithLabelValues("step", "ok")), 1},
		{"stale", testutil.ToFloat64(p.FetchStale.WithLabelValues("graph")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestPrometheusLayoutAndCache(t *testing.T) {
	p := NewPrometheus(nil)
	ctx := context.Background()

	p.OnLayoutComplete(ctx, "automaton", 10, 2, time.Millisecond, nil)
	p.OnLayoutComplete(ctx, "automaton", 10, 1, time.Millisecond, nil)
	if got := testutil.ToFloat64(p.SubLayouts); got != 3 {
		t.Errorf("SubLayouts = %v, want 3", got)
	}

	p.OnCacheHit(ctx, "artifact")
	p.OnCacheMiss(ctx, "artifact")
	p.OnCacheMiss(ctx, "artifact")
	if got := testutil.ToFloat64(p.CacheTotal.WithLabelValues("artifact", "miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
}

func TestPrometheusHandler(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())
	p.OnResponse(context.Background(), "POST", "matcher:5000", "/api/step", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `pdaviz_http_responses_total{code="200",host="matcher:5000"} 1`) {
		t.Errorf("metrics output missing http counter:\n%s", body)
	}
}

func TestPrometheusInstall(t *testing.T) {
	defer Reset()
	p := NewPrometheus(nil)
	p.Install()

	if Pipeline() != PipelineHooks(p) || Cache() != CacheHooks(p) || HTTP() != HTTPHooks(p) || Server() != ServerHooks(p) {
		t.Error("Install() should register p for every hook type")
	}
}

func TestPrometheusServer(t *testing.T) {
	p := NewPrometheus(nil)
	ctx := context.Background()

	p.OnServe(ctx, "/api/step", 200, time.Millisecond)
	p.OnServe(ctx, "/api/step", 400, time.Millisecond)
	p.OnClients(2)
	p.OnPush("frame", false)
	p.OnPush("frame", true)
	p.OnPush("frame", false)

	if got := testutil.ToFloat64(p.ServeTotal.WithLabelValues("/api/step", "400")); got != 1 {
		t.Errorf("requests 400 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.WSClients); got != 2 {
		t.Errorf("websocket clients = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.WSMessages.WithLabelValues("frame", "sent")); got != 2 {
		t.Errorf("sent frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.WSMessages.WithLabelValues("frame", "dropped")); got != 1 {
		t.Errorf("dropped frames = %v, want 1", got)
	}
}
