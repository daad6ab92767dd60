package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCommand(t *testing.T) {
	r := New()
	r.ObserveCommand("t", "ok", 10*time.Millisecond)
	r.ObserveCommand("t", "ok", 20*time.Millisecond)
	r.ObserveCommand("t", "rejected", time.Millisecond)
	r.ObserveCommand("s", "error", time.Millisecond)

	tests := []struct {
		code, outcome string
		want          float64
	}{
		{"t", "ok", 2},
		{"t", "rejected", 1},
		{"s", "error", 1},
		{"s", "ok", 0},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.outcome, func(t *testing.T) {
			got := testutil.ToFloat64(r.commands.WithLabelValues(tt.code, tt.outcome))
			if got != tt.want {
				t.Errorf("commands{%s,%s} = %v, want %v", tt.code, tt.outcome, got, tt.want)
			}
		})
	}
	if n := testutil.CollectAndCount(r.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveCommand("na", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{
		`debitbot_commands_total{code="na",outcome="ok"} 1`,
		"debitbot_command_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
