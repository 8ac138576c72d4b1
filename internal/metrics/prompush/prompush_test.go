package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ecohealthalliance/birt-consumer/internal/metrics"
)

// readCounterValue reads the current value of a Counter for assertions.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatal("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		jobName    string
		gatewayURL string
		wantErr    bool
		wantJob    string
	}{
		{name: "valid", jobName: "birt_consume", gatewayURL: "http://localhost:9091", wantJob: "birt_consume"},
		{name: "default job name", jobName: "", gatewayURL: "http://localhost:9091", wantJob: "birt"},
		{name: "missing url", jobName: "x", gatewayURL: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewBackend succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend error = %v", err)
			}
			if b.jobName != tt.wantJob {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJob)
			}
		})
	}
}

func TestIncCounterRouting(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("birt_consume", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	lbls := metrics.Labels{"job": "birt_consume", "step": "ingest", "status": "success"}
	b.IncCounter("birt_step_total", 1, lbls)
	b.IncCounter("birt_step_total", 1, lbls)
	b.IncCounter("birt_records_total", 5, metrics.Labels{"job": "birt_consume", "kind": "valid"})
	// Unknown metric names are ignored, not registered.
	b.IncCounter("unrelated_total", 1, nil)

	got := readCounterValue(t, b.stepCounter.WithLabelValues("birt_consume", "ingest", "success"))
	if got != 2 {
		t.Fatalf("step counter = %v, want 2", got)
	}
	got = readCounterValue(t, b.rowCounter.WithLabelValues("birt_consume", "valid"))
	if got != 5 {
		t.Fatalf("row counter = %v, want 5", got)
	}
}

func TestFlushPushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		gotPath   string
		gotMethod string
		gotBody   int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = len(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("birt_consume", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter("birt_records_total", 3, metrics.Labels{"job": "birt_consume", "kind": "valid"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if gotPath != "/metrics/job/birt_consume" {
		t.Fatalf("push path = %q", gotPath)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("push method = %q, want PUT", gotMethod)
	}
	if gotBody == 0 {
		t.Fatal("push body empty")
	}
}

func TestFlushErrorWrapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	b, err := NewBackend("birt_consume", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatal("Flush succeeded against failing gateway")
	}
}
