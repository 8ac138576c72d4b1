package metrics

import (
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	counters  map[string]float64
	durations map[string]float64
	labels    map[string]Labels
	flushed   int
}

func newFake() *fakeBackend {
	return &fakeBackend{
		counters:  map[string]float64{},
		durations: map[string]float64{},
		labels:    map[string]Labels{},
	}
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.counters[name] += delta
	f.labels[name] = labels
}

func (f *fakeBackend) ObserveDuration(name string, value float64, labels Labels) {
	f.durations[name] += value
}

func (f *fakeBackend) Flush() error {
	f.flushed++
	return nil
}

// restore puts the nop backend back so tests don't leak state.
func restore() { backend = nopBackend{} }

func TestNopBackendIsSafe(t *testing.T) {
	restore()

	RecordStep("job", "ingest", nil, time.Second)
	RecordRows("job", "valid", 10)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestSetBackendNilKeepsExisting(t *testing.T) {
	defer restore()

	f := newFake()
	SetBackend(f)
	SetBackend(nil)

	RecordRows("job", "valid", 1)
	if f.counters["birt_records_total"] != 1 {
		t.Fatal("nil SetBackend replaced the active backend")
	}
}

func TestRecordStep(t *testing.T) {
	defer restore()

	f := newFake()
	SetBackend(f)

	RecordStep("birt_consume", "ingest", nil, 2*time.Second)
	if f.counters["birt_step_total"] != 1 {
		t.Fatalf("step counter = %v", f.counters["birt_step_total"])
	}
	if f.durations["birt_step_duration_seconds"] != 2 {
		t.Fatalf("duration = %v", f.durations["birt_step_duration_seconds"])
	}
	if f.labels["birt_step_total"]["status"] != "success" {
		t.Fatalf("labels = %v", f.labels["birt_step_total"])
	}

	RecordStep("birt_consume", "ingest", errors.New("boom"), time.Second)
	if f.labels["birt_step_total"]["status"] != "failure" {
		t.Fatalf("labels = %v, want failure status", f.labels["birt_step_total"])
	}
}

func TestRecordRowsSkipsZero(t *testing.T) {
	defer restore()

	f := newFake()
	SetBackend(f)

	RecordRows("job", "failed", 0)
	if _, ok := f.counters["birt_records_total"]; ok {
		t.Fatal("zero delta recorded")
	}

	RecordRows("job", "failed", 3)
	if f.counters["birt_records_total"] != 3 {
		t.Fatalf("counter = %v", f.counters["birt_records_total"])
	}
	if f.labels["birt_records_total"]["kind"] != "failed" {
		t.Fatalf("labels = %v", f.labels["birt_records_total"])
	}
}
