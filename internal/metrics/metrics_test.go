package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

func TestObserveStatusIncrementsCompletedCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.ObserveStatus(docmodel.StatusCompleted)
	r.ObserveStatus(docmodel.StatusCompleted)
	r.ObserveStatus(docmodel.StatusFailed)

	var m dto.Metric
	if err := r.CompletedTotal.Write(&m); err != nil {
		t.Fatalf("unexpected error writing metric: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected completed counter 2, got %v", got)
	}
}

func TestSetQueueDepthSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.SetQueueDepth(docmodel.PriorityHigh, 5, 2)

	var m dto.Metric
	if err := r.QueueLength.WithLabelValues("high").Write(&m); err != nil {
		t.Fatalf("unexpected error writing metric: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 5 {
		t.Fatalf("expected queue length 5, got %v", got)
	}
}

func TestObserveAttemptDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	r.ObserveAttemptDuration(2 * time.Second)

	var m dto.Metric
	if err := r.ProcessingTime.Write(&m); err != nil {
		t.Fatalf("unexpected error writing metric: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("expected 1 observation, got %v", got)
	}
}
