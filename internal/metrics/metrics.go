// Package metrics wraps a prometheus registry with the gauges and
// histograms the orchestrator and queue expose in-process; there is no HTTP
// exporter wired here since the REST surface is out of scope.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// Registry holds every pipeline metric.
type Registry struct {
	QueueLength      *prometheus.GaugeVec
	ActiveTasks      *prometheus.GaugeVec
	CompletedTotal   prometheus.Counter
	PausedTasks      prometheus.Gauge
	MaxConcurrent    *prometheus.GaugeVec
	StatusHistogram  *prometheus.CounterVec
	PriorityHistogram *prometheus.CounterVec
	ProcessingTime   prometheus.Histogram
}

// NewRegistry builds and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docproc_queue_length", Help: "Pending tasks per priority queue.",
		}, []string{"priority"}),
		ActiveTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docproc_active_tasks", Help: "Tasks currently being processed, per priority queue.",
		}, []string{"priority"}),
		CompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docproc_completed_tasks_total", Help: "Tasks that reached a terminal completed state.",
		}),
		PausedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docproc_paused_tasks", Help: "Tasks currently paused.",
		}),
		MaxConcurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docproc_max_concurrent", Help: "Configured worker concurrency per priority queue.",
		}, []string{"priority"}),
		StatusHistogram: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docproc_task_status_total", Help: "Task status transitions observed.",
		}, []string{"status"}),
		PriorityHistogram: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docproc_task_priority_total", Help: "Tasks enqueued per priority.",
		}, []string{"priority"}),
		ProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docproc_attempt_processing_seconds",
			Help:    "Wall-clock duration of a single attempt.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	reg.MustRegister(
		r.QueueLength, r.ActiveTasks, r.CompletedTotal, r.PausedTasks,
		r.MaxConcurrent, r.StatusHistogram, r.PriorityHistogram, r.ProcessingTime,
	)
	return r
}

// ObserveEnqueue records a task admitted at priority.
func (r *Registry) ObserveEnqueue(priority docmodel.Priority) {
	r.PriorityHistogram.WithLabelValues(priority.String()).Inc()
}

// ObserveStatus records a task's arrival at status.
func (r *Registry) ObserveStatus(status docmodel.Status) {
	r.StatusHistogram.WithLabelValues(string(status)).Inc()
	if status == docmodel.StatusCompleted {
		r.CompletedTotal.Inc()
	}
}

// ObserveAttemptDuration records one attempt's wall-clock processing time.
func (r *Registry) ObserveAttemptDuration(d time.Duration) {
	r.ProcessingTime.Observe(d.Seconds())
}

// SetQueueDepth sets the point-in-time pending/active gauges for priority.
func (r *Registry) SetQueueDepth(priority docmodel.Priority, pending, active int) {
	r.QueueLength.WithLabelValues(priority.String()).Set(float64(pending))
	r.ActiveTasks.WithLabelValues(priority.String()).Set(float64(active))
}

// SetMaxConcurrent records configured worker concurrency per priority.
func (r *Registry) SetMaxConcurrent(priority docmodel.Priority, n int) {
	r.MaxConcurrent.WithLabelValues(priority.String()).Set(float64(n))
}

// SetPaused sets the current count of paused tasks.
func (r *Registry) SetPaused(n int) {
	r.PausedTasks.Set(float64(n))
}
