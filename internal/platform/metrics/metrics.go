package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts task outcomes and transferred bytes. Safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry
	tasks    *prometheus.CounterVec
	bytes    prometheus.Counter
	courses  *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursedl",
			Name:      "tasks_total",
			Help:      "Download tasks by final status.",
		}, []string{"course", "status"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coursedl",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to final destination paths.",
		}),
		courses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursedl",
			Name:      "courses_total",
			Help:      "Courses processed by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.tasks, r.bytes, r.courses)
	return r
}

func (r *Recorder) Task(course, status string, bytes int64) {
	r.tasks.WithLabelValues(course, status).Inc()
	if bytes > 0 {
		r.bytes.Add(float64(bytes))
	}
}

func (r *Recorder) Course(outcome string) {
	r.courses.WithLabelValues(outcome).Inc()
}

// WriteFile dumps all metrics in the Prometheus text format, suitable for the
// node_exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
