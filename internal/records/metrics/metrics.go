package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the records module.
type Metrics struct {
	ReportsUploaded prometheus.Counter
	ReadsDenied     prometheus.Counter
	ListDuration    prometheus.Histogram
}

// New creates a Metrics instance with all records module metrics registered.
func New() *Metrics {
	return &Metrics{
		ReportsUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_reports_uploaded_total",
			Help: "Total number of reports appended",
		}),
		ReadsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthexchange_report_reads_denied_total",
			Help: "Total number of denied report reads",
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthexchange_report_list_duration_seconds",
			Help:    "Duration of report list operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}
