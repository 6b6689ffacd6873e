package observability

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the Prometheus counters and histograms for the pipeline.
// Both binaries are one-shot cron jobs, so instead of serving /metrics the
// final values are flushed to a node-exporter textfile via WriteTextfile.
type Metrics struct {
	registry *prometheus.Registry

	OffsetsDownloaded *prometheus.CounterVec // labels: parameter
	OffsetsCached     *prometheus.CounterVec // labels: parameter
	OffsetFailures    *prometheus.CounterVec // labels: parameter
	RunsPruned        *prometheus.CounterVec // labels: parameter
	FetchDuration     prometheus.Histogram

	ImagesWritten  *prometheus.CounterVec // labels: parameter
	RenderFailures *prometheus.CounterVec // labels: parameter
	RenderDuration prometheus.Histogram
}

// NewMetrics creates all pipeline metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OffsetsDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_overlay",
			Name:      "offsets_downloaded_total",
			Help:      "Forecast-hour grids downloaded and committed to the store.",
		}, []string{"parameter"}),
		OffsetsCached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_overlay",
			Name:      "offsets_cached_total",
			Help:      "Forecast-hour grids already present in the store (skipped).",
		}, []string{"parameter"}),
		OffsetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_overlay",
			Name:      "offset_failures_total",
			Help:      "Forecast-hour grids abandoned after exhausting retries.",
		}, []string{"parameter"}),
		RunsPruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_overlay",
			Name:      "runs_pruned_total",
			Help:      "Stale runs removed by retention cleanup.",
		}, []string{"parameter"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwp_overlay",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a complete parameter fetch.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ImagesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_overlay",
			Name:      "images_written_total",
			Help:      "Overlay images rendered and published to the output directory.",
		}, []string{"parameter"}),
		RenderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwp_overlay",
			Name:      "render_failures_total",
			Help:      "Timesteps that failed to render.",
		}, []string{"parameter"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwp_overlay",
			Name:      "render_duration_seconds",
			Help:      "Duration of a complete render invocation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	m.registry.MustRegister(
		m.OffsetsDownloaded,
		m.OffsetsCached,
		m.OffsetFailures,
		m.RunsPruned,
		m.FetchDuration,
		m.ImagesWritten,
		m.RenderFailures,
		m.RenderDuration,
	)
	return m
}

// NewMetricsForTesting is an alias kept for symmetry with test call sites;
// every Metrics already owns a private registry.
func NewMetricsForTesting() *Metrics { return NewMetrics() }

// WriteTextfile dumps the registry in Prometheus text exposition format,
// atomically, for the node-exporter textfile collector. A no-op when path
// is empty.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	fams, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metrics textfile: %w", err)
	}
	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range fams {
		if err := enc.Encode(fam); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
