package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwp-overlay/internal/config"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetricsForTesting()

	m.OffsetsDownloaded.WithLabelValues("rain").Inc()
	m.OffsetsDownloaded.WithLabelValues("rain").Inc()
	m.ImagesWritten.WithLabelValues("clouds").Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OffsetsDownloaded.WithLabelValues("rain")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ImagesWritten.WithLabelValues("clouds")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OffsetFailures.WithLabelValues("rain")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.OffsetsDownloaded.WithLabelValues("rain").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.OffsetsDownloaded.WithLabelValues("rain")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.OffsetsDownloaded.WithLabelValues("rain").Add(25)
	m.FetchDuration.Observe(12.5)

	path := filepath.Join(t.TempDir(), "nwp.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `nwp_overlay_offsets_downloaded_total{parameter="rain"} 25`)
	assert.Contains(t, out, "nwp_overlay_fetch_duration_seconds_count 1")

	// No stray temp file next to the published one.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteTextfile_EmptyPathIsNoop(t *testing.T) {
	m := NewMetricsForTesting()
	require.NoError(t, m.WriteTextfile(""))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{name: "defaults", level: "info", format: "json"},
		{name: "debug text", level: "debug", format: "text"},
		{name: "unknown level falls back to info", level: "verbose", format: "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format})
			require.NotNil(t, logger)
			logger.Debug("probe")
		})
	}
}
