package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/store", cfg.StoreDir)
	assert.Equal(t, "data/out", cfg.OutputDir)
	assert.Equal(t, defaultWCSBaseURL, cfg.WCSBaseURL)
	assert.Empty(t, cfg.WCSAPIKey)
	assert.Equal(t, 10*time.Second, cfg.WCSTimeout)
	assert.Equal(t, 4, cfg.FetchWorkers)
	assert.Equal(t, 5, cfg.FetchAttempts)
	assert.Equal(t, 2*time.Second, cfg.FetchBackoff)
	assert.Equal(t, 30*time.Second, cfg.FetchMaxBackoff)
	assert.Equal(t, 48*time.Hour, cfg.Retention)
	assert.Equal(t, 4, cfg.RenderWorkers)
	assert.Equal(t, 800, cfg.OutputWidth)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("STORE_DIR", "/var/lib/nwp/store")
	t.Setenv("OUTPUT_DIR", "/var/lib/nwp/out")
	t.Setenv("WCS_BASE_URL", "http://localhost:8081/wcs")
	t.Setenv("WCS_API_KEY", "test-key")
	t.Setenv("WCS_TIMEOUT", "30s")
	t.Setenv("FETCH_WORKERS", "8")
	t.Setenv("FETCH_ATTEMPTS", "3")
	t.Setenv("FETCH_BACKOFF", "500ms")
	t.Setenv("FETCH_MAX_BACKOFF", "10s")
	t.Setenv("RETENTION", "24h")
	t.Setenv("RENDER_WORKERS", "2")
	t.Setenv("OUTPUT_WIDTH", "1600")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("METRICS_FILE", "/var/lib/node_exporter/nwp.prom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/nwp/store", cfg.StoreDir)
	assert.Equal(t, "/var/lib/nwp/out", cfg.OutputDir)
	assert.Equal(t, "http://localhost:8081/wcs", cfg.WCSBaseURL)
	assert.Equal(t, "test-key", cfg.WCSAPIKey)
	assert.Equal(t, 30*time.Second, cfg.WCSTimeout)
	assert.Equal(t, 8, cfg.FetchWorkers)
	assert.Equal(t, 3, cfg.FetchAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.FetchBackoff)
	assert.Equal(t, 10*time.Second, cfg.FetchMaxBackoff)
	assert.Equal(t, 24*time.Hour, cfg.Retention)
	assert.Equal(t, 2, cfg.RenderWorkers)
	assert.Equal(t, 1600, cfg.OutputWidth)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "/var/lib/node_exporter/nwp.prom", cfg.MetricsFile)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("WCS_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WCS_TIMEOUT")
}

func TestLoad_NegativeBackoff(t *testing.T) {
	t.Setenv("FETCH_BACKOFF", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_BACKOFF")
}

func TestLoad_InvalidWorkers(t *testing.T) {
	t.Setenv("FETCH_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_WORKERS")
}

func TestLoad_OutputWidthBounds(t *testing.T) {
	t.Run("too small", func(t *testing.T) {
		t.Setenv("OUTPUT_WIDTH", "8")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OUTPUT_WIDTH")
	})
	t.Run("too large", func(t *testing.T) {
		t.Setenv("OUTPUT_WIDTH", "16384")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OUTPUT_WIDTH")
	})
}

func TestLoad_ParamsFile(t *testing.T) {
	orig, err := domain.Spec(domain.ParameterRain)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, domain.OverrideSpecs(map[domain.Parameter]domain.ParameterSpec{
			domain.ParameterRain: orig,
		}))
	})

	path := filepath.Join(t.TempDir(), "params.yaml")
	yaml := `rain:
  coverage_pattern: CUSTOM_RAIN___GROUND_OR_WATER_SURFACE___{reference_time}
  offsets: [0, 6, 12]
  unit: mm
  scale: 2.0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("PARAMS_FILE", path)

	_, err = Load()
	require.NoError(t, err)

	spec, err := domain.Spec(domain.ParameterRain)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 6, 12}, spec.Offsets)
	assert.Equal(t, 2.0, spec.Scale)
	assert.Contains(t, spec.CoveragePattern, "CUSTOM_RAIN")
}

func TestLoad_ParamsFileUnknownParameter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("snow:\n  unit: cm\n"), 0o600))
	t.Setenv("PARAMS_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARAMS_FILE")
}

func TestLoad_ParamsFileMissing(t *testing.T) {
	t.Setenv("PARAMS_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.Error(t, err)
}
