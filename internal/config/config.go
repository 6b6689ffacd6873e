package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all pipeline settings, populated from environment variables.
// Both binaries (gridfetch, gridrender) share one Config; each reads the
// subset it needs.
type Config struct {
	StoreDir  string
	OutputDir string

	WCSBaseURL string
	WCSAPIKey  string
	WCSTimeout time.Duration

	FetchWorkers    int
	FetchAttempts   int
	FetchBackoff    time.Duration
	FetchMaxBackoff time.Duration
	Retention       time.Duration

	RenderWorkers int
	OutputWidth   int

	LogLevel  string
	LogFormat string

	// MetricsFile, when set, receives a Prometheus textfile dump on exit
	// (node-exporter textfile collector).
	MetricsFile string

	// ParamsFile, when set, overrides the built-in parameter table.
	ParamsFile string
}

const defaultWCSBaseURL = "https://public-api.meteofrance.fr/public/arome/1.0/wcs/MF-NWP-HIGHRES-AROME-001-FRANCE-WCS"

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	wcsTimeout, err := envDuration("WCS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fetchBackoff, err := envDuration("FETCH_BACKOFF", 2*time.Second)
	if err != nil {
		return nil, err
	}
	fetchMaxBackoff, err := envDuration("FETCH_MAX_BACKOFF", 30*time.Second)
	if err != nil {
		return nil, err
	}
	retention, err := envDuration("RETENTION", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	fetchWorkers, err := envInt("FETCH_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	fetchAttempts, err := envInt("FETCH_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	renderWorkers, err := envInt("RENDER_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	outputWidth, err := envInt("OUTPUT_WIDTH", 800)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StoreDir:  envOrDefault("STORE_DIR", "data/store"),
		OutputDir: envOrDefault("OUTPUT_DIR", "data/out"),

		WCSBaseURL: envOrDefault("WCS_BASE_URL", defaultWCSBaseURL),
		WCSAPIKey:  os.Getenv("WCS_API_KEY"),
		WCSTimeout: wcsTimeout,

		FetchWorkers:    fetchWorkers,
		FetchAttempts:   fetchAttempts,
		FetchBackoff:    fetchBackoff,
		FetchMaxBackoff: fetchMaxBackoff,
		Retention:       retention,

		RenderWorkers: renderWorkers,
		OutputWidth:   outputWidth,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		MetricsFile: os.Getenv("METRICS_FILE"),
		ParamsFile:  os.Getenv("PARAMS_FILE"),
	}

	if cfg.StoreDir == "" {
		return nil, errors.New("STORE_DIR is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.WCSBaseURL == "" {
		return nil, errors.New("WCS_BASE_URL is required")
	}
	if cfg.OutputWidth < 16 || cfg.OutputWidth > 8192 {
		return nil, errors.New("OUTPUT_WIDTH must be between 16 and 8192")
	}

	if cfg.ParamsFile != "" {
		if err := loadParamsFile(cfg.ParamsFile); err != nil {
			return nil, fmt.Errorf("PARAMS_FILE: %w", err)
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
