package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/nwp-overlay/internal/config"
	"github.com/couchcryptid/nwp-overlay/internal/domain"
	"github.com/couchcryptid/nwp-overlay/internal/observability"
	"github.com/couchcryptid/nwp-overlay/internal/render"
	"github.com/couchcryptid/nwp-overlay/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		minLat = flag.Float64("min-lat", 41.0, "southern edge of the area of interest, degrees")
		maxLat = flag.Float64("max-lat", 51.5, "northern edge of the area of interest, degrees")
		minLon = flag.Float64("min-lon", -5.5, "western edge of the area of interest, degrees")
		maxLon = flag.Float64("max-lon", 10.0, "eastern edge of the area of interest, degrees")
		crs    = flag.String("crs", "web-mercator", "output projection (web-mercator or latlon)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st, err := store.New(cfg.StoreDir, logger, clock)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return 1
	}

	bbox := domain.BoundingBox{
		MinLat: *minLat,
		MaxLat: *maxLat,
		MinLon: *minLon,
		MaxLon: *maxLon,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := render.NewRenderer(st, cfg, logger, metrics, clock)
	res, err := renderer.Render(ctx, bbox, *crs)

	if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
		logger.Error("failed to write metrics", "error", werr)
	}

	if err != nil {
		logger.Error("render failed", "error", err)
		return 1
	}
	logger.Info("overlays written", "dir", cfg.OutputDir, "images", res.Total())
	return 0
}
