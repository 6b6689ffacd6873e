package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/nwp-overlay/internal/adapter/wcs"
	"github.com/couchcryptid/nwp-overlay/internal/config"
	"github.com/couchcryptid/nwp-overlay/internal/domain"
	"github.com/couchcryptid/nwp-overlay/internal/fetch"
	"github.com/couchcryptid/nwp-overlay/internal/observability"
	"github.com/couchcryptid/nwp-overlay/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [parameter ...]\n\nDownloads the latest forecast run for each named parameter\n(default: all of %v) into the store.\n", os.Args[0], domain.Parameters())
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	params := domain.Parameters()
	if args := flag.Args(); len(args) > 0 {
		params = params[:0]
		for _, a := range args {
			p, err := domain.ParseParameter(a)
			if err != nil {
				slog.Error("invalid parameter", "arg", a, "error", err)
				return 1
			}
			params = append(params, p)
		}
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st, err := store.New(cfg.StoreDir, logger, clock)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return 1
	}

	client := wcs.NewClient(cfg.WCSBaseURL, cfg.WCSAPIKey, cfg.WCSTimeout, logger)
	fetcher := fetch.New(client, st, cfg, logger, metrics, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	for _, p := range params {
		res, err := fetcher.Fetch(ctx, p)
		if err != nil {
			logger.Error("fetch failed", "parameter", p, "error", err)
			code = 1
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(res.Failed) > 0 {
			logger.Warn("run fetched partially",
				"parameter", p, "reference", res.Reference,
				"downloaded", len(res.Downloaded), "cached", len(res.Cached), "failed", res.Failed)
		} else {
			logger.Info("run fetched",
				"parameter", p, "reference", res.Reference,
				"downloaded", len(res.Downloaded), "cached", len(res.Cached))
		}
	}

	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Error("failed to write metrics", "error", err)
	}
	return code
}
