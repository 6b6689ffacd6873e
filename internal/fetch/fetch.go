// Package fetch implements the acquisition stage: resolving the latest
// published run for a parameter and downloading its forecast-hour grids
// into the local store.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/nwp-overlay/internal/config"
	"github.com/couchcryptid/nwp-overlay/internal/domain"
	"github.com/couchcryptid/nwp-overlay/internal/grib"
	"github.com/couchcryptid/nwp-overlay/internal/observability"
	"github.com/couchcryptid/nwp-overlay/internal/store"
)

// Upstream is the provider surface the fetcher needs: an index lookup and a
// per-offset download. *wcs.Client implements it.
type Upstream interface {
	LatestReference(ctx context.Context, p domain.Parameter) (time.Time, error)
	FetchOffset(ctx context.Context, p domain.Parameter, ref time.Time, offset int) ([]byte, error)
}

// Result summarizes one parameter fetch. A run with failed offsets is
// partial, not failed: the invocation still exits successfully and the
// renderer works with what is present.
type Result struct {
	Parameter  domain.Parameter
	Reference  time.Time
	Downloaded []int
	Cached     []int
	Failed     []int
	Complete   bool
}

// Fetcher downloads forecast runs into the store.
type Fetcher struct {
	upstream Upstream
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// New creates a Fetcher.
func New(upstream Upstream, st *store.Store, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Fetcher {
	return &Fetcher{
		upstream: upstream,
		store:    st,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// Fetch brings the store up to date with the latest upstream run for one
// parameter. Idempotent: when the latest run is already complete locally it
// returns after the single index check. An error is returned only when the
// upstream index itself is unusable; per-offset failures are reported in
// the Result and logged.
func (f *Fetcher) Fetch(ctx context.Context, p domain.Parameter) (Result, error) {
	start := f.clock.Now()
	defer func() {
		f.metrics.FetchDuration.Observe(f.clock.Since(start).Seconds())
	}()

	spec, err := domain.Spec(p)
	if err != nil {
		return Result{}, err
	}

	ref, err := f.upstream.LatestReference(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("upstream index for %s: %w", p, err)
	}
	f.logger.Info("latest upstream run", "parameter", p, "reference", ref)

	// Reference times never regress. If the index momentarily reports an
	// older run than the store already holds, keep the stored one.
	if newest, err := f.store.LatestRun(p); err == nil && newest.Reference.After(ref) {
		f.logger.Warn("upstream index reports older run than store, ignoring",
			"parameter", p, "index_reference", ref, "store_reference", newest.Reference)
		return Result{Parameter: p, Reference: newest.Reference, Complete: newest.Complete}, nil
	}

	res := Result{Parameter: p, Reference: ref}

	if run, err := f.store.RunInfo(p, ref); err == nil && run.Complete {
		f.logger.Info("run already complete, nothing to do", "parameter", p, "reference", ref)
		res.Cached = run.Offsets
		res.Complete = true
		return res, nil
	}

	var missing []int
	for _, offset := range spec.Offsets {
		if f.store.HasOffset(p, ref, offset) {
			res.Cached = append(res.Cached, offset)
			f.metrics.OffsetsCached.WithLabelValues(string(p)).Inc()
		} else {
			missing = append(missing, offset)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.FetchWorkers)
	for _, offset := range missing {
		offset := offset
		g.Go(func() error {
			err := f.fetchOffset(gctx, p, ref, offset)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Isolated: one bad offset leaves the run partial.
				f.logger.Error("offset abandoned",
					"parameter", p, "reference", ref, "offset", offset, "error", err)
				f.metrics.OffsetFailures.WithLabelValues(string(p)).Inc()
				res.Failed = append(res.Failed, offset)
				return nil
			}
			res.Downloaded = append(res.Downloaded, offset)
			f.metrics.OffsetsDownloaded.WithLabelValues(string(p)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	sort.Ints(res.Downloaded)
	sort.Ints(res.Failed)

	// Interruption mid-fetch must still leave consistent metadata for
	// whatever was committed.
	run, err := f.store.WriteRunInfo(p, ref, spec.Offsets)
	if err != nil {
		return res, fmt.Errorf("write run info: %w", err)
	}
	res.Complete = run.Complete

	if ctx.Err() == nil {
		pruned := f.store.Prune(p, f.cfg.Retention)
		f.metrics.RunsPruned.WithLabelValues(string(p)).Add(float64(pruned))
	}

	f.logger.Info("fetch finished",
		"parameter", p,
		"reference", ref,
		"downloaded", len(res.Downloaded),
		"cached", len(res.Cached),
		"failed", len(res.Failed),
		"complete", res.Complete,
	)
	return res, ctx.Err()
}

// fetchOffset downloads and validates one forecast-hour grid, retrying
// transient failures with exponential backoff. A blob is committed to the
// store only after it decodes, so an interrupted or corrupt download never
// becomes visible to the renderer.
func (f *Fetcher) fetchOffset(ctx context.Context, p domain.Parameter, ref time.Time, offset int) error {
	backoff := f.cfg.FetchBackoff

	var lastErr error
	for attempt := 1; attempt <= f.cfg.FetchAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := f.upstream.FetchOffset(ctx, p, ref, offset)
		if err == nil {
			err = validate(data)
		}
		if err == nil {
			return f.store.PutOffset(p, ref, offset, data)
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		f.logger.Warn("offset fetch attempt failed",
			"parameter", p, "offset", offset, "attempt", attempt, "error", err)

		if attempt < f.cfg.FetchAttempts {
			if !f.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, f.cfg.FetchMaxBackoff)
		}
	}
	return fmt.Errorf("after %d attempts: %w", f.cfg.FetchAttempts, lastErr)
}

// validate rejects a download before it reaches the store: it must be
// non-empty and decode as a supported GRIB2 message.
func validate(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty response body")
	}
	if _, err := grib.Decode(data); err != nil {
		return err
	}
	return nil
}

// retryable separates transient network failures from format errors that
// will fail identically on every attempt.
func retryable(err error) bool {
	var de *grib.DecodeError
	var ue *grib.UnsupportedFormatError
	return !errors.As(err, &de) && !errors.As(err, &ue)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleep waits on the injected clock so tests can advance time. Returns
// false if the context was cancelled first.
func (f *Fetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-f.clock.After(d):
		return true
	}
}
