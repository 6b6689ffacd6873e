package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/nwp-overlay/internal/config"
	"github.com/couchcryptid/nwp-overlay/internal/domain"
	"github.com/couchcryptid/nwp-overlay/internal/grib"
	"github.com/couchcryptid/nwp-overlay/internal/observability"
	"github.com/couchcryptid/nwp-overlay/internal/proj"
	"github.com/couchcryptid/nwp-overlay/internal/store"
)

// Result summarizes one render invocation.
type Result struct {
	// Images counts overlay files written, per parameter.
	Images map[domain.Parameter]int
	// Skipped lists parameters with no usable run.
	Skipped []domain.Parameter
}

// Total is the number of images written across all parameters.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Images {
		n += c
	}
	return n
}

// Renderer reads the most recent usable run of each parameter from the
// store and writes one overlay image per timestep to the output directory.
type Renderer struct {
	store   *store.Store
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// NewRenderer creates a Renderer.
func NewRenderer(st *store.Store, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Renderer {
	return &Renderer{store: st, cfg: cfg, logger: logger, metrics: metrics, clock: clock}
}

// Render validates its inputs, then renders every available parameter into
// cfg.OutputDir. A parameter without data is skipped; per-timestep failures
// are isolated and logged. The returned error is non-nil only for invalid
// configuration (reported before any I/O) or when no image at all could be
// produced.
func (r *Renderer) Render(ctx context.Context, bbox domain.BoundingBox, crsCode string) (Result, error) {
	res := Result{Images: make(map[domain.Parameter]int)}

	// Configuration errors abort before touching the store or output.
	if err := bbox.Validate(); err != nil {
		return res, fmt.Errorf("invalid bounding box: %w", err)
	}
	target, err := proj.Parse(crsCode)
	if err != nil {
		return res, err
	}

	start := r.clock.Now()
	defer func() {
		r.metrics.RenderDuration.Observe(r.clock.Since(start).Seconds())
	}()

	for _, p := range domain.Parameters() {
		n, err := r.renderParameter(ctx, p, bbox, target)
		if err != nil {
			var missing *domain.MissingRunError
			if errors.As(err, &missing) {
				r.logger.Warn("no run available, skipping parameter", "parameter", p)
				res.Skipped = append(res.Skipped, p)
				continue
			}
			return res, err
		}
		res.Images[p] = n
	}

	if res.Total() == 0 {
		return res, errors.New("no data available for any parameter")
	}
	r.logger.Info("render finished", "images", res.Total(), "skipped", len(res.Skipped))
	return res, nil
}

// renderParameter renders every stored timestep of the parameter's most
// recent usable run, fanning out across timesteps.
func (r *Renderer) renderParameter(ctx context.Context, p domain.Parameter, bbox domain.BoundingBox, target proj.Projection) (int, error) {
	run, err := r.store.LatestRun(p)
	if err != nil {
		return 0, err
	}
	spec, err := domain.Spec(p)
	if err != nil {
		return 0, err
	}
	r.logger.Info("rendering run",
		"parameter", p, "reference", run.Reference, "offsets", len(run.Offsets), "complete", run.Complete)

	var (
		mu      sync.Mutex
		written int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.RenderWorkers)
	for _, offset := range run.Offsets {
		offset := offset
		g.Go(func() error {
			if err := r.renderTimestep(gctx, p, spec, run, offset, bbox, target); err != nil {
				// Isolated: a bad timestep does not sink the run.
				r.logger.Error("timestep render failed",
					"parameter", p, "reference", run.Reference, "offset", offset, "error", err)
				r.metrics.RenderFailures.WithLabelValues(string(p)).Inc()
				return nil
			}
			mu.Lock()
			written++
			mu.Unlock()
			r.metrics.ImagesWritten.WithLabelValues(string(p)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, ctx.Err()
}

func (r *Renderer) renderTimestep(ctx context.Context, p domain.Parameter, spec domain.ParameterSpec, run *domain.ForecastRun, offset int, bbox domain.BoundingBox, target proj.Projection) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	raw, err := r.store.ReadOffset(p, run.Reference, offset)
	if err != nil {
		return err
	}
	grid, err := grib.Decode(raw)
	if err != nil {
		return err
	}

	field := Resample(grid, bbox, target, r.cfg.OutputWidth)
	for i, v := range field.Values {
		field.Values[i] = spec.ToDisplay(v) // NaN stays NaN
	}

	img := Rasterize(field, p)
	path := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("%s_+%03d.png", p, offset))
	return WriteImage(img, path)
}
