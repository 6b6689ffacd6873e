// Command genrun writes a synthetic forecast run into a store directory so
// that gridrender can be exercised without access to the upstream API. It
// uses the actual grib encoder and store packages, so the generated run is
// byte-for-byte what gridfetch would have produced.
//
// Usage:
//
//	go run ./cmd/genrun -store data/store -parameter rain
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
	"github.com/couchcryptid/nwp-overlay/internal/grib"
	"github.com/couchcryptid/nwp-overlay/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	storeDir := flag.String("store", "data/store", "store directory to write the run into")
	param := flag.String("parameter", "rain", "parameter to generate")
	refStr := flag.String("reference", "", "reference time (RFC 3339, default: current hour)")
	rows := flag.Int("rows", 120, "grid rows")
	cols := flag.Int("cols", 160, "grid columns")
	flag.Parse()

	p, err := domain.ParseParameter(*param)
	if err != nil {
		return err
	}
	spec, err := domain.Spec(p)
	if err != nil {
		return err
	}

	ref := time.Now().UTC().Truncate(time.Hour)
	if *refStr != "" {
		ref, err = time.Parse(time.RFC3339, *refStr)
		if err != nil {
			return fmt.Errorf("invalid -reference: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	st, err := store.New(*storeDir, logger, clockwork.NewRealClock())
	if err != nil {
		return err
	}

	for _, offset := range spec.Offsets {
		g := syntheticGrid(p, ref, offset, *rows, *cols)
		data, err := grib.Encode(g, 2)
		if err != nil {
			return fmt.Errorf("encoding +%03d: %w", offset, err)
		}
		if err := st.PutOffset(p, ref, offset, data); err != nil {
			return fmt.Errorf("storing +%03d: %w", offset, err)
		}
	}
	info, err := st.WriteRunInfo(p, ref, spec.Offsets)
	if err != nil {
		return err
	}

	log.Printf("wrote %s run %s: %d timesteps, complete=%v",
		p, ref.Format(time.RFC3339), len(info.Offsets), info.Complete)
	return nil
}

// syntheticGrid builds a regular lat/lon grid over metropolitan France with
// a diagonal band of signal that drifts northeast as the forecast hour
// advances, so successive overlays are visually distinct.
func syntheticGrid(p domain.Parameter, ref time.Time, offset, rows, cols int) *grib.Grid {
	const (
		la1 = 41.0 // first row (southern edge, JPositive)
		lo1 = -5.5
		la2 = 51.5
		lo2 = 10.0
	)
	di := (lo2 - lo1) / float64(cols-1)
	dj := (la2 - la1) / float64(rows-1)

	values := make([]float64, rows*cols)
	drift := float64(offset) * 0.15
	for r := 0; r < rows; r++ {
		lat := la1 + float64(r)*dj
		for c := 0; c < cols; c++ {
			lon := lo1 + float64(c)*di
			// Distance from the SW-NE diagonal, drifting with lead time.
			d := math.Abs((lat - la1) - (lon - lo1) - drift)
			values[r*cols+c] = bandValue(p, d)
		}
	}

	g := &grib.Grid{
		Discipline:   0,
		Category:     1,
		Number:       52,
		Reference:    ref,
		ForecastHour: offset,
		Geometry: grib.Geometry{
			Kind:      grib.KindLatLon,
			Rows:      rows,
			Cols:      cols,
			JPositive: true,
			La1:       la1,
			Lo1:       lo1,
			Di:        di,
			Dj:        dj,
		},
		Values: values,
	}
	switch p {
	case domain.ParameterTemperature:
		g.Category, g.Number = 0, 0
	case domain.ParameterClouds:
		g.Category, g.Number = 6, 1
	}
	return g
}

// bandValue maps distance from the band centre to a plausible value in the
// parameter's native GRIB unit.
func bandValue(p domain.Parameter, d float64) float64 {
	switch p {
	case domain.ParameterTemperature:
		// 258 K to 293 K across the band.
		return 293.15 - 35*math.Min(d/8, 1)
	case domain.ParameterClouds:
		// Percent cover, solid in the band, clear outside.
		return 100 * math.Max(0, 1-d/3)
	default:
		// Millimetres of rain, peaking at the band centre.
		return 12 * math.Max(0, 1-d/2)
	}
}
