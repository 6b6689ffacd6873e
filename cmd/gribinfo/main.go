// Command gribinfo decodes a GRIB2 file and prints a one-screen summary of
// its metadata and value range. Handy for inspecting what the upstream API
// actually returned when a render looks wrong.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/nwp-overlay/internal/grib"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s <file.grib2> ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no input files")
	}

	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		g, err := grib.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printGrid(path, g)
	}
	return nil
}

func printGrid(path string, g *grib.Grid) {
	fmt.Printf("%s:\n", path)
	fmt.Printf("  product:   discipline=%d category=%d number=%d\n", g.Discipline, g.Category, g.Number)
	fmt.Printf("  reference: %s +%dh\n", g.Reference.Format(time.RFC3339), g.ForecastHour)

	geo := g.Geometry
	switch geo.Kind {
	case grib.KindLatLon:
		fmt.Printf("  grid:      lat/lon %dx%d, origin (%.4f, %.4f), step (%.4f, %.4f)\n",
			geo.Cols, geo.Rows, geo.La1, geo.Lo1, geo.Di, geo.Dj)
	case grib.KindLambert:
		fmt.Printf("  grid:      lambert %dx%d, origin (%.4f, %.4f), step %.0fm x %.0fm\n",
			geo.Cols, geo.Rows, geo.La1, geo.Lo1, geo.Dx, geo.Dy)
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	missing := 0
	for _, v := range g.Values {
		if math.IsNaN(v) {
			missing++
			continue
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if missing == len(g.Values) {
		fmt.Printf("  values:    %d points, all missing\n", len(g.Values))
		return
	}
	fmt.Printf("  values:    %d points (%d missing), range [%g, %g]\n",
		len(g.Values), missing, minV, maxV)
}
