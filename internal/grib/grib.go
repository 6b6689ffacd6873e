// Package grib decodes the subset of GRIB2 the AROME distribution uses: one
// self-describing message per parameter and timestep, grid definition
// template 3.0 (regular lat/lon) or 3.30 (Lambert conformal), product
// definition template 4.0, and simple packing (data representation template
// 5.0) with an optional bitmap.
//
// The format contract is deliberately narrow. Anything outside it fails
// with *UnsupportedFormatError rather than a guess, so an upstream encoding
// change is caught at fetch-time validation with a precise report. A
// matching Encode exists so fixtures and local development runs are built
// with the same code paths the pipeline trusts.
package grib

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/nwp-overlay/internal/proj"
)

// Grid is one decoded GRIB2 message: grid geometry plus unpacked values.
type Grid struct {
	Discipline uint8
	Category   uint8 // parameter category within the discipline
	Number     uint8 // parameter number within the category

	Reference    time.Time
	ForecastHour int

	Geometry Geometry

	// Values holds the unpacked field in row-major order (row 0 first),
	// len Rows*Cols, in GRIB-native physical units. Missing cells are NaN.
	Values []float64
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.Geometry.Cols+col]
}

// IsMissing reports whether the cell at (row, col) is missing.
func (g *Grid) IsMissing(row, col int) bool {
	return math.IsNaN(g.At(row, col))
}

// GridKind discriminates the supported grid definition templates.
type GridKind int

const (
	// KindLatLon is template 3.0, a regular latitude/longitude grid.
	KindLatLon GridKind = iota
	// KindLambert is template 3.30, a Lambert conformal conic grid.
	KindLambert
)

// Geometry describes the grid layout and its native coordinate reference
// system, sufficient to map a geographic coordinate to a fractional cell.
type Geometry struct {
	Kind GridKind
	Rows int // Nj / Ny
	Cols int // Ni / Nx

	// jPositive is true when row index increases northwards (scanning
	// mode bit). AROME publishes north-to-south grids, jPositive false.
	JPositive bool

	// Lat/lon grids (KindLatLon): first point and increments in degrees.
	La1, Lo1 float64
	Di, Dj   float64

	// Lambert grids (KindLambert): projection and the projected
	// coordinate of the first grid point, increments in metres.
	Lambert *proj.LambertConformal
	X1, Y1  float64
	Dx, Dy  float64
}

// Locate maps a geographic coordinate to a continuous (col, row) position
// on the grid. Cell centers sit at integer positions; the returned position
// may fall outside [0, Cols-1]x[0, Rows-1], which callers treat as outside
// the native extent.
func (ge *Geometry) Locate(lat, lon float64) (col, row float64) {
	switch ge.Kind {
	case KindLambert:
		x, y := ge.Lambert.Forward(lat, lon)
		col = (x - ge.X1) / ge.Dx
		if ge.JPositive {
			row = (y - ge.Y1) / ge.Dy
		} else {
			row = (ge.Y1 - y) / ge.Dy
		}
	default:
		// Keep the longitude difference in (-180, 180] so grids that
		// straddle the antimeridian index continuously.
		dlon := math.Mod(lon-ge.Lo1+540, 360) - 180
		col = dlon / ge.Di
		if ge.JPositive {
			row = (lat - ge.La1) / ge.Dj
		} else {
			row = (ge.La1 - lat) / ge.Dj
		}
	}
	return col, row
}

// CellCenter is the inverse of Locate for integer cells: the geographic
// coordinate of the center of cell (row, col).
func (ge *Geometry) CellCenter(row, col int) (lat, lon float64) {
	switch ge.Kind {
	case KindLambert:
		x := ge.X1 + float64(col)*ge.Dx
		var y float64
		if ge.JPositive {
			y = ge.Y1 + float64(row)*ge.Dy
		} else {
			y = ge.Y1 - float64(row)*ge.Dy
		}
		return ge.Lambert.Inverse(x, y)
	default:
		lon = ge.Lo1 + float64(col)*ge.Di
		if lon > 180 {
			lon -= 360
		}
		if ge.JPositive {
			lat = ge.La1 + float64(row)*ge.Dj
		} else {
			lat = ge.La1 - float64(row)*ge.Dj
		}
		return lat, lon
	}
}

// DecodeError reports malformed or truncated input. It is non-retryable:
// refetching the same bytes will not help, the offset is skipped.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grib decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("grib decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a structurally valid message using a
// template or packing outside the supported subset. Fatal for the message.
type UnsupportedFormatError struct {
	What     string // e.g. "grid definition template"
	Template int
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("grib: unsupported %s %d", e.What, e.Template)
}

func decodeErrf(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}
