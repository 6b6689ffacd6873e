// Package render turns decoded forecast grids into georeferenced overlay
// images: reprojection/resampling into a target CRS clipped to a bounding
// box, a parameter-specific color ramp, and atomic PNG output.
package render

import (
	"math"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
	"github.com/couchcryptid/nwp-overlay/internal/grib"
	"github.com/couchcryptid/nwp-overlay/internal/proj"
)

// Field is a regular pixel grid in the target projection. Values are in the
// source grid's units; missing or clipped pixels are NaN.
type Field struct {
	Width  int
	Height int
	Values []float64

	// Projected extent covered by the pixel grid.
	MinX, MinY, MaxX, MaxY float64
}

// At returns the value at (row, col).
func (f *Field) At(row, col int) float64 { return f.Values[row*f.Width+col] }

// Resample projects a decoded grid onto a width-pixel-wide regular grid in
// the target projection, clipped to bbox. Height follows from the bbox
// aspect ratio in projected units. Pure: no I/O, no mutation of g.
//
// Sampling policy, applied uniformly: values are interpolated bilinearly in
// physical units; when any of the four neighbouring cells is missing the
// sample degrades to the nearest cell, and is missing only if that nearest
// cell is itself missing. A coordinate exactly on a cell boundary resolves
// to the lower-index cell. Pixels outside bbox or outside the native grid
// extent are missing.
func Resample(g *grib.Grid, bbox domain.BoundingBox, target proj.Projection, width int) *Field {
	minX, minY, maxX, maxY := projectedExtent(bbox, target)

	height := int(math.Round(float64(width) * (maxY - minY) / (maxX - minX)))
	if height < 1 {
		height = 1
	}

	f := &Field{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		MinX:   minX,
		MinY:   minY,
		MaxX:   maxX,
		MaxY:   maxY,
	}

	dx := (maxX - minX) / float64(width)
	dy := (maxY - minY) / float64(height)

	for row := 0; row < height; row++ {
		// Row 0 is the top of the image: maximum projected y.
		y := maxY - (float64(row)+0.5)*dy
		for col := 0; col < width; col++ {
			x := minX + (float64(col)+0.5)*dx

			lat, lon := target.Inverse(x, y)
			if !bbox.Contains(lat, lon) {
				f.Values[row*width+col] = math.NaN()
				continue
			}
			f.Values[row*width+col] = sample(g, lat, lon)
		}
	}
	return f
}

// projectedExtent maps the bbox corners into the target projection. Both
// supported targets are cylindrical, so corners bound the full box.
func projectedExtent(bbox domain.BoundingBox, target proj.Projection) (minX, minY, maxX, maxY float64) {
	x0, y0 := target.Forward(bbox.MinLat, bbox.MinLon)
	x1, y1 := target.Forward(bbox.MaxLat, bbox.MaxLon)
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// sample evaluates the grid at a geographic coordinate per the package
// sampling policy. NaN when outside the native extent or missing.
func sample(g *grib.Grid, lat, lon float64) float64 {
	cols, rows := g.Geometry.Cols, g.Geometry.Rows
	c, r := g.Geometry.Locate(lat, lon)

	if c < 0 || c > float64(cols-1) || r < 0 || r > float64(rows-1) {
		return math.NaN()
	}

	c0 := int(math.Floor(c))
	r0 := int(math.Floor(r))
	c1 := c0 + 1
	r1 := r0 + 1
	if c1 > cols-1 {
		c1 = cols - 1
	}
	if r1 > rows-1 {
		r1 = rows - 1
	}

	tc := c - float64(c0)
	tr := r - float64(r0)

	v00 := g.At(r0, c0)
	v01 := g.At(r0, c1)
	v10 := g.At(r1, c0)
	v11 := g.At(r1, c1)

	if anyNaN(v00, v01, v10, v11) {
		return nearest(g, c, r)
	}

	top := v00*(1-tc) + v01*tc
	bottom := v10*(1-tc) + v11*tc
	return top*(1-tr) + bottom*tr
}

// nearest picks the closest cell, ties resolving toward the lower index.
func nearest(g *grib.Grid, c, r float64) float64 {
	ci := int(math.Ceil(c - 0.5))
	ri := int(math.Ceil(r - 0.5))
	return g.At(ri, ci)
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
