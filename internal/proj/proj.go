// Package proj implements the coordinate transforms the pipeline needs:
// the two target projections overlays are rendered in (web mercator and
// plate carrée) and the Lambert conformal conic projection AROME grids are
// natively defined on. All math is spherical; the provider's grids declare a
// spherical earth and the sub-cell error of treating the web-mercator
// sphere exactly is far below one output pixel at overlay scales.
package proj

import (
	"fmt"
	"math"
)

// Projection maps geographic coordinates (degrees) to projected plane
// coordinates and back. Units of x/y are projection-defined: metres for web
// mercator and Lambert, degrees for plate carrée.
type Projection interface {
	// Forward projects a geographic coordinate.
	Forward(lat, lon float64) (x, y float64)
	// Inverse returns the geographic coordinate of a projected point.
	Inverse(x, y float64) (lat, lon float64)
}

// Parse resolves a target projection identifier. Accepted codes:
// "web-mercator" or "EPSG:3857", and "latlon" or "EPSG:4326".
func Parse(code string) (Projection, error) {
	switch code {
	case "web-mercator", "EPSG:3857", "epsg:3857":
		return WebMercator{}, nil
	case "latlon", "EPSG:4326", "epsg:4326":
		return PlateCarree{}, nil
	}
	return nil, fmt.Errorf("unknown projection identifier %q", code)
}

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	// webMercatorRadius is the EPSG:3857 sphere radius in metres.
	webMercatorRadius = 6378137.0

	// maxMercatorLat is the latitude beyond which web mercator diverges;
	// points above it project to the map edge.
	maxMercatorLat = 85.05112877980659
)

// WebMercator is EPSG:3857, the projection of slippy web maps.
type WebMercator struct{}

func (WebMercator) Forward(lat, lon float64) (x, y float64) {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	}
	if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}
	x = webMercatorRadius * lon * degToRad
	y = webMercatorRadius * math.Log(math.Tan(math.Pi/4+lat*degToRad/2))
	return x, y
}

func (WebMercator) Inverse(x, y float64) (lat, lon float64) {
	lon = x / webMercatorRadius * radToDeg
	lat = (2*math.Atan(math.Exp(y/webMercatorRadius)) - math.Pi/2) * radToDeg
	return lat, lon
}

// PlateCarree is EPSG:4326 treated as a flat x=lon, y=lat plane.
type PlateCarree struct{}

func (PlateCarree) Forward(lat, lon float64) (x, y float64) { return lon, lat }
func (PlateCarree) Inverse(x, y float64) (lat, lon float64) { return y, x }

// LambertConformal is a spherical Lambert conformal conic projection, the
// native CRS of AROME grids. Parameters mirror GRIB2 grid definition
// template 3.30.
type LambertConformal struct {
	Radius float64 // sphere radius in metres
	RefLat float64 // latitude where Dx/Dy are true (LaD), degrees
	RefLon float64 // central meridian (LoV), degrees
	Latin1 float64 // first standard parallel, degrees
	Latin2 float64 // second standard parallel, degrees

	n    float64 // cone constant
	f    float64
	rho0 float64
}

// NewLambertConformal precomputes the cone constants. Latin1 == Latin2
// yields the single-parallel (tangent) form.
func NewLambertConformal(radius, refLat, refLon, latin1, latin2 float64) *LambertConformal {
	p := &LambertConformal{
		Radius: radius,
		RefLat: refLat,
		RefLon: refLon,
		Latin1: latin1,
		Latin2: latin2,
	}

	phi1 := latin1 * degToRad
	phi2 := latin2 * degToRad
	phi0 := refLat * degToRad

	if math.Abs(latin1-latin2) < 1e-9 {
		p.n = math.Sin(phi1)
	} else {
		p.n = math.Log(math.Cos(phi1)/math.Cos(phi2)) /
			math.Log(math.Tan(math.Pi/4+phi2/2)/math.Tan(math.Pi/4+phi1/2))
	}
	p.f = math.Cos(phi1) * math.Pow(math.Tan(math.Pi/4+phi1/2), p.n) / p.n
	p.rho0 = p.Radius * p.f / math.Pow(math.Tan(math.Pi/4+phi0/2), p.n)
	return p
}

func (p *LambertConformal) Forward(lat, lon float64) (x, y float64) {
	phi := lat * degToRad
	// Keep the longitude difference in (-180, 180] so grids straddling
	// the antimeridian project continuously.
	dlon := math.Mod(lon-p.RefLon+540, 360) - 180
	theta := p.n * dlon * degToRad

	rho := p.Radius * p.f / math.Pow(math.Tan(math.Pi/4+phi/2), p.n)
	x = rho * math.Sin(theta)
	y = p.rho0 - rho*math.Cos(theta)
	return x, y
}

func (p *LambertConformal) Inverse(x, y float64) (lat, lon float64) {
	rho := math.Sqrt(x*x + (p.rho0-y)*(p.rho0-y))
	if p.n < 0 {
		rho = -rho
	}
	theta := math.Atan2(x, p.rho0-y)

	phi := 2*math.Atan(math.Pow(p.Radius*p.f/rho, 1/p.n)) - math.Pi/2
	lat = phi * radToDeg
	lon = p.RefLon + theta/p.n*radToDeg
	if lon > 180 {
		lon -= 360
	}
	if lon < -180 {
		lon += 360
	}
	return lat, lon
}
