package domain

import (
	"fmt"
	"time"
)

// Parameter identifies one forecast field the pipeline knows how to fetch
// and render. The set is closed; see the spec table in params.go.
type Parameter string

const (
	ParameterRain        Parameter = "rain"
	ParameterTemperature Parameter = "temperature"
	ParameterClouds      Parameter = "clouds"
)

// Parameters lists every known parameter in stable order.
func Parameters() []Parameter {
	return []Parameter{ParameterRain, ParameterTemperature, ParameterClouds}
}

// ParseParameter validates a user-supplied parameter name.
func ParseParameter(s string) (Parameter, error) {
	p := Parameter(s)
	for _, known := range Parameters() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown parameter %q (want one of rain, temperature, clouds)", s)
}

// ForecastRun describes one model execution for one parameter as recorded in
// the local store.
type ForecastRun struct {
	Parameter Parameter `json:"parameter"`
	Reference time.Time `json:"reference_time"`
	Offsets   []int     `json:"offsets"` // forecast-hour offsets present, ascending
	Complete  bool      `json:"complete"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasOffset reports whether the run contains the given forecast-hour offset.
func (r *ForecastRun) HasOffset(offset int) bool {
	for _, o := range r.Offsets {
		if o == offset {
			return true
		}
	}
	return false
}

// BoundingBox is a geographic extent used to clip rendered output.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Validate checks ordering and world bounds. A failure here is a
// configuration error: the render aborts before any I/O.
func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("latitude bounds [%v, %v] outside [-90, 90]", b.MinLat, b.MaxLat)
	}
	if b.MinLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("longitude bounds [%v, %v] outside [-180, 180]", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("min latitude %v not below max latitude %v", b.MinLat, b.MaxLat)
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("min longitude %v not below max longitude %v", b.MinLon, b.MaxLon)
	}
	return nil
}

// Contains reports whether the point lies inside the box (edges inclusive).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// MissingRunError reports that no run, complete or partial, is available for
// a parameter at render time. The render proceeds without that parameter.
type MissingRunError struct {
	Parameter Parameter
}

func (e *MissingRunError) Error() string {
	return fmt.Sprintf("no forecast run available for parameter %q", e.Parameter)
}
