package render

import (
	"image/color"
	"math"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

// Ramp is a monotonic mapping from physical value to display color. Values
// below the first stop take the first color; values above the last stop
// clamp to the last color.
type Ramp struct {
	stops []stop
}

type stop struct {
	v float64
	c color.NRGBA
}

// At evaluates the ramp, interpolating each channel linearly between stops.
func (r Ramp) At(v float64) color.NRGBA {
	if math.IsNaN(v) {
		return color.NRGBA{}
	}
	if v <= r.stops[0].v {
		return r.stops[0].c
	}
	last := r.stops[len(r.stops)-1]
	if v >= last.v {
		return last.c
	}
	for i := 1; i < len(r.stops); i++ {
		if v > r.stops[i].v {
			continue
		}
		lo, hi := r.stops[i-1], r.stops[i]
		t := (v - lo.v) / (hi.v - lo.v)
		return color.NRGBA{
			R: lerp(lo.c.R, hi.c.R, t),
			G: lerp(lo.c.G, hi.c.G, t),
			B: lerp(lo.c.B, hi.c.B, t),
			A: lerp(lo.c.A, hi.c.A, t),
		}
	}
	return last.c
}

// Saturation is the value beyond which the ramp output is constant.
func (r Ramp) Saturation() float64 { return r.stops[len(r.stops)-1].v }

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// Per-parameter display ramps over display units (mm, degC, fraction).
var ramps = map[domain.Parameter]Ramp{
	// Rain: transparent when dry, blue deepening with accumulation,
	// saturating at 30 mm/h.
	domain.ParameterRain: {stops: []stop{
		{0, color.NRGBA{0x9b, 0xc4, 0xe2, 0x00}},
		{0.2, color.NRGBA{0x9b, 0xc4, 0xe2, 0x50}},
		{1, color.NRGBA{0x51, 0x9c, 0xd6, 0x90}},
		{5, color.NRGBA{0x1f, 0x6f, 0xc4, 0xc0}},
		{15, color.NRGBA{0x0b, 0x3d, 0x91, 0xe0}},
		{30, color.NRGBA{0x06, 0x1f, 0x51, 0xf0}},
	}},
	// Temperature: diverging cold-to-warm, opaque.
	domain.ParameterTemperature: {stops: []stop{
		{-20, color.NRGBA{0x2c, 0x3e, 0xa8, 0xb4}},
		{-5, color.NRGBA{0x6f, 0xa8, 0xdc, 0xb4}},
		{0, color.NRGBA{0xf4, 0xf4, 0xf4, 0xb4}},
		{15, color.NRGBA{0xf6, 0xb2, 0x6b, 0xb4}},
		{25, color.NRGBA{0xe0, 0x5c, 0x30, 0xb4}},
		{40, color.NRGBA{0x9e, 0x0e, 0x0e, 0xb4}},
	}},
	// Clouds: grey opacity ramp over fractional cover.
	domain.ParameterClouds: {stops: []stop{
		{0, color.NRGBA{0xd8, 0xd8, 0xd8, 0x00}},
		{1, color.NRGBA{0xd8, 0xd8, 0xd8, 0xdc}},
	}},
}

// RampFor returns the display ramp for a parameter.
func RampFor(p domain.Parameter) Ramp {
	return ramps[p]
}
