package render

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

func TestRampAt_Clamping(t *testing.T) {
	r := RampFor(domain.ParameterRain)

	t.Run("below first stop", func(t *testing.T) {
		assert.Equal(t, r.At(0), r.At(-5))
	})
	t.Run("above saturation", func(t *testing.T) {
		assert.Equal(t, r.At(r.Saturation()), r.At(r.Saturation()+100))
	})
	t.Run("missing is transparent", func(t *testing.T) {
		assert.Equal(t, color.NRGBA{}, r.At(math.NaN()))
	})
}

func TestRampAt_Interpolation(t *testing.T) {
	r := RampFor(domain.ParameterClouds)

	// Halfway between a fully transparent and a 0xdc-alpha stop.
	c := r.At(0.5)
	assert.Equal(t, uint8(0x6e), c.A)
	assert.Equal(t, uint8(0xd8), c.R, "cloud grey holds across the ramp")

	assert.Equal(t, uint8(0x00), r.At(0).A)
	assert.Equal(t, uint8(0xdc), r.At(1).A)
}

func TestRampAlphaMonotonic(t *testing.T) {
	// Rain and cloud opacity must never decrease as intensity grows.
	for _, p := range []domain.Parameter{domain.ParameterRain, domain.ParameterClouds} {
		r := RampFor(p)
		prev := -1
		for v := 0.0; v <= r.Saturation(); v += r.Saturation() / 200 {
			a := int(r.At(v).A)
			assert.GreaterOrEqual(t, a, prev, "parameter %s at %g", p, v)
			prev = a
		}
	}
}

func TestRampFor_AllParameters(t *testing.T) {
	for _, p := range domain.Parameters() {
		r := RampFor(p)
		assert.NotEmpty(t, r.stops, "parameter %s has no ramp", p)
		assert.Greater(t, r.Saturation(), r.stops[0].v)
	}
}

func TestTemperatureRamp_DivergesAroundZero(t *testing.T) {
	r := RampFor(domain.ParameterTemperature)

	cold := r.At(-15)
	warm := r.At(30)
	assert.Greater(t, cold.B, cold.R, "cold end is blue")
	assert.Greater(t, warm.R, warm.B, "warm end is red")
	assert.Equal(t, cold.A, warm.A, "temperature overlay has constant opacity")
}
