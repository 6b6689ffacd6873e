package domain

import (
	"fmt"
	"strings"
	"time"
)

// ParameterSpec is the per-parameter configuration table entry.
type ParameterSpec struct {
	// CoveragePattern is the upstream WCS coverage identifier with a
	// {reference_time} placeholder (dotted time format).
	CoveragePattern string `yaml:"coverage_pattern"`

	// Offsets are the forecast-hour offsets the model publishes for this
	// parameter, ascending. A run is complete when all of them are stored.
	Offsets []int `yaml:"offsets"`

	// Unit is the display unit after conversion.
	Unit string `yaml:"unit"`

	// Scale and AddOffset convert the GRIB-native value to the display
	// unit: display = native*Scale + AddOffset.
	Scale     float64 `yaml:"scale"`
	AddOffset float64 `yaml:"add_offset"`
}

// CoverageID substitutes the reference time into the coverage pattern using
// the provider's dotted timestamp form.
func (s ParameterSpec) CoverageID(reference time.Time) string {
	return strings.ReplaceAll(s.CoveragePattern, "{reference_time}",
		reference.UTC().Format(ReferenceTimeFormat))
}

// ToDisplay converts a GRIB-native value into the display unit.
func (s ParameterSpec) ToDisplay(v float64) float64 {
	return v*s.Scale + s.AddOffset
}

// ReferenceTimeFormat is the dotted timestamp embedded in AROME coverage
// identifiers.
const ReferenceTimeFormat = "2006-01-02T15.04.05Z"

var specs = map[Parameter]ParameterSpec{
	ParameterRain: {
		CoveragePattern: "TOTAL_PRECIPITATION__GROUND_OR_WATER_SURFACE___{reference_time}_PT1H",
		Offsets:         hourly(0, 24, 1),
		Unit:            "mm",
		Scale:           1, // kg m-2 over 1 h is already mm
	},
	ParameterTemperature: {
		CoveragePattern: "TEMPERATURE__SPECIFIC_HEIGHT_LEVEL_ABOVE_GROUND___{reference_time}",
		Offsets:         hourly(0, 36, 1),
		Unit:            "degC",
		Scale:           1,
		AddOffset:       -273.15, // kelvin to celsius
	},
	ParameterClouds: {
		CoveragePattern: "TOTAL_CLOUD_COVER__GROUND_OR_WATER_SURFACE___{reference_time}",
		Offsets:         hourly(0, 48, 3),
		Unit:            "fraction",
		Scale:           0.01, // percent to fractional cover
	},
}

// Spec returns the table entry for p. Unknown parameters have no entry;
// callers hold a Parameter that already passed ParseParameter.
func Spec(p Parameter) (ParameterSpec, error) {
	s, ok := specs[p]
	if !ok {
		return ParameterSpec{}, fmt.Errorf("no spec for parameter %q", p)
	}
	return s, nil
}

// OverrideSpecs replaces table entries, used when a params file is
// configured. Entries for unknown parameters are rejected so typos do not
// silently extend the closed set.
func OverrideSpecs(overrides map[Parameter]ParameterSpec) error {
	for p, s := range overrides {
		if _, ok := specs[p]; !ok {
			return fmt.Errorf("override for unknown parameter %q", p)
		}
		if len(s.Offsets) == 0 {
			return fmt.Errorf("override for parameter %q has no offsets", p)
		}
		if s.Scale == 0 {
			s.Scale = 1
		}
		specs[p] = s
	}
	return nil
}

func hourly(from, to, step int) []int {
	var out []int
	for h := from; h <= to; h += step {
		out = append(out, h)
	}
	return out
}
