// Package domain models Météo-France AROME forecast data as consumed by the
// overlay pipeline.
//
// # Data Source
//
// Forecast grids come from the Météo-France public WCS endpoint for the
// high-resolution AROME model. Each physical parameter (rain, temperature,
// clouds) is published as a WCS coverage whose identifier embeds the run's
// reference time, e.g.
//
//	TOTAL_PRECIPITATION__GROUND_OR_WATER_SURFACE___2024-11-17T15.00.00Z_PT1H
//
// Note the dotted time format inside coverage identifiers
// ("2006-01-02T15.04.05Z"); subset times in GetCoverage requests use the
// regular colon form. A run publishes one GRIB2 message per forecast-hour
// offset, and offsets appear incrementally over tens of minutes after the
// reference time, so a run observed mid-publication is simply partial.
//
// # Parameters
//
// The parameter set is closed. Each entry in the table carries everything
// the pipeline needs to know about it: the upstream coverage pattern, the
// forecast-hour offsets the model publishes for it, and how to convert the
// GRIB-native unit to the display unit (kg m-2 is already mm; temperature
// arrives in kelvin; cloud cover arrives in percent). Adding a parameter is
// a table change, not a code change; the table can also be overridden at
// runtime from a YAML file for ad-hoc products.
//
// # Runs
//
// A ForecastRun is identified by (parameter, reference time). Reference
// times for one parameter never move backwards across fetches, and a run is
// immutable once marked complete. Completeness means exactly that every
// offset in the parameter's expected set is present in the store.
package domain
