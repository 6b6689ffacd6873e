package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

// loadParamsFile applies a YAML parameter-table override, e.g.
//
//	rain:
//	  coverage_pattern: TOTAL_PRECIPITATION__GROUND_OR_WATER_SURFACE___{reference_time}_PT1H
//	  offsets: [0, 1, 2, 3]
//	  unit: mm
//	  scale: 1
//
// Only parameters named in the file are replaced; the rest keep their
// built-in table entries.
func loadParamsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]domain.ParameterSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	overrides := make(map[domain.Parameter]domain.ParameterSpec, len(raw))
	for name, spec := range raw {
		p, err := domain.ParseParameter(name)
		if err != nil {
			return err
		}
		overrides[p] = spec
	}
	return domain.OverrideSpecs(overrides)
}
