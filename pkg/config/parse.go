package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// ParseStrategiesYAML parses named driver strategies from YAML bytes and validates them.
// This is used for APIs where strategies are provided as payload (not via filesystem).
func ParseStrategiesYAML(data []byte) (map[string]models.Strategy, error) {
	var doc StrategyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse strategies yaml: %w", err)
	}
	if doc.Strategies == nil {
		doc.Strategies = map[string]models.Strategy{}
	}

	if err := ValidateStrategies(doc.Strategies); err != nil {
		return nil, fmt.Errorf("invalid strategies: %w", err)
	}
	return doc.Strategies, nil
}

// ParseStrategiesYAMLString parses strategies from a YAML string and validates them.
func ParseStrategiesYAMLString(yamlText string) (map[string]models.Strategy, error) {
	return ParseStrategiesYAML([]byte(yamlText))
}

// LoadStrategies loads and parses a strategies file
func LoadStrategies(path string) (map[string]models.Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file %s: %w", path, err)
	}
	strategies, err := ParseStrategiesYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse strategies file %s: %w", path, err)
	}
	return strategies, nil
}

// ValidateStrategies checks every stop of every strategy
func ValidateStrategies(strategies map[string]models.Strategy) error {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := strategies[name]
		if name == "" {
			return fmt.Errorf("%w: driver name cannot be empty", ErrInvalidConfig)
		}
		if s.StartingTireAge < 0 {
			return fmt.Errorf("%w: %s: starting_tire_age cannot be negative", ErrInvalidConfig, name)
		}
		prevLap := 0
		for i, stop := range s.Stops {
			if stop.Compound == "" {
				return fmt.Errorf("%w: %s: stop %d: compound is required", ErrInvalidConfig, name, i+1)
			}
			if stop.PitLap <= 0 {
				return fmt.Errorf("%w: %s: stop %d: pit_lap must be positive", ErrInvalidConfig, name, i+1)
			}
			if stop.Window[0] > stop.Window[1] {
				return fmt.Errorf("%w: %s: stop %d: pit_window start after end", ErrInvalidConfig, name, i+1)
			}
			if stop.Window != [2]int{} && !stop.InWindow(stop.PitLap) {
				return fmt.Errorf("%w: %s: stop %d: pit_lap %d outside pit_window %v", ErrInvalidConfig, name, i+1, stop.PitLap, stop.Window)
			}
			if stop.TireAgeAfterStop < 0 {
				return fmt.Errorf("%w: %s: stop %d: tire_age_after_stop cannot be negative", ErrInvalidConfig, name, i+1)
			}
			if stop.PitLap <= prevLap {
				return fmt.Errorf("%w: %s: stop %d: pit_lap must be after the previous stop", ErrInvalidConfig, name, i+1)
			}
			prevLap = stop.PitLap
		}
	}
	return nil
}
