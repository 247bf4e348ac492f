package api

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"routega/internal/genetic"
)

// LoadDefaults builds the engine configuration the server starts runs
// with: shipped defaults, overlaid by the YAML file named in
// GA_CONFIG_FILE, overlaid by a few direct env knobs.
func LoadDefaults() (genetic.Config, error) {
	cfg := genetic.DefaultConfig()

	if path := os.Getenv("GA_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("GA_POPULATION_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PopulationSize = n
		}
	}
	if v := os.Getenv("GA_GENERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumGenerations = n
		}
	}
	if v := os.Getenv("GA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// mergeConfig overlays the request's config map onto the server
// defaults. The map round-trips through JSON so the camelCase request
// keys land on the same fields the API reports back.
func mergeConfig(defaults genetic.Config, overrides map[string]any) (genetic.Config, error) {
	cfg := defaults
	if len(overrides) == 0 {
		return cfg, nil
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
