package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neoedge/gateway/internal/modbus"
)

// Load reads and validates the gateway's YAML configuration file
// (spec.md §6). Validation failure is a configuration error: fail fast at
// startup (spec.md §7).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", modbus.ErrConfigInvalid, path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: yaml syntax error: %v", modbus.ErrConfigInvalid, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// ValidateAndStage validates data and, if valid, atomically replaces the
// file at activePath — the /upload_config contract of spec.md §6.
func ValidateAndStage(data []byte, stagingPath, activePath string) (bool, string) {
	ok, msg := Validate(data)
	if !ok {
		return false, msg
	}
	if err := os.WriteFile(stagingPath, data, 0o644); err != nil {
		return false, fmt.Sprintf("failed to stage config: %v", err)
	}
	if err := os.Rename(stagingPath, activePath); err != nil {
		return false, fmt.Sprintf("failed to replace active config: %v", err)
	}
	return true, ""
}
