package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed radar.yaml
var defaultYAML []byte

// Default returns the embedded radar configuration
func Default() (*Config, error) {
	return Parse(defaultYAML)
}

// Load reads a YAML file and returns the Config with its raw bytes.
// An empty path yields the embedded default.
func Load(path string) (*Config, []byte, error) {
	if path == "" {
		cfg, err := Default()
		return cfg, defaultYAML, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read radar config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates a YAML document
// ⭐ SSOT: KnownFields(true) so a misspelled threshold fails instead of silently defaulting
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode radar config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash returns the SHA256 of the canonical YAML encoding of cfg
func Hash(cfg *Config) (string, error) {
	// yaml keeps +Inf ceilings and sorts map keys
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(out)
	return hex.EncodeToString(sum[:]), nil
}
