package memory

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ankittk/devcrew/internal/errs"
	"gopkg.in/yaml.v3"
)

// AgentConfig holds per-agent completion overrides layered over the system
// config. Zero or nil fields leave the system value in place; temperature is a
// pointer so an explicit 0 still overrides.
type AgentConfig struct {
	Model       string   `yaml:"model,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

func (c *AgentConfig) validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens %d must not be negative", c.MaxTokens)
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature %v must be within [0, 2]", *t)
	}
	return nil
}

// Merge returns base with c's set fields applied. A nil c returns base.
func (c *AgentConfig) Merge(base AgentConfig) AgentConfig {
	if c == nil {
		return base
	}
	if c.Model != "" {
		base.Model = c.Model
	}
	if c.MaxTokens > 0 {
		base.MaxTokens = c.MaxTokens
	}
	if c.Temperature != nil {
		base.Temperature = c.Temperature
	}
	return base
}

// LoadAgentConfig loads <agentDir>/config.yaml. A missing file is (nil, nil).
// Unknown keys and out-of-range values are configuration errors.
func LoadAgentConfig(agentDir string) (*AgentConfig, error) {
	path := AgentConfigPath(agentDir)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var cfg AgentConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrConfiguration, path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrConfiguration, path, err)
	}
	return &cfg, nil
}

// SaveAgentConfig writes cfg to <agentDir>/config.yaml.
func SaveAgentConfig(agentDir string, cfg *AgentConfig) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(AgentConfigPath(agentDir), data, 0o644)
}
