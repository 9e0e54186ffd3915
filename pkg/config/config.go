// Package config defines the yaml configuration surface for deskops.
//
// Every section follows the same contract: SetDefaults fills zero values,
// Validate rejects configurations that cannot be run.
package config

import (
	"fmt"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty" json:"server,omitempty"`
	Model     ModelConfig     `yaml:"model,omitempty" json:"model,omitempty"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Workflow  WorkflowConfig  `yaml:"workflow,omitempty" json:"workflow,omitempty"`
}

// SetDefaults sets default values for all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Model.SetDefaults()
	c.RateLimit.SetDefaults()
	c.Workflow.SetDefaults()
}

// Validate validates all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return nil
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return &b
}
