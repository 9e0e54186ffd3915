package config

import "fmt"

// WorkflowConfig configures the ticket workflow engine.
type WorkflowConfig struct {
	// MaxIterations bounds remediation attempts per run. A run that fails
	// this many attempts is escalated.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// SetDefaults sets default values for WorkflowConfig.
func (c *WorkflowConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 5
	}
}

// Validate validates the WorkflowConfig.
func (c *WorkflowConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	return nil
}
