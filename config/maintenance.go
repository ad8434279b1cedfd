package config

import "time"

// MaintenanceConfig configures the background database maintenance loop.
type MaintenanceConfig struct {
	// Interval between maintenance sweeps.
	Interval time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"1h"`
}

// Sanitize applies guardrails to values loaded from env.
func (c *MaintenanceConfig) Sanitize() {
	if c.Interval < time.Minute {
		c.Interval = time.Minute
	}
}
