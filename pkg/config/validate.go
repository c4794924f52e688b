// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"
)

// ValidateCore ensures critical configuration is present and that the
// engine's EWMA alpha and alert/block thresholds are in range.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Engine.EWMAAlpha <= 0 || c.Engine.EWMAAlpha > 1 {
		return fmt.Errorf("ENGINE_EWMA_ALPHA must be in (0,1], got %v", c.Engine.EWMAAlpha)
	}
	if c.Engine.AlertThreshold >= c.Engine.BlockThreshold {
		return fmt.Errorf("ENGINE_ALERT_THRESHOLD (%v) must be below ENGINE_BLOCK_THRESHOLD (%v)", c.Engine.AlertThreshold, c.Engine.BlockThreshold)
	}

	return nil
}
