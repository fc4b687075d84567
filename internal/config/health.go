package config

import (
	"fmt"
	"time"
)

// HealthConfig tunes provider health tracking. The decay constant and
// blacklist threshold were chosen empirically; keep the qualitative behavior
// (exponential decay, temporary exclusion, grace-period recovery) when tuning.
type HealthConfig struct {
	SuccessDecay       float64  `yaml:"success_decay"`        // rolling rate decay factor per observation
	BlacklistThreshold float64  `yaml:"blacklist_threshold"`  // below this the provider is excluded
	RecoveryRate       float64  `yaml:"recovery_rate"`        // success rate restored after the grace period
	OfflineGracePeriod string   `yaml:"offline_grace_period"` // exclusion duration
	ProbeInterval      string   `yaml:"probe_interval"`       // connectivity probe cadence
	ProbeTimeout       string   `yaml:"probe_timeout"`        // per-target dial timeout
	ProbeTargets       []string `yaml:"probe_targets"`        // host:port dial targets
}

// GetOfflineGracePeriod returns the blacklist grace period as a duration.
func (c *Config) GetOfflineGracePeriod() time.Duration {
	d, err := time.ParseDuration(c.Health.OfflineGracePeriod)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetProbeInterval returns the connectivity probe interval as a duration.
func (c *Config) GetProbeInterval() time.Duration {
	d, err := time.ParseDuration(c.Health.ProbeInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetProbeTimeout returns the per-target probe timeout as a duration.
func (c *Config) GetProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Health.ProbeTimeout)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// ValidateHealth checks health tunables are within acceptable ranges.
func (c *Config) ValidateHealth() error {
	h := c.Health
	if h.SuccessDecay <= 0 || h.SuccessDecay >= 1 {
		return fmt.Errorf("health.success_decay must be in (0,1), got %v", h.SuccessDecay)
	}
	if h.BlacklistThreshold <= 0 || h.BlacklistThreshold >= 1 {
		return fmt.Errorf("health.blacklist_threshold must be in (0,1), got %v", h.BlacklistThreshold)
	}
	if h.RecoveryRate < 0 || h.RecoveryRate > 1 {
		return fmt.Errorf("health.recovery_rate must be in [0,1], got %v", h.RecoveryRate)
	}
	if h.RecoveryRate < h.BlacklistThreshold {
		return fmt.Errorf("health.recovery_rate %v would re-blacklist immediately (threshold %v)",
			h.RecoveryRate, h.BlacklistThreshold)
	}
	return nil
}
