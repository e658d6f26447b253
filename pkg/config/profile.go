package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/pact/pkg/reliability"
)

// Profile is the operational tuning profile loaded from YAML. Everything
// here has a safe default; a deployment only overrides what it needs.
type Profile struct {
	Name        string             `yaml:"name" json:"name"`
	Reliability reliability.Config `yaml:"reliability" json:"reliability"`
	Wizard      WizardConfig       `yaml:"wizard" json:"wizard"`
	Funds       FundsConfig        `yaml:"funds" json:"funds"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Sweep       SweepConfig        `yaml:"sweep" json:"sweep"`
}

// WizardConfig tunes the conversational create flow.
type WizardConfig struct {
	TimeoutMinutes int `yaml:"timeout_minutes" json:"timeout_minutes"`
}

// FundsConfig tunes fund-lock behavior.
type FundsConfig struct {
	// FeeHeadroomMicro is the extra balance in micro-units a participant
	// must hold beyond the stake to cover transaction fees.
	FeeHeadroomMicro int64 `yaml:"fee_headroom_micro" json:"fee_headroom_micro"`
}

// RateLimitConfig throttles inbound webhook traffic per sender.
type RateLimitConfig struct {
	MessagesPerMinute float64 `yaml:"messages_per_minute" json:"messages_per_minute"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// SweepConfig tunes the deadline sweep loop.
type SweepConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

// DefaultProfile returns the tuning used when no profile file is given.
func DefaultProfile() *Profile {
	return &Profile{
		Name:        "default",
		Reliability: reliability.DefaultConfig(),
		Wizard:      WizardConfig{TimeoutMinutes: 10},
		Funds:       FundsConfig{FeeHeadroomMicro: 1000},
		RateLimit:   RateLimitConfig{MessagesPerMinute: 30, Burst: 10},
		Sweep:       SweepConfig{IntervalSeconds: 60},
	}
}

// LoadProfile reads a YAML profile. Fields absent from the file keep
// their defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return profile, nil
}

// WizardTimeout returns the wizard timeout as a duration.
func (p *Profile) WizardTimeout() time.Duration {
	return time.Duration(p.Wizard.TimeoutMinutes) * time.Minute
}

// SweepInterval returns the sweep interval as a duration.
func (p *Profile) SweepInterval() time.Duration {
	return time.Duration(p.Sweep.IntervalSeconds) * time.Second
}

// RatePerSecond converts the per-minute message budget to the per-second
// limit the webhook rate limiter expects.
func (p *Profile) RatePerSecond() float64 {
	return p.RateLimit.MessagesPerMinute / 60.0
}
