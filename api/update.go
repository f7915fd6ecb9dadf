package api

import (
	"errors"
	"slices"
	"time"
)

// Update defines a struct to hold information about the application's update policy.
type Update struct {
	Config UpdateConfig `json:"config" yaml:"config"`

	State UpdateState `json:"state" yaml:"state"`
}

// UpdateConfig defines a struct to hold configuration details for the update checks.
type UpdateConfig struct {
	AutoApply      bool   `json:"auto_apply"      yaml:"auto_apply"`
	Channel        string `json:"channel"         yaml:"channel"`
	CheckFrequency string `json:"check_frequency" yaml:"check_frequency"`
}

// UpdateState holds information about the current update state.
type UpdateState struct {
	LastCheck      time.Time    `json:"last_check"                yaml:"last_check"`
	LastAttempt    time.Time    `json:"last_attempt"              yaml:"last_attempt"`
	Status         UpdateStatus `json:"status"                    yaml:"status"`
	PendingVersion string       `json:"pending_version,omitempty" yaml:"pending_version,omitempty"`
	LastFailure    string       `json:"last_failure,omitempty"    yaml:"last_failure,omitempty"`
}

// Validate performs basic sanity checks against update configuration.
func (c *UpdateConfig) Validate() error {
	// Check the update channel is valid.
	if !slices.Contains([]string{"stable", "beta"}, c.Channel) {
		return errors.New("invalid update channel '" + c.Channel + "'")
	}

	// Check the update frequency is valid.
	if c.CheckFrequency != "never" {
		_, err := time.ParseDuration(c.CheckFrequency)
		if err != nil {
			return errors.New("invalid update check frequency: " + err.Error())
		}
	}

	return nil
}
