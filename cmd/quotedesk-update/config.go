package main

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/quotedesk/selfupdate/api"
)

// Config is the on-disk configuration of the update tool.
type Config struct {
	// InstallRoot is the directory holding the QuoteDesk installation.
	InstallRoot string `yaml:"install_root"`

	// RestartExec is the binary to relaunch after a successful update.
	// Relative paths are resolved against InstallRoot.
	RestartExec string `yaml:"restart_exec,omitempty"`

	// CurrentVersion pins the installed version. When empty the version
	// recorded by the last applied update is used instead.
	CurrentVersion string `yaml:"current_version,omitempty"`

	// StatePath overrides where the updater keeps its state file.
	StatePath string `yaml:"state_path,omitempty"`

	// Provider selects the release source ("index", "github" or "local").
	Provider string `yaml:"provider,omitempty"`

	// ProviderConfig holds the provider specific settings.
	ProviderConfig map[string]string `yaml:"provider_config,omitempty"`

	// Update holds the channel and check policy.
	Update api.UpdateConfig `yaml:"update"`
}

// defaultConfigPath returns the per-user configuration file location.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quotedesk-update.yaml"
	}

	return filepath.Join(dir, "quotedesk", "update.yaml")
}

// loadConfig reads, completes and validates the tool configuration.
func loadConfig(path string) (*Config, error) {
	// #nosec G304
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("unable to read configuration file: " + err.Error())
	}

	config := &Config{}

	err = yaml.Unmarshal(body, config)
	if err != nil {
		return nil, errors.New("unable to parse configuration file: " + err.Error())
	}

	err = config.complete()
	if err != nil {
		return nil, err
	}

	return config, nil
}

// complete fills in the defaults and validates the result.
func (c *Config) complete() error {
	if c.InstallRoot == "" {
		return errors.New("install_root must be set")
	}

	absRoot, err := filepath.Abs(c.InstallRoot)
	if err != nil {
		return err
	}

	c.InstallRoot = absRoot

	if c.RestartExec == "" {
		c.RestartExec = "quotedesk"
		if runtime.GOOS == "windows" {
			c.RestartExec = "quotedesk.exe"
		}
	}

	if !filepath.IsAbs(c.RestartExec) {
		c.RestartExec = filepath.Join(c.InstallRoot, c.RestartExec)
	}

	if c.StatePath == "" {
		// Kept inside the installation so the install script carries it
		// across updates along with the rest of the user data.
		c.StatePath = filepath.Join(c.InstallRoot, ".quotedesk", "updater.json")
	}

	if c.Provider == "" {
		c.Provider = "index"
	}

	if c.ProviderConfig == nil {
		c.ProviderConfig = map[string]string{}
	}

	if c.Update.Channel == "" {
		c.Update.Channel = "stable"
	}

	if c.Update.CheckFrequency == "" {
		c.Update.CheckFrequency = "6h"
	}

	// The provider serves releases from the configured channel.
	_, ok := c.ProviderConfig["channel"]
	if !ok {
		c.ProviderConfig["channel"] = c.Update.Channel
	}

	return c.Update.Validate()
}
