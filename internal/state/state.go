// Package state persists updater settings and progress across runs.
package state

import (
	"encoding/json"
	"os"

	"github.com/quotedesk/selfupdate/api"
)

var currentStateVersion = 1

// State represents the on-disk persistent state.
type State struct {
	path string

	StateVersion int `json:"state_version"`

	Update api.Update `json:"update"`
}

// LoadOrCreate parses the on-disk state file and returns a State struct.
// If no file exists, a new one with default values is created.
func LoadOrCreate(path string) (*State, error) {
	s := State{
		path: path,
	}

	body, err := os.ReadFile(s.path)
	if err == nil {
		err = json.Unmarshal(body, &s)
		if err != nil {
			return nil, err
		}

		err = s.upgrade()

		return &s, err
	}

	if os.IsNotExist(err) {
		// Initialize with default values.
		s.initialize()

		// State file doesn't exist, create it and return it.
		err = s.Save()
		if err != nil {
			return nil, err
		}

		return &s, nil
	}

	return nil, err
}

// Save writes out the current state struct into its on-disk storage.
func (s *State) Save() error {
	body, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, body, 0o600)
}

// initialize sets default values for a new state file.
func (s *State) initialize() {
	s.StateVersion = currentStateVersion

	// Use the default update channel.
	s.Update.Config.Channel = "stable"

	// Check for updates every 6 hours unless told otherwise.
	s.Update.Config.CheckFrequency = "6h"

	// Updates start out as manual.
	s.Update.Config.AutoApply = false

	s.Update.State.Status = api.UpdateStatusIdle
}
