package state

import (
	"fmt"
	"log/slog"
)

// upgrades are applied in order to bring an older state file up to the
// current version. Index N migrates version N to N+1.
var upgrades = []func(s *State){
	// 0 -> 1: the pre-release builds called the default channel "default".
	func(s *State) {
		if s.Update.Config.Channel == "" || s.Update.Config.Channel == "default" {
			s.Update.Config.Channel = "stable"
		}

		if s.Update.Config.CheckFrequency == "" {
			s.Update.Config.CheckFrequency = "6h"
		}
	},
}

// upgrade replays any pending migrations and persists the result.
func (s *State) upgrade() error {
	if s.StateVersion == currentStateVersion {
		return nil
	}

	if s.StateVersion > currentStateVersion {
		return fmt.Errorf("state file version %d is newer than supported version %d", s.StateVersion, currentStateVersion)
	}

	for i := s.StateVersion; i < currentStateVersion; i++ {
		slog.Info("Upgrading state file", "from", i, "to", i+1)
		upgrades[i](s)
		s.StateVersion = i + 1
	}

	return s.Save()
}
