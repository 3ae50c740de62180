package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Roster is the static list of front-office agents and extra technical
// tokens, kept in a YAML file next to the deployment:
//
//	agents:
//	  - Jane Doe
//	  - John Smith
//	denylist:
//	  - astreinte
type Roster struct {
	Agents   []string `yaml:"agents" env:"ROSTER_AGENTS" env-separator:","`
	Denylist []string `yaml:"denylist" env:"ROSTER_DENYLIST" env-separator:","`
}

// LoadRoster reads a roster file
func LoadRoster(path string) (Roster, error) {
	var roster Roster
	if err := cleanenv.ReadConfig(path, &roster); err != nil {
		return roster, fmt.Errorf("failed to load roster %s: %w", path, err)
	}
	return roster, nil
}
