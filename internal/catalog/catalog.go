// Package catalog loads the static registry of game types the Lobby is
// willing to host. Only "tetris" has a GameEngine behind it
// (internal/match); "bigtwo" is registered so the plug point described in
// spec.md §1 ("a pluggable round engine consuming the same matchmaking
// substrate") is visible in configuration even though implementing the
// Big Two rules engine itself is a Non-goal.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// GameType describes one kind of match the Lobby can start.
type GameType struct {
	Name            string `yaml:"name"`
	DisplayName     string `yaml:"display_name"`
	TickIntervalMS  int    `yaml:"tick_interval_ms"`
	MinPort         uint16 `yaml:"min_port"`
	MaxPort         uint16 `yaml:"max_port"`
	EngineAvailable bool   `yaml:"engine_available"`
}

// Catalog is the parsed games.yaml document.
type Catalog struct {
	Games []GameType `yaml:"games"`
}

// Default is used when no catalog file is present, so the Lobby can still
// boot with just Tetris registered.
func Default() Catalog {
	return Catalog{Games: []GameType{
		{
			Name:            "tetris",
			DisplayName:     "Tetris",
			TickIntervalMS:  500,
			MinPort:         15000,
			MaxPort:         60000,
			EngineAvailable: true,
		},
		{
			Name:            "bigtwo",
			DisplayName:     "Big Two",
			TickIntervalMS:  0,
			MinPort:         15000,
			MaxPort:         60000,
			EngineAvailable: false,
		},
	}}
}

// Load reads a games.yaml file from path, falling back to Default() if the
// file does not exist.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(c.Games) == 0 {
		return Default(), nil
	}
	return c, nil
}

// Lookup returns the game type by name, if registered.
func (c Catalog) Lookup(name string) (GameType, bool) {
	for _, g := range c.Games {
		if g.Name == name {
			return g, true
		}
	}
	return GameType{}, false
}
