// Package config loads the per-process .ini configuration files, the Go
// analogue of the teacher's loadConfig helper (main.go), extended with the
// positional command-line overrides and environment variable indirection
// that spec.md's "Process boundary" section requires.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// StateServiceConfig holds everything the State Service needs to boot.
type StateServiceConfig struct {
	BindIP    string
	Port      uint16
	AdminPort uint16
	StatePath string
}

// LobbyConfig holds everything the Lobby needs to boot.
type LobbyConfig struct {
	BindIP      string
	Port        uint16
	AdminPort   uint16
	StateIP     string
	StatePort   uint16
	TokenSecret string
	WebhookURL  string
	CatalogPath string
}

// MatchRunnerConfig holds everything the standalone match runner needs to
// boot (the analogue of tetris_server.cpp's demo/stand-alone mode).
type MatchRunnerConfig struct {
	BindIP string
	Port   uint16
}

const (
	defaultStateServicePort = 12977
	defaultStateAdminPort   = 12978
	defaultLobbyPort        = 13472
	defaultLobbyAdminPort   = 13473
	defaultMatchPort        = 15234
)

// LoadStateService loads stateservice.ini (or the path given by the
// ARCADE_STATESERVICE_CONFIG environment variable), falling back to
// zero-config defaults when the file does not exist, exactly as the
// original db_server.cpp defaults when no argv overrides are given.
func LoadStateService(args []string) (StateServiceConfig, error) {
	cfg := StateServiceConfig{
		BindIP:    "0.0.0.0",
		Port:      defaultStateServicePort,
		AdminPort: defaultStateAdminPort,
		StatePath: "db_state.txt",
	}

	path := envOr("ARCADE_STATESERVICE_CONFIG", "stateservice.ini")
	if file, err := ini.Load(path); err == nil {
		sec := file.Section("server")
		cfg.BindIP = sec.Key("bind_ip").MustString(cfg.BindIP)
		cfg.Port = uint16(sec.Key("port").MustInt(int(cfg.Port)))
		cfg.AdminPort = uint16(sec.Key("admin_port").MustInt(int(cfg.AdminPort)))
		cfg.StatePath = sec.Key("state_path").MustString(cfg.StatePath)
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}

	// Positional overrides: <bind-ip> <port> [state-path]
	if len(args) >= 1 && args[0] != "" {
		cfg.BindIP = args[0]
	}
	if len(args) >= 2 && args[1] != "" {
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid port %q: %w", args[1], err)
		}
		cfg.Port = uint16(p)
	}
	if len(args) >= 3 && args[2] != "" {
		cfg.StatePath = args[2]
	}

	return cfg, nil
}

// LoadLobby loads lobby.ini (or ARCADE_LOBBY_CONFIG), with positional
// overrides <bind-ip> <port> [state-ip] [state-port].
func LoadLobby(args []string) (LobbyConfig, error) {
	cfg := LobbyConfig{
		BindIP:      "0.0.0.0",
		Port:        defaultLobbyPort,
		AdminPort:   defaultLobbyAdminPort,
		StateIP:     "127.0.0.1",
		StatePort:   defaultStateServicePort,
		CatalogPath: "games.yaml",
	}

	path := envOr("ARCADE_LOBBY_CONFIG", "lobby.ini")
	if file, err := ini.Load(path); err == nil {
		sec := file.Section("server")
		cfg.BindIP = sec.Key("bind_ip").MustString(cfg.BindIP)
		cfg.Port = uint16(sec.Key("port").MustInt(int(cfg.Port)))
		cfg.AdminPort = uint16(sec.Key("admin_port").MustInt(int(cfg.AdminPort)))
		cfg.CatalogPath = sec.Key("catalog_path").MustString(cfg.CatalogPath)

		dbSec := file.Section("stateservice")
		cfg.StateIP = dbSec.Key("ip").MustString(cfg.StateIP)
		cfg.StatePort = uint16(dbSec.Key("port").MustInt(int(cfg.StatePort)))

		tokenSec := file.Section("token")
		cfg.TokenSecret = tokenSec.Key("secret").MustString("")

		webhookSec := file.Section("webhook")
		cfg.WebhookURL = webhookSec.Key("url").MustString("")
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}

	if len(args) >= 1 && args[0] != "" {
		cfg.BindIP = args[0]
	}
	if len(args) >= 2 && args[1] != "" {
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid port %q: %w", args[1], err)
		}
		cfg.Port = uint16(p)
	}
	if len(args) >= 3 && args[2] != "" {
		cfg.StateIP = args[2]
	}
	if len(args) >= 4 && args[3] != "" {
		p, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid state-service port %q: %w", args[3], err)
		}
		cfg.StatePort = uint16(p)
	}

	return cfg, nil
}

// LoadMatchRunner loads matchrunner.ini (or ARCADE_MATCHRUNNER_CONFIG),
// with a single positional override: [port].
func LoadMatchRunner(args []string) (MatchRunnerConfig, error) {
	cfg := MatchRunnerConfig{
		BindIP: "0.0.0.0",
		Port:   defaultMatchPort,
	}

	path := envOr("ARCADE_MATCHRUNNER_CONFIG", "matchrunner.ini")
	if file, err := ini.Load(path); err == nil {
		sec := file.Section("server")
		cfg.BindIP = sec.Key("bind_ip").MustString(cfg.BindIP)
		cfg.Port = uint16(sec.Key("port").MustInt(int(cfg.Port)))
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}

	if len(args) >= 1 && args[0] != "" {
		p, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid port %q: %w", args[0], err)
		}
		cfg.Port = uint16(p)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
