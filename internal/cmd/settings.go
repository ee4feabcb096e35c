package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"reqflow/internal/config"
)

// SettingsCmd manages settings
type SettingsCmd struct {
	Show SettingsShowCmd `cmd:"show" help:"Show the settings file location and current values" default:"1"`
	Set  SettingsSetCmd  `cmd:"set" help:"Set a settings value and write it back to settings.json"`
}

// SettingsShowCmd displays the settings file path and its current contents
type SettingsShowCmd struct{}

// Run executes the show command
func (s *SettingsShowCmd) Run(cli *CLI) error {
	settings := cli.settings
	if settings == nil {
		settings = &config.Settings{}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	fmt.Printf("Settings file: %s\n\n", config.GetSettingsPath())
	fmt.Println(string(data))
	return nil
}

// SettingsSetCmd sets one settings key
type SettingsSetCmd struct {
	Key   string `arg:"" help:"Settings key (e.g., analyzer_url, db_path, cache_ttl_minutes)"`
	Value string `arg:"" help:"Value to store"`
}

// Run executes the set command
func (s *SettingsSetCmd) Run(cli *CLI) error {
	settings := cli.settings
	if settings == nil {
		settings = &config.Settings{}
	}

	switch s.Key {
	case "analyzer_url":
		settings.AnalyzerURL = s.Value
	case "generator_url":
		settings.GeneratorURL = s.Value
	case "db_path":
		settings.DBPath = config.ExpandPath(s.Value)
	case "cache_dir":
		settings.CacheDir = config.ExpandPath(s.Value)
	case "listen_addr":
		settings.ListenAddr = s.Value
	case "cache_ttl_minutes":
		minutes, err := strconv.Atoi(s.Value)
		if err != nil {
			return fmt.Errorf("cache_ttl_minutes must be an integer: %w", err)
		}
		settings.CacheTTLMinutes = &minutes
	case "capability_timeout_seconds":
		seconds, err := strconv.Atoi(s.Value)
		if err != nil {
			return fmt.Errorf("capability_timeout_seconds must be an integer: %w", err)
		}
		settings.CapabilityTimeoutSeconds = &seconds
	case "max_log_files":
		count, err := strconv.Atoi(s.Value)
		if err != nil {
			return fmt.Errorf("max_log_files must be an integer: %w", err)
		}
		settings.MaxLogFiles = &count
	case "debug":
		enabled, err := strconv.ParseBool(s.Value)
		if err != nil {
			return fmt.Errorf("debug must be true or false: %w", err)
		}
		settings.Debug = &enabled
	default:
		return fmt.Errorf("unknown settings key %q", s.Key)
	}

	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Printf("%s set in %s\n", s.Key, config.GetSettingsPath())
	return nil
}
