package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings represents the structure of ~/.reqflow/settings.json. Pointer
// fields distinguish "unset" from a zero value so CLI flags and environment
// variables can take precedence.
type Settings struct {
	AnalyzerURL              string `json:"analyzer_url,omitempty"`
	CacheDir                 string `json:"cache_dir,omitempty"`
	CacheTTLMinutes          *int   `json:"cache_ttl_minutes,omitempty"`
	CapabilityTimeoutSeconds *int   `json:"capability_timeout_seconds,omitempty"`
	DBPath                   string `json:"db_path,omitempty"`
	Debug                    *bool  `json:"debug,omitempty"`
	GeneratorURL             string `json:"generator_url,omitempty"`
	ListenAddr               string `json:"listen_addr,omitempty"`
	MaxLogFiles              *int   `json:"max_log_files,omitempty"`
}

// LoadSettings loads settings from $REQFLOW_HOME/settings.json (or
// ~/.reqflow/settings.json if not set).
// Returns empty Settings if file doesn't exist (not an error)
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil // Not an error, use defaults
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}

	if settings.DBPath != "" {
		settings.DBPath = ExpandPath(settings.DBPath)
	}
	if settings.CacheDir != "" {
		settings.CacheDir = ExpandPath(settings.CacheDir)
	}

	return &settings, nil
}

// SaveSettings saves settings to $REQFLOW_HOME/settings.json
func SaveSettings(settings *Settings) error {
	path := GetSettingsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
