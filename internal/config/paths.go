package config

import (
	"os"
	"path/filepath"
)

// GetReqflowHome returns REQFLOW_HOME or ~/.reqflow default
func GetReqflowHome() string {
	reqflowHome := os.Getenv("REQFLOW_HOME")
	if reqflowHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".reqflow"
		}
		return filepath.Join(homeDir, ".reqflow")
	}
	return ExpandPath(reqflowHome)
}

// GetDBPath returns $REQFLOW_HOME/state.db
func GetDBPath() string {
	return filepath.Join(GetReqflowHome(), "state.db")
}

// GetCachePath returns $REQFLOW_HOME/cache
func GetCachePath() string {
	return filepath.Join(GetReqflowHome(), "cache")
}

// GetSettingsPath returns $REQFLOW_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetReqflowHome(), "settings.json")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
