package config

import (
	"os"
	"path/filepath"
)

// LedgerDirName is the per-directory ledger location.
const LedgerDirName = ".refname"

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/refname/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LedgerDir returns the ledger directory for a document root. A configured
// override wins over the per-root default.
func LedgerDir(root, override string) string {
	if override != "" {
		return ExpandPath(override)
	}
	return filepath.Join(root, LedgerDirName)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
