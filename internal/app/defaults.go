package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the locations used when no config file says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	DataDir    string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - LIBSTOR_CONFIG_PATH: config file location (default: ~/.config/libstor.toml)
//   - LIBSTOR_HOME: base directory for libstor data (default: ~/.local/share/libstor)
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome("LIBSTOR_CONFIG_PATH", ".config", "libstor.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome("LIBSTOR_HOME", ".local", "share", "libstor")
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		DataDir:    filepath.Join(baseDir, "db"),
	}, nil
}

func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
