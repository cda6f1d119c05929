package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles loading of the per-user configuration.
type Loader struct {
	configHome string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return &Loader{
		configHome: configHome,
	}
}

// GlobalConfigPath returns where the global config is read from.
func (l *Loader) GlobalConfigPath() string {
	return filepath.Join(l.configHome, "dmake", "config.yaml")
}

// LoadGlobalConfig loads the global dmake configuration. A missing file
// yields the defaults; DMAKE_RUNTIME and DMAKE_LOG_LEVEL override the file.
func (l *Loader) LoadGlobalConfig() (*GlobalConfig, error) {
	globalViper := viper.New()
	globalViper.SetConfigFile(l.GlobalConfigPath())
	globalViper.SetDefault("runtime", RuntimeDocker)
	globalViper.SetDefault("log_level", "info")
	globalViper.SetEnvPrefix("dmake")
	globalViper.AutomaticEnv()

	if err := globalViper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}

	config := &GlobalConfig{}
	if err := globalViper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal global config: %w", err)
	}

	switch config.Runtime {
	case RuntimeDocker, RuntimePodman, RuntimeDockerAPI:
	default:
		return nil, fmt.Errorf("%w for runtime: %q (want %s, %s or %s)",
			ErrInvalidValue, config.Runtime, RuntimeDocker, RuntimePodman, RuntimeDockerAPI)
	}

	return config, nil
}
