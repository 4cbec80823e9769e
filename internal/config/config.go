// Package config holds the settings shared by every airflow-kit command.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/savaki/airflow-kit/internal/constants"
)

type Config struct {
	ProjectDir   string
	ComposeFile  string
	EnvFile      string
	Service      string
	ReadyTimeout time.Duration
	DryRun       bool
	Trace        bool

	// Sources that seed a new .env, in increasing precedence: the process
	// environment, an SSM Parameter Store path, a Secrets Manager secret.
	FromEnv  bool
	SSMPath  string
	SecretID string
	Region   string
}

// Default returns the settings used when no flag or environment variable
// overrides them.
func Default() Config {
	return Config{
		ProjectDir:   ".",
		EnvFile:      constants.EnvFile,
		Service:      constants.WorkerService,
		ReadyTimeout: time.Minute,
	}
}

// Normalize makes ProjectDir absolute and fills empty fields with defaults.
func (c Config) Normalize() (Config, error) {
	defaults := Default()
	if c.ProjectDir == "" {
		c.ProjectDir = defaults.ProjectDir
	}
	if c.EnvFile == "" {
		c.EnvFile = defaults.EnvFile
	}
	if c.Service == "" {
		c.Service = defaults.Service
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaults.ReadyTimeout
	}

	dir, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return c, fmt.Errorf("failed to resolve project dir %s: %w", c.ProjectDir, err)
	}
	c.ProjectDir = dir
	return c, nil
}

// EnvPath returns the absolute path of the settings file.
func (c Config) EnvPath() string {
	if filepath.IsAbs(c.EnvFile) {
		return c.EnvFile
	}
	return filepath.Join(c.ProjectDir, c.EnvFile)
}
