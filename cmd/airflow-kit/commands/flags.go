package commands

import (
	"github.com/savaki/airflow-kit/internal/config"
	"github.com/savaki/airflow-kit/internal/constants"
	"github.com/urfave/cli/v2"
)

// GlobalFlags are accepted before any command name.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project-dir",
			Aliases: []string{"C"},
			Usage:   "Project root containing scripts/, dags/ and the compose file",
			Value:   ".",
			EnvVars: []string{"AIRFLOW_KIT_PROJECT_DIR"},
		},
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Settings file, relative to the project root",
			Value:   constants.EnvFile,
			EnvVars: []string{"AIRFLOW_KIT_ENV_FILE"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{"AIRFLOW_KIT_DEBUG"},
		},
		&cli.BoolFlag{
			Name:    "trace",
			Usage:   "Print every docker command before it runs",
			EnvVars: []string{"AIRFLOW_KIT_TRACE"},
		},
	}
}

// loadConfig collects global flags and whichever command flags are defined.
// Flags a command does not declare read as zero values and fall back to
// defaults in config.Normalize.
func loadConfig(c *cli.Context) config.Config {
	return config.Config{
		ProjectDir:   c.String("project-dir"),
		EnvFile:      c.String("env-file"),
		ComposeFile:  c.String("compose-file"),
		Service:      c.String("service"),
		ReadyTimeout: c.Duration("ready-timeout"),
		DryRun:       c.Bool("dry-run"),
		Trace:        c.Bool("trace"),
		FromEnv:      c.Bool("from-env"),
		SSMPath:      c.String("ssm-path"),
		SecretID:     c.String("secret-id"),
		Region:       c.String("region"),
	}
}
