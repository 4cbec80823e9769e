package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/cmd/airflow-kit/commands"
	"github.com/savaki/airflow-kit/internal/di"
	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logger.WithContext(ctx)

	app := &cli.App{
		Name:  "airflow-kit",
		Usage: "Tooling for the containerized Airflow deployment",
		Description: `Helpers around the docker compose deployment of Airflow.

This tool provides commands for:
  - Preparing a host: checking Docker, creating directories, writing .env
  - Running ad-hoc scripts inside the Airflow worker container
  - Rendering and building the worker image
  - Verifying the settings in .env`,
		Flags: commands.GlobalFlags(),
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = logger.Level(zerolog.DebugLevel)
				c.Context = logger.WithContext(c.Context)
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.SetupCommand(&logger),
			commands.RunCommand(&logger),
			commands.ImageCommand(&logger),
			commands.VerifyCommand(&logger),
		},
	}

	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		var exitErr *errors.ExitError
		if !stderrors.As(err, &exitErr) {
			logger.Error().Err(err).Msg("Application error")
		}
		os.Exit(errors.ExitCode(err))
	}
}
