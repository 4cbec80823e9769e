package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/bootstrap"
	"github.com/savaki/airflow-kit/internal/di"
	"github.com/urfave/cli/v2"
)

// SetupCommand returns the setup command for preparing a host
func SetupCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Check for Docker, create project directories and write .env",
		Description: `Prepare this machine for the Airflow deployment.

Safe to run repeatedly: directories are created only when missing and an
existing .env file is never overwritten. When the file lacks AIRFLOW_UID the
detected uid is appended.

A newly generated .env can be seeded instead of filled with placeholders:
  --from-env    values already exported in this shell
  --ssm-path    SSM parameters under a path, named like /airflow/dev/aws-access-key-id
  --secret-id   a Secrets Manager secret holding a JSON object
Later sources win when a key is found in several.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "from-env",
				Usage: "Seed .env from matching environment variables",
			},
			&cli.StringFlag{
				Name:    "ssm-path",
				Usage:   "SSM Parameter Store path holding .env values",
				EnvVars: []string{"AIRFLOW_KIT_SSM_PATH"},
			},
			&cli.StringFlag{
				Name:    "secret-id",
				Usage:   "Secrets Manager secret holding .env values as a JSON object",
				EnvVars: []string{"AIRFLOW_KIT_SECRET_ID"},
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region for SSM and Secrets Manager",
				EnvVars: []string{"AWS_REGION"},
			},
		},
		Action: setupAction,
	}
}

func setupAction(c *cli.Context) error {
	container, err := di.New(c.Context, loadConfig(c))
	if err != nil {
		return err
	}

	b, err := di.Get[*bootstrap.Bootstrapper](container)
	if err != nil {
		return fmt.Errorf("failed to prepare setup: %w", err)
	}

	_, err = b.Bootstrap(c.Context)
	return err
}
