package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/compose"
	"github.com/savaki/airflow-kit/internal/constants"
	"github.com/savaki/airflow-kit/internal/di"
	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/savaki/airflow-kit/internal/runner"
	"github.com/urfave/cli/v2"
)

// RunCommand returns the run command for forwarding scripts into the worker container
func RunCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a script from scripts/ inside the Airflow worker container",
		ArgsUsage: "<script_name> [args...]",
		Description: `Forward a script into the running Airflow worker with docker compose exec.

If the worker is not running the whole deployment is started and the command
waits until the worker reports ready. Scripts whose name contains "upload"
(but not "large") run attached to a terminal so they can prompt; all others
run without one. Arguments after the script name are passed through verbatim.

Examples:
  airflow-kit run upload_jsonl_to_s3.py
  airflow-kit run transform.py --limit 1000`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Usage:   "Compose service to run the script in",
				Value:   constants.WorkerService,
				EnvVars: []string{"AIRFLOW_KIT_SERVICE"},
			},
			&cli.StringFlag{
				Name:    "compose-file",
				Aliases: []string{"f"},
				Usage:   "Compose file, relative to the project root (default: compose's own lookup)",
				EnvVars: []string{"AIRFLOW_KIT_COMPOSE_FILE"},
			},
			&cli.DurationFlag{
				Name:    "ready-timeout",
				Usage:   "How long to wait for the worker after starting services",
				Value:   compose.DefaultWaitOptions().Timeout,
				EnvVars: []string{"AIRFLOW_KIT_READY_TIMEOUT"},
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print docker commands instead of running them (docker is not contacted)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	script := c.Args().First()
	if script == "" {
		fmt.Fprintf(c.App.Writer, "Usage: %s %s\n", c.Command.HelpName, c.Command.ArgsUsage)
		fmt.Fprintf(c.App.Writer, "\n%s\n", c.Command.Usage)
		return errors.ErrUsage
	}

	container, err := di.New(c.Context, loadConfig(c))
	if err != nil {
		return err
	}

	r, err := di.Get[*runner.Runner](container)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	return r.Run(c.Context, script, c.Args().Tail()...)
}
