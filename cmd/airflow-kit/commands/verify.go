package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/envcheck"
	"github.com/savaki/airflow-kit/internal/services"
	"github.com/urfave/cli/v2"
)

// VerifyCommand returns the verify command for checking .env settings
func VerifyCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check that .env has real values for every required setting",
		Description: `Report settings that are missing, empty or still set to the placeholder
written by setup.

Groups: airflow, aws, reddit, redshift. With --check-aws the AWS credentials
are also sent to STS GetCallerIdentity to confirm they are accepted.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Only check these groups (can be specified multiple times)",
			},
			&cli.BoolFlag{
				Name:  "check-aws",
				Usage: "Validate AWS credentials against STS",
			},
		},
		Action: verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)
	w := c.App.Writer

	groups, err := envcheck.Lookup(c.StringSlice("group")...)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c).Normalize()
	if err != nil {
		return err
	}

	env, err := envcheck.Load(cfg.EnvPath())
	if err != nil {
		return err
	}

	report := envcheck.Check(env, groups...)
	for _, group := range report.Groups {
		if report.Failed(group) {
			fmt.Fprintf(w, "✗ %s\n", group)
			continue
		}
		fmt.Fprintf(w, "✓ %s\n", group)
	}
	for _, problem := range report.Problems {
		fmt.Fprintf(w, "  %s\n", problem)
	}

	if c.Bool("check-aws") {
		if report.Failed("aws") {
			fmt.Fprintln(w, "\nSkipping AWS credential check until the aws settings are filled in")
		} else {
			identity, err := checkAWS(c, env)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n✓ AWS credentials accepted\n")
			fmt.Fprintf(w, "  Account: %s\n", identity.Account)
			fmt.Fprintf(w, "  ARN: %s\n", identity.ARN)
		}
	}

	if !report.OK() {
		logger.Debug().Int("problems", len(report.Problems)).Msg("Verification failed")
		return fmt.Errorf("%d setting(s) in %s need attention", len(report.Problems), cfg.EnvPath())
	}
	return nil
}

func checkAWS(c *cli.Context, env map[string]string) (*services.Identity, error) {
	svc, err := services.NewIdentityService(c.Context,
		env["AWS_ACCESS_KEY_ID"],
		env["AWS_SECRET_ACCESS_KEY"],
		env["AWS_DEFAULT_REGION"],
	)
	if err != nil {
		return nil, err
	}
	return svc.CallerIdentity(c.Context)
}
