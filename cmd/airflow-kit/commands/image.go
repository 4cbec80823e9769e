package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/config"
	"github.com/savaki/airflow-kit/internal/di"
	"github.com/savaki/airflow-kit/internal/image"
	"github.com/urfave/cli/v2"
)

func recipeFlags() []cli.Flag {
	defaults := image.DefaultRecipe()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "base-image",
			Usage: "Airflow base image",
			Value: defaults.BaseImage,
		},
		&cli.StringSliceFlag{
			Name:  "package",
			Usage: "OS package to install (can be specified multiple times)",
			Value: cli.NewStringSlice(defaults.Packages...),
		},
		&cli.StringFlag{
			Name:  "requirements",
			Usage: "Pinned Python requirements file, relative to the build context",
			Value: defaults.Requirements,
		},
		&cli.StringFlag{
			Name:  "user",
			Usage: "Unprivileged user that installs Python packages",
			Value: defaults.User,
		},
	}
}

func recipeFromContext(c *cli.Context) image.Recipe {
	return image.Recipe{
		BaseImage:    c.String("base-image"),
		Packages:     c.StringSlice("package"),
		Requirements: c.String("requirements"),
		User:         c.String("user"),
	}
}

// ImageCommand returns the image command for rendering and building the worker image
func ImageCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "image",
		Usage: "Render and build the Airflow worker image",
		Description: `The image extends the Airflow base image with a C toolchain for native
Python dependencies, then installs requirements.txt as the airflow user
without keeping package manager caches.`,
		Subcommands: []*cli.Command{
			{
				Name:  "render",
				Usage: "Write the Dockerfile",
				Flags: append(recipeFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this path instead of stdout",
					},
				),
				Action: renderAction,
			},
			{
				Name:  "build",
				Usage: "Build the image with docker build",
				Flags: append(recipeFlags(),
					&cli.StringFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Image tag",
						Value:   "airflow-kit:latest",
						EnvVars: []string{"AIRFLOW_KIT_IMAGE"},
					},
					&cli.BoolFlag{
						Name:  "render",
						Usage: "Regenerate the Dockerfile even if one exists",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the docker build command instead of running it",
					},
				),
				Action: buildAction,
			},
		},
	}
}

func renderAction(c *cli.Context) error {
	var buf bytes.Buffer
	if err := image.Render(&buf, recipeFromContext(c)); err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		_, err := c.App.Writer.Write(buf.Bytes())
		return err
	}

	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	zerolog.Ctx(c.Context).Info().Str("path", output).Msg("Rendered Dockerfile")
	return nil
}

func buildAction(c *cli.Context) error {
	container, err := di.New(c.Context, loadConfig(c))
	if err != nil {
		return err
	}

	builder, err := di.Get[*image.Builder](container)
	if err != nil {
		return err
	}
	cfg := di.MustGet[config.Config](container)

	return builder.Build(c.Context, image.BuildInput{
		Dir:    cfg.ProjectDir,
		Tag:    c.String("tag"),
		Recipe: recipeFromContext(c),
		Render: c.Bool("render"),
	})
}
