// Package image renders, checks and builds the Airflow worker image.
package image

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/constants"
	kiterrors "github.com/savaki/airflow-kit/internal/errors"
	"github.com/savaki/airflow-kit/internal/execx"
)

//go:embed Dockerfile.tmpl
var dockerfileTemplate string

var tmpl = template.Must(template.New("Dockerfile").Parse(dockerfileTemplate))

// Recipe describes the image layered on top of the Airflow base image.
type Recipe struct {
	BaseImage    string
	Packages     []string
	Requirements string
	User         string
}

func DefaultRecipe() Recipe {
	return Recipe{
		BaseImage:    "apache/airflow:2.8.1",
		Packages:     []string{"build-essential", "gcc", "g++", "python3-dev", "libpq-dev"},
		Requirements: "requirements.txt",
		User:         "airflow",
	}
}

func Validate(r Recipe) error {
	switch {
	case strings.TrimSpace(r.BaseImage) == "":
		return fmt.Errorf("base image is required")
	case strings.TrimSpace(r.User) == "":
		return fmt.Errorf("service user is required")
	case r.User == "root" || r.User == "0":
		return fmt.Errorf("python packages must not be installed as root")
	case strings.TrimSpace(r.Requirements) == "":
		return fmt.Errorf("requirements file is required")
	}
	return nil
}

// Render writes the Dockerfile for r.
func Render(w io.Writer, r Recipe) error {
	if err := Validate(r); err != nil {
		return err
	}

	data := struct {
		Recipe
		ScriptsDir string
		DagsDir    string
	}{
		Recipe:     r,
		ScriptsDir: constants.ContainerScriptsDir,
		DagsDir:    constants.ContainerDagsDir,
	}
	return tmpl.Execute(w, data)
}

// Lint parses a Dockerfile and checks that python packages are installed by
// an unprivileged user, that apt caches do not survive the install layer and
// that user-installed packages are on PATH and PYTHONPATH.
func Lint(dockerfile []byte) error {
	result, err := parser.Parse(bytes.NewReader(dockerfile))
	if err != nil {
		return fmt.Errorf("failed to parse Dockerfile: %w", err)
	}

	var (
		errs       []error
		user       = "root"
		env        = map[string]string{}
		sawFrom    bool
		pipInstall bool
	)

	for _, node := range result.AST.Children {
		// the parser keeps the instruction as written
		switch strings.ToLower(node.Value) {
		case "from":
			sawFrom = true
			user = "root"
		case "user":
			if node.Next != nil {
				user = strings.SplitN(node.Next.Value, ":", 2)[0]
			}
		case "env":
			// key, value pairs
			args := nodeArgs(node)
			for i := 0; i+1 < len(args); i += 2 {
				env[args[i]] = args[i+1]
			}
		case "run":
			cmd := joinArgs(node)
			if strings.Contains(cmd, "apt-get install") && !strings.Contains(cmd, "/var/lib/apt/lists") {
				errs = append(errs, fmt.Errorf("line %d: apt-get install without removing /var/lib/apt/lists in the same layer", node.StartLine))
			}
			if strings.Contains(cmd, "pip install") {
				pipInstall = true
				if user == "root" || user == "0" {
					errs = append(errs, fmt.Errorf("line %d: pip install runs as root", node.StartLine))
				}
				if !strings.Contains(cmd, "--no-cache-dir") {
					errs = append(errs, fmt.Errorf("line %d: pip install without --no-cache-dir", node.StartLine))
				}
			}
		}
	}

	if !sawFrom {
		errs = append(errs, fmt.Errorf("missing FROM instruction"))
	}
	if pipInstall {
		if !strings.Contains(env["PATH"], ".local/bin") {
			errs = append(errs, fmt.Errorf("PATH does not include the user site bin directory"))
		}
		if !strings.Contains(env["PYTHONPATH"], constants.ContainerScriptsDir) {
			errs = append(errs, fmt.Errorf("PYTHONPATH does not include %s", constants.ContainerScriptsDir))
		}
	}
	return errors.Join(errs...)
}

func nodeArgs(node *parser.Node) []string {
	var args []string
	for n := node.Next; n != nil; n = n.Next {
		args = append(args, n.Value)
	}
	return args
}

func joinArgs(node *parser.Node) string {
	return strings.Join(nodeArgs(node), " ")
}

// Builder builds the image with the docker CLI.
type Builder struct {
	cmd execx.Commander
}

func NewBuilder(cmd execx.Commander) *Builder {
	return &Builder{cmd: cmd}
}

type BuildInput struct {
	Dir    string
	Tag    string
	Recipe Recipe
	// Render regenerates Dir/Dockerfile even when one exists.
	Render bool
}

// Build writes the Dockerfile when asked or missing, lints it and runs
// docker build. The build tool's exit code is returned as *errors.ExitError.
func (b *Builder) Build(ctx context.Context, input BuildInput) error {
	logger := zerolog.Ctx(ctx)
	path := filepath.Join(input.Dir, "Dockerfile")

	_, statErr := os.Stat(path)
	if input.Render || os.IsNotExist(statErr) {
		var buf bytes.Buffer
		if err := Render(&buf, input.Recipe); err != nil {
			return err
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("Rendered Dockerfile")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Lint(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	logger.Info().Str("tag", input.Tag).Msg("Building image")
	res := b.cmd.Run(ctx, "docker", "build", "-t", input.Tag, "-f", path, input.Dir)
	if !res.OK() {
		code := res.Code
		if code == 0 {
			code = 1
		}
		return &kiterrors.ExitError{Code: code}
	}
	return nil
}
