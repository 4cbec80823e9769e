// Package bootstrap prepares a host for the Airflow deployment: it checks for
// Docker and Compose, creates the project directories and writes the .env
// settings file. Running it again never overwrites operator edits.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/constants"
	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/savaki/airflow-kit/internal/execx"
)

// ValueSource supplies values that replace template placeholders. It is only
// called when a new .env file is about to be written.
type ValueSource func(ctx context.Context) (map[string]string, error)

// StaticValues returns a ValueSource for fixed values.
func StaticValues(values map[string]string) ValueSource {
	return func(context.Context) (map[string]string, error) {
		return values, nil
	}
}

type Options struct {
	ProjectDir string
	EnvFile    string
	Values     ValueSource
	Stdout     io.Writer
}

type Result struct {
	EnvFile     string
	UID         string
	Created     bool
	UIDAppended bool
	CreatedDirs []string
}

type Bootstrapper struct {
	cmd    execx.Commander
	opts   Options
	getenv func(string) string
	getuid func() int
}

func New(cmd execx.Commander, opts Options) *Bootstrapper {
	if opts.EnvFile == "" {
		opts.EnvFile = constants.EnvFile
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Bootstrapper{
		cmd:    cmd,
		opts:   opts,
		getenv: os.Getenv,
		getuid: os.Getuid,
	}
}

// Bootstrap performs setup. Tool checks run first so nothing is written on
// a host that cannot run the deployment.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if err := b.checkTools(ctx); err != nil {
		return nil, err
	}

	uid, err := b.detectUID()
	if err != nil {
		return nil, err
	}
	result := &Result{
		EnvFile: b.envPath(),
		UID:     uid,
	}

	values, err := b.seedValues(ctx, result.EnvFile)
	if err != nil {
		return nil, err
	}

	for _, dir := range constants.ProjectDirs {
		path := filepath.Join(b.opts.ProjectDir, dir)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", path, err)
		}
		result.CreatedDirs = append(result.CreatedDirs, dir)
	}
	logger.Info().Strs("dirs", result.CreatedDirs).Msg("Project directories ready")

	created, err := b.writeEnv(result.EnvFile, result.UID, values)
	if err != nil {
		return nil, err
	}
	result.Created = created

	if !created {
		appended, err := b.ensureUID(result.EnvFile, result.UID)
		if err != nil {
			return nil, err
		}
		result.UIDAppended = appended
	}

	logger.Info().
		Str("env_file", result.EnvFile).
		Str("airflow_uid", result.UID).
		Bool("created", result.Created).
		Bool("uid_appended", result.UIDAppended).
		Msg("Settings file ready")

	b.printInstructions(result)
	return result, nil
}

func (b *Bootstrapper) checkTools(ctx context.Context) error {
	if _, err := b.cmd.LookPath("docker"); err != nil {
		return fmt.Errorf("%w: docker. Install Docker from https://docs.docker.com/get-docker/", errors.ErrToolMissing)
	}

	if _, res := b.cmd.Capture(ctx, "docker", "compose", "version"); res.OK() {
		return nil
	}
	if _, err := b.cmd.LookPath("docker-compose"); err == nil {
		return nil
	}
	return fmt.Errorf("%w: docker compose. Install Docker Compose from https://docs.docker.com/compose/install/", errors.ErrToolMissing)
}

func (b *Bootstrapper) envPath() string {
	if filepath.IsAbs(b.opts.EnvFile) {
		return b.opts.EnvFile
	}
	return filepath.Join(b.opts.ProjectDir, b.opts.EnvFile)
}

func (b *Bootstrapper) detectUID() (string, error) {
	if uid := b.getenv("AIRFLOW_UID"); uid != "" {
		if n, err := strconv.Atoi(uid); err != nil || n < 0 {
			return "", fmt.Errorf("AIRFLOW_UID must be a non-negative number, got %q", uid)
		}
		return uid, nil
	}
	if uid := b.getuid(); uid >= 0 {
		return strconv.Itoa(uid), nil
	}
	return constants.DefaultAirflowUID, nil
}

// seedValues loads the configured values, but only when path does not exist
// yet since an existing file is never rewritten.
func (b *Bootstrapper) seedValues(ctx context.Context, path string) (map[string]string, error) {
	if b.opts.Values == nil {
		return nil, nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	values, err := b.opts.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load .env values: %w", err)
	}
	return values, nil
}

// writeEnv creates path from the template. It reports false without touching
// the file when path already exists. A partially written file is removed.
func (b *Bootstrapper) writeEnv(path, uid string, seed map[string]string) (bool, error) {
	values := map[string]string{}
	for key, value := range seed {
		if knownKey(key) {
			values[key] = value
		}
	}
	values["AIRFLOW_UID"] = uid
	if _, ok := values["AIRFLOW_PROJ_DIR"]; !ok {
		values["AIRFLOW_PROJ_DIR"] = "."
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}

	err = renderEnv(f, values)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// ensureUID appends AIRFLOW_UID to an existing file that lacks it.
func (b *Bootstrapper) ensureUID(path, uid string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	env, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if _, ok := env["AIRFLOW_UID"]; ok {
		return false, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	line := "AIRFLOW_UID=" + uid + "\n"
	if len(data) > 0 && data[len(data)-1] != '\n' {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return true, f.Close()
}

func (b *Bootstrapper) printInstructions(result *Result) {
	w := b.opts.Stdout
	fmt.Fprintln(w)
	if result.Created {
		fmt.Fprintf(w, "✓ Created %s\n", result.EnvFile)
	} else {
		fmt.Fprintf(w, "✓ Kept existing %s\n", result.EnvFile)
	}
	fmt.Fprintln(w, instructions)
}

const instructions = `
Next steps:
  1. Edit .env and replace every placeholder with your AWS and Reddit credentials
  2. Check the settings:       airflow-kit verify --check-aws
  3. Build the image:          airflow-kit image build
  4. Initialize Airflow:       docker compose up airflow-init
  5. Start the services:       docker compose up -d
  6. Open the web UI:          http://localhost:8080
  7. Run a script:             airflow-kit run <script_name> [args...]`
