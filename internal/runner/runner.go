// Package runner forwards ad-hoc scripts into the Airflow worker container.
package runner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/compose"
	"github.com/savaki/airflow-kit/internal/constants"
	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/segmentio/ksuid"
)

type Options struct {
	ProjectDir string
	Service    string
	Wait       compose.WaitOptions
	// DryRun skips the readiness poll; the compose client is expected to
	// print rather than execute.
	DryRun bool
}

type Runner struct {
	compose    *compose.Client
	opts       Options
	isTerminal func() bool
}

func New(client *compose.Client, opts Options) *Runner {
	if opts.Service == "" {
		opts.Service = constants.WorkerService
	}
	return &Runner{
		compose:    client,
		opts:       opts,
		isTerminal: stdinIsTerminal,
	}
}

// Run executes scripts/<script> inside the worker service, starting the
// deployment first if the worker is down. A non-zero exit of the script is
// returned as *errors.ExitError.
func (r *Runner) Run(ctx context.Context, script string, args ...string) error {
	if script == "" {
		return errors.ErrUsage
	}

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", ksuid.New().String()).
		Str("script", script).
		Logger()
	ctx = logger.WithContext(ctx)

	hostPath, err := r.resolveScript(script)
	if err != nil {
		return err
	}

	if err := r.compose.RuntimeAvailable(ctx); err != nil {
		return err
	}

	if err := r.checkServiceDefined(); err != nil {
		return err
	}

	if err := r.ensureRunning(ctx); err != nil {
		return err
	}

	tty := Interactive(script)
	if tty && !r.isTerminal() {
		logger.Warn().Msg("Interactive script but stdin is not a terminal, running without a TTY")
		tty = false
	}

	containerPath := path.Join(constants.ContainerScriptsDir, filepath.ToSlash(script))
	command := append([]string{"python", containerPath}, args...)

	logger.Info().
		Str("service", r.opts.Service).
		Str("host_path", hostPath).
		Bool("interactive", tty).
		Msg("Running script")

	res := r.compose.Exec(ctx, r.opts.Service, tty, command...)
	if !res.OK() {
		code := res.Code
		if code == 0 {
			code = 1
		}
		logger.Error().Int("exit_code", code).Msg("Script failed")
		return &errors.ExitError{Code: code}
	}

	logger.Info().Msg("Script completed")
	return nil
}

func (r *Runner) resolveScript(script string) (string, error) {
	scriptsDir := filepath.Join(r.opts.ProjectDir, constants.ScriptsDir)
	hostPath := filepath.Join(scriptsDir, script)

	rel, err := filepath.Rel(scriptsDir, hostPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", errors.ErrScriptNotFound, script, scriptsDir)
	}

	info, err := os.Stat(hostPath)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", errors.ErrScriptNotFound, hostPath)
	}
	return hostPath, nil
}

// checkServiceDefined fails early when the compose file exists but does not
// declare the worker. A missing file is left for compose to report.
func (r *Runner) checkServiceDefined() error {
	file := r.compose.ProjectFile()
	if file == "" {
		return nil
	}

	project, err := compose.LoadProject(file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if !project.HasService(r.opts.Service) {
		return fmt.Errorf("%w: %s (have %s)", errors.ErrServiceNotDefined, r.opts.Service, strings.Join(project.ServiceNames(), ", "))
	}
	return nil
}

func (r *Runner) ensureRunning(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	running, err := r.compose.IsRunning(ctx, r.opts.Service)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	logger.Info().Str("service", r.opts.Service).Msg("Service not running, starting services")
	if err := r.compose.Up(ctx); err != nil {
		return err
	}

	if r.opts.DryRun {
		return nil
	}
	return r.compose.WaitReady(ctx, r.opts.Service, r.opts.Wait)
}
