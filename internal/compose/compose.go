// Package compose drives the docker compose CLI for the Airflow deployment.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/constants"
	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/savaki/airflow-kit/internal/execx"
)

const docker = "docker"

// Client runs docker compose commands against one project.
type Client struct {
	cmd        execx.Commander
	projectDir string
	file       string
}

// New returns a Client for the compose project rooted at projectDir. A
// relative file is resolved against projectDir; an empty file lets compose
// pick its default.
func New(cmd execx.Commander, projectDir, file string) *Client {
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(projectDir, file)
	}
	return &Client{
		cmd:        cmd,
		projectDir: projectDir,
		file:       file,
	}
}

// File returns the compose file path, if one was configured.
func (c *Client) File() string {
	return c.file
}

// ProjectFile returns the configured compose file or, when none was given,
// the first file compose itself would pick up. It is empty when neither
// exists.
func (c *Client) ProjectFile() string {
	if c.file != "" {
		return c.file
	}
	for _, name := range constants.ComposeFiles {
		path := filepath.Join(c.projectDir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

func (c *Client) args(sub ...string) []string {
	args := []string{"compose", "--project-directory", c.projectDir}
	if c.file != "" {
		args = append(args, "-f", c.file)
	}
	return append(args, sub...)
}

// RuntimeAvailable checks that the docker daemon answers.
func (c *Client) RuntimeAvailable(ctx context.Context) error {
	if _, res := c.cmd.Capture(ctx, docker, "info"); !res.OK() {
		return fmt.Errorf("%w: %v", errors.ErrRuntimeUnavailable, res.Err)
	}
	return nil
}

// RunningServices lists services with at least one running container.
func (c *Client) RunningServices(ctx context.Context) ([]string, error) {
	out, res := c.cmd.Capture(ctx, docker, c.args("ps", "--services", "--status", "running")...)
	if !res.OK() {
		return nil, fmt.Errorf("failed to list running services: %w", res.Err)
	}

	var services []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			services = append(services, line)
		}
	}
	return services, nil
}

// IsRunning reports whether service has a running container.
func (c *Client) IsRunning(ctx context.Context, service string) (bool, error) {
	services, err := c.RunningServices(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range services {
		if s == service {
			return true, nil
		}
	}
	return false, nil
}

// Up starts the whole service topology in the background.
func (c *Client) Up(ctx context.Context) error {
	if res := c.cmd.Run(ctx, docker, c.args("up", "-d")...); !res.OK() {
		return fmt.Errorf("docker compose up failed (exit %d): %w", res.Code, res.Err)
	}
	return nil
}

// ContainerState is one entry of `docker compose ps --format json`.
type ContainerState struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health"`
}

// Ready reports whether the container is running and, when it declares a
// health check, healthy.
func (s ContainerState) Ready() bool {
	return s.State == "running" && (s.Health == "" || s.Health == "healthy")
}

func (s ContainerState) String() string {
	if s.Health == "" {
		return s.State
	}
	return s.State + " (" + s.Health + ")"
}

// ServiceStates returns the containers of service.
func (c *Client) ServiceStates(ctx context.Context, service string) ([]ContainerState, error) {
	out, res := c.cmd.Capture(ctx, docker, c.args("ps", "--all", "--format", "json", service)...)
	if !res.OK() {
		return nil, fmt.Errorf("failed to inspect service %s: %w", service, res.Err)
	}
	return parseStates(out)
}

// parseStates accepts both output shapes of `ps --format json`: a single JSON
// array from older compose releases and one object per line from newer ones.
func parseStates(out string) ([]ContainerState, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	var states []ContainerState
	if strings.HasPrefix(out, "[") {
		if err := json.Unmarshal([]byte(out), &states); err != nil {
			return nil, fmt.Errorf("failed to parse compose ps output: %w", err)
		}
		return states, nil
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var state ContainerState
		if err := json.Unmarshal([]byte(line), &state); err != nil {
			return nil, fmt.Errorf("failed to parse compose ps output: %w", err)
		}
		states = append(states, state)
	}
	return states, nil
}

// WaitOptions bounds the readiness poll.
type WaitOptions struct {
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultWaitOptions polls for up to a minute; intervals grow to the 5s the
// deployment used to sleep unconditionally.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:         time.Minute,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// WaitReady polls service until one of its containers is ready.
func (c *Client) WaitReady(ctx context.Context, service string, opts WaitOptions) error {
	logger := zerolog.Ctx(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialInterval
	b.MaxInterval = opts.MaxInterval
	b.MaxElapsedTime = opts.Timeout
	b.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		states, err := c.ServiceStates(ctx, service)
		if err != nil {
			return err
		}
		for _, state := range states {
			if state.Ready() {
				logger.Info().
					Str("service", service).
					Int("attempts", attempt).
					Msg("Service is ready")
				return nil
			}
		}

		status := "no container"
		if len(states) > 0 {
			status = states[0].String()
		}
		logger.Debug().
			Str("service", service).
			Str("status", status).
			Msg("Waiting for service")
		return fmt.Errorf("%s is %s", service, status)
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("%w: %s after %v: %v", errors.ErrServiceNotReady, service, opts.Timeout, err)
	}
	return nil
}

// Exec runs command inside service. Without tty the -T flag disables
// pseudo-terminal allocation.
func (c *Client) Exec(ctx context.Context, service string, tty bool, command ...string) execx.Result {
	sub := []string{"exec"}
	if !tty {
		sub = append(sub, "-T")
	}
	sub = append(sub, service)
	sub = append(sub, command...)
	return c.cmd.Run(ctx, docker, c.args(sub...)...)
}
