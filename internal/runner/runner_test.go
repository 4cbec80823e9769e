package runner

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/savaki/airflow-kit/internal/compose"
	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/savaki/airflow-kit/internal/execx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const composeYAML = `services:
  postgres:
    image: postgres:13
  airflow-worker:
    image: airflow-kit:latest
    command: celery worker
`

type fixture struct {
	dir    string
	fake   *execx.Fake
	runner *Runner
	prefix string
}

func setup(t *testing.T, scripts ...string) fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	for _, script := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", script), []byte("print('hi')\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yaml"), []byte(composeYAML), 0o644))

	fake := execx.NewFake()
	client := compose.New(fake, dir, "docker-compose.yaml")
	r := New(client, Options{
		ProjectDir: dir,
		Wait: compose.WaitOptions{
			Timeout:         100 * time.Millisecond,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	})
	r.isTerminal = func() bool { return true }

	return fixture{
		dir:    dir,
		fake:   fake,
		runner: r,
		prefix: "docker compose --project-directory " + dir + " -f " + filepath.Join(dir, "docker-compose.yaml"),
	}
}

func (f fixture) workerRunning() {
	f.fake.On(f.prefix+" ps --services --status running", execx.Response{Output: "postgres\nairflow-worker\n"})
}

func TestRun_Usage(t *testing.T) {
	f := setup(t)

	err := f.runner.Run(context.Background(), "")
	assert.True(t, stderrors.Is(err, errors.ErrUsage))
	assert.Empty(t, f.fake.Calls())
}

func TestRun_ScriptNotFound(t *testing.T) {
	f := setup(t, "transform.py")

	for _, script := range []string{"missing.py", "../docker-compose.yaml", "."} {
		t.Run(script, func(t *testing.T) {
			err := f.runner.Run(context.Background(), script)
			assert.True(t, stderrors.Is(err, errors.ErrScriptNotFound), "got %v", err)
			assert.Contains(t, err.Error(), "not found")
		})
	}
	assert.Empty(t, f.fake.Calls())
}

func TestRun_RuntimeUnavailable(t *testing.T) {
	f := setup(t, "transform.py")
	f.fake.On("docker info", execx.Response{Code: 1})

	err := f.runner.Run(context.Background(), "transform.py")
	assert.True(t, stderrors.Is(err, errors.ErrRuntimeUnavailable))
	assert.Equal(t, []string{"docker info"}, f.fake.Calls())
}

func TestRun_ServiceNotDefined(t *testing.T) {
	f := setup(t, "transform.py")
	f.runner.opts.Service = "airflow-triggerer"

	err := f.runner.Run(context.Background(), "transform.py")
	assert.True(t, stderrors.Is(err, errors.ErrServiceNotDefined))
	assert.Contains(t, err.Error(), "airflow-worker")
}

func TestRun_Dispatch(t *testing.T) {
	tests := []struct {
		script string
		args   []string
		want   string
	}{
		{
			script: "upload_jsonl_to_s3.py",
			args:   []string{"--file", "data/x.jsonl"},
			want:   " exec airflow-worker python /opt/airflow/scripts/upload_jsonl_to_s3.py --file data/x.jsonl",
		},
		{
			script: "upload_large_jsonl.py",
			want:   " exec -T airflow-worker python /opt/airflow/scripts/upload_large_jsonl.py",
		},
		{
			script: "transform.py",
			args:   []string{"a b", "--dry"},
			want:   " exec -T airflow-worker python /opt/airflow/scripts/transform.py a b --dry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			f := setup(t, tt.script)
			f.workerRunning()

			err := f.runner.Run(context.Background(), tt.script, tt.args...)
			require.NoError(t, err)

			calls := f.fake.Calls()
			require.NotEmpty(t, calls)
			assert.Equal(t, f.prefix+tt.want, calls[len(calls)-1])
			for _, call := range calls {
				assert.NotContains(t, call, " up -d")
			}
		})
	}
}

func TestRun_InteractiveWithoutTerminal(t *testing.T) {
	f := setup(t, "upload_jsonl_to_s3.py")
	f.workerRunning()
	f.runner.isTerminal = func() bool { return false }

	require.NoError(t, f.runner.Run(context.Background(), "upload_jsonl_to_s3.py"))

	calls := f.fake.Calls()
	assert.Equal(t, f.prefix+" exec -T airflow-worker python /opt/airflow/scripts/upload_jsonl_to_s3.py", calls[len(calls)-1])
}

func TestRun_StartsServices(t *testing.T) {
	f := setup(t, "transform.py")
	f.fake.On(f.prefix+" ps --services --status running", execx.Response{Output: "postgres\n"})
	f.fake.On(f.prefix+" ps --all --format json airflow-worker",
		execx.Response{Output: `{"Service":"airflow-worker","State":"created"}`},
		execx.Response{Output: `{"Service":"airflow-worker","State":"running"}`},
	)

	require.NoError(t, f.runner.Run(context.Background(), "transform.py"))

	assert.Equal(t, []string{
		"docker info",
		f.prefix + " ps --services --status running",
		f.prefix + " up -d",
		f.prefix + " ps --all --format json airflow-worker",
		f.prefix + " ps --all --format json airflow-worker",
		f.prefix + " exec -T airflow-worker python /opt/airflow/scripts/transform.py",
	}, f.fake.Calls())
}

func TestRun_ServiceNeverReady(t *testing.T) {
	f := setup(t, "transform.py")
	f.fake.On(f.prefix+" ps --services --status running", execx.Response{Output: ""})
	f.fake.On(f.prefix+" ps --all --format json airflow-worker",
		execx.Response{Output: `{"Service":"airflow-worker","State":"restarting"}`},
	)

	err := f.runner.Run(context.Background(), "transform.py")
	assert.True(t, stderrors.Is(err, errors.ErrServiceNotReady))
	for _, call := range f.fake.Calls() {
		assert.NotContains(t, call, " exec ")
	}
}

func TestRun_DryRunSkipsWait(t *testing.T) {
	f := setup(t, "transform.py")
	f.runner.opts.DryRun = true
	f.fake.On(f.prefix+" ps --services --status running", execx.Response{Output: ""})

	require.NoError(t, f.runner.Run(context.Background(), "transform.py"))
	for _, call := range f.fake.Calls() {
		assert.NotContains(t, call, "--format json")
	}
}

func TestRun_ForwardsExitCode(t *testing.T) {
	f := setup(t, "transform.py")
	f.workerRunning()
	f.fake.On(f.prefix+" exec", execx.Response{Code: 7})

	err := f.runner.Run(context.Background(), "transform.py")
	assert.Equal(t, 7, errors.ExitCode(err))
}

func TestRun_DiscoversComposeFile(t *testing.T) {
	f := setup(t, "transform.py")
	require.NoError(t, os.Rename(filepath.Join(f.dir, "docker-compose.yaml"), filepath.Join(f.dir, "docker-compose.yml")))
	f.runner.compose = compose.New(f.fake, f.dir, "")
	f.runner.opts.Service = "scheduler"

	err := f.runner.Run(context.Background(), "transform.py")
	assert.True(t, stderrors.Is(err, errors.ErrServiceNotDefined))

	f.runner.opts.Service = "airflow-worker"
	prefix := "docker compose --project-directory " + f.dir
	f.fake.On(prefix+" ps --services --status running", execx.Response{Output: "airflow-worker\n"})

	require.NoError(t, f.runner.Run(context.Background(), "transform.py"))
	calls := f.fake.Calls()
	assert.Equal(t, prefix+" exec -T airflow-worker python /opt/airflow/scripts/transform.py", calls[len(calls)-1])
}

func TestRun_NoComposeFile(t *testing.T) {
	f := setup(t, "transform.py")
	require.NoError(t, os.Remove(filepath.Join(f.dir, "docker-compose.yaml")))
	f.workerRunning()

	assert.NoError(t, f.runner.Run(context.Background(), "transform.py"))
}
