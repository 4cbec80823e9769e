package image

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/savaki/airflow-kit/internal/errors"
	"github.com/savaki/airflow-kit/internal/execx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, r Recipe) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))
	return buf.String()
}

func TestRender(t *testing.T) {
	out := render(t, DefaultRecipe())

	assert.True(t, strings.HasPrefix(out, "FROM apache/airflow:2.8.1\n"))
	assert.Contains(t, out, "        build-essential \\\n")
	assert.Contains(t, out, "        libpq-dev \\\n    && apt-get clean")
	assert.Contains(t, out, `ENV PATH="/home/airflow/.local/bin:${PATH}"`)
	assert.Contains(t, out, `ENV PYTHONPATH="/opt/airflow/scripts:/opt/airflow/dags:${PYTHONPATH}"`)

	user := strings.Index(out, "USER airflow")
	pip := strings.Index(out, "pip install")
	require.NotEqual(t, -1, user)
	assert.Less(t, user, pip)

	assert.NoError(t, Lint([]byte(out)))
}

func TestRender_Invalid(t *testing.T) {
	tests := map[string]func(*Recipe){
		"no base":         func(r *Recipe) { r.BaseImage = "" },
		"no user":         func(r *Recipe) { r.User = " " },
		"root user":       func(r *Recipe) { r.User = "root" },
		"no requirements": func(r *Recipe) { r.Requirements = "" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := DefaultRecipe()
			mutate(&r)
			assert.Error(t, Render(&bytes.Buffer{}, r))
		})
	}
}

func TestLint(t *testing.T) {
	tests := []struct {
		name       string
		dockerfile string
		want       string
	}{
		{
			name: "pip as root",
			dockerfile: `FROM apache/airflow:2.8.1
USER root
RUN pip install --no-cache-dir -r requirements.txt
ENV PATH="/home/airflow/.local/bin:${PATH}"
ENV PYTHONPATH="/opt/airflow/scripts"
`,
			want: "pip install runs as root",
		},
		{
			name: "apt cache kept",
			dockerfile: `FROM apache/airflow:2.8.1
USER root
RUN apt-get update && apt-get install -y gcc
`,
			want: "/var/lib/apt/lists",
		},
		{
			name: "pip cache kept",
			dockerfile: `FROM apache/airflow:2.8.1
USER airflow
RUN pip install --user -r requirements.txt
ENV PATH=/home/airflow/.local/bin:$PATH PYTHONPATH=/opt/airflow/scripts
`,
			want: "--no-cache-dir",
		},
		{
			name: "path not extended",
			dockerfile: `FROM apache/airflow:2.8.1
USER airflow
RUN pip install --user --no-cache-dir -r requirements.txt
ENV PYTHONPATH=/opt/airflow/scripts
`,
			want: "PATH does not include",
		},
		{
			name: "pythonpath missing",
			dockerfile: `FROM apache/airflow:2.8.1
USER airflow:root
RUN pip install --user --no-cache-dir -r requirements.txt
ENV PATH=/home/airflow/.local/bin:$PATH
`,
			want: "PYTHONPATH does not include",
		},
		{
			name: "lowercase instructions",
			dockerfile: `from apache/airflow:2.8.1
user root
run pip install --no-cache-dir -r requirements.txt
env PATH=/home/airflow/.local/bin:$PATH PYTHONPATH=/opt/airflow/scripts
`,
			want: "pip install runs as root",
		},
		{
			name: "root in later stage",
			dockerfile: `FROM python:3.11 AS wheels
USER nobody
RUN echo build

FROM apache/airflow:2.8.1
RUN pip install --no-cache-dir -r requirements.txt
ENV PATH=/home/airflow/.local/bin:$PATH PYTHONPATH=/opt/airflow/scripts
`,
			want: "line 6: pip install runs as root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Lint([]byte(tt.dockerfile))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLint_NoPip(t *testing.T) {
	assert.NoError(t, Lint([]byte("FROM apache/airflow:2.8.1\n")))
	assert.NoError(t, Lint([]byte("from apache/airflow:2.8.1\n")))

	err := Lint([]byte("RUN echo hi\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing FROM")
}

func TestLint_Clean(t *testing.T) {
	dockerfile := `from apache/airflow:2.8.1
user root
run apt-get update && apt-get install -y gcc && rm -rf /var/lib/apt/lists/*
user airflow
run pip install --user --no-cache-dir -r requirements.txt
env PATH=/home/airflow/.local/bin:$PATH PYTHONPATH=/opt/airflow/scripts
`
	assert.NoError(t, Lint([]byte(dockerfile)))
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fake := execx.NewFake()
	b := NewBuilder(fake)

	err := b.Build(ctx, BuildInput{Dir: dir, Tag: "airflow-kit:latest", Recipe: DefaultRecipe()})
	require.NoError(t, err)

	path := filepath.Join(dir, "Dockerfile")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FROM apache/airflow:2.8.1")
	assert.Equal(t, []string{"docker build -t airflow-kit:latest -f " + path + " " + dir}, fake.Calls())
}

func TestBuild_KeepsExistingDockerfile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "Dockerfile")

	custom := render(t, Recipe{BaseImage: "apache/airflow:2.9.0", Packages: []string{"gcc"}, Requirements: "requirements.txt", User: "airflow"})
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	require.NoError(t, NewBuilder(execx.NewFake()).Build(ctx, BuildInput{Dir: dir, Tag: "t", Recipe: DefaultRecipe()}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))

	require.NoError(t, NewBuilder(execx.NewFake()).Build(ctx, BuildInput{Dir: dir, Tag: "t", Recipe: DefaultRecipe(), Render: true}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "apache/airflow:2.8.1")
}

func TestBuild_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("lint", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM x\nRUN pip install --no-cache-dir y\n"), 0o644))

		fake := execx.NewFake()
		err := NewBuilder(fake).Build(ctx, BuildInput{Dir: dir, Tag: "t", Recipe: DefaultRecipe()})
		assert.Error(t, err)
		assert.Empty(t, fake.Calls())
	})

	t.Run("docker build", func(t *testing.T) {
		fake := execx.NewFake().On("docker build", execx.Response{Code: 2})
		err := NewBuilder(fake).Build(ctx, BuildInput{Dir: t.TempDir(), Tag: "t", Recipe: DefaultRecipe()})
		assert.Equal(t, 2, errors.ExitCode(err))
	})
}

func TestCheckedInDockerfile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "Dockerfile"))
	require.NoError(t, err)

	assert.Equal(t, render(t, DefaultRecipe()), string(data), "run: airflow-kit image render -o Dockerfile")
	assert.NoError(t, Lint(data))
}
