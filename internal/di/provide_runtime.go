package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"github.com/savaki/airflow-kit/internal/bootstrap"
	"github.com/savaki/airflow-kit/internal/compose"
	"github.com/savaki/airflow-kit/internal/config"
	"github.com/savaki/airflow-kit/internal/execx"
	"github.com/savaki/airflow-kit/internal/image"
	"github.com/savaki/airflow-kit/internal/runner"
	"github.com/savaki/airflow-kit/internal/services"
)

func ProvideCommander(cfg config.Config) execx.Commander {
	return execx.New(cfg.Trace, cfg.DryRun)
}

func ProvideComposeClient(cmd execx.Commander, cfg config.Config) *compose.Client {
	return compose.New(cmd, cfg.ProjectDir, cfg.ComposeFile)
}

func ProvideRunner(client *compose.Client, cfg config.Config) *runner.Runner {
	wait := compose.DefaultWaitOptions()
	wait.Timeout = cfg.ReadyTimeout

	return runner.New(client, runner.Options{
		ProjectDir: cfg.ProjectDir,
		Service:    cfg.Service,
		Wait:       wait,
		DryRun:     cfg.DryRun,
	})
}

// ProvideValueSource returns the loader for .env seed values from the
// sources enabled in cfg. Later sources win. Nothing is fetched, and no AWS
// config is loaded, until the bootstrapper asks for the values.
func ProvideValueSource(cfg config.Config) bootstrap.ValueSource {
	if !cfg.FromEnv && cfg.SSMPath == "" && cfg.SecretID == "" {
		return nil
	}

	return func(ctx context.Context) (map[string]string, error) {
		logger := zerolog.Ctx(ctx)
		keys := bootstrap.EnvKeys()

		var stores []services.ParameterStore
		if cfg.FromEnv {
			stores = append(stores, services.NewEnvParameterStore())
		}
		if cfg.SSMPath != "" || cfg.SecretID != "" {
			awsConfig, err := ProvideAWSConfig(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			if cfg.SSMPath != "" {
				stores = append(stores, services.NewSSMParameterStore(ssm.NewFromConfig(awsConfig), cfg.SSMPath))
			}
			if cfg.SecretID != "" {
				stores = append(stores, services.NewSecretStore(services.NewSecretsManagerService(awsConfig), cfg.SecretID))
			}
		}

		values := map[string]string{}
		for _, store := range stores {
			found, err := store.GetValues(ctx, keys)
			if err != nil {
				return nil, err
			}
			for k, v := range found {
				values[k] = v
			}
		}

		logger.Info().
			Int("sources", len(stores)).
			Int("keys", len(values)).
			Msg("Loaded .env values")
		return values, nil
	}
}

func ProvideBootstrapper(cmd execx.Commander, cfg config.Config, values bootstrap.ValueSource) *bootstrap.Bootstrapper {
	return bootstrap.New(cmd, bootstrap.Options{
		ProjectDir: cfg.ProjectDir,
		EnvFile:    cfg.EnvFile,
		Values:     values,
	})
}

func ProvideImageBuilder(cmd execx.Commander) *image.Builder {
	return image.NewBuilder(cmd)
}
