package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerService struct {
	client secretsAPI
}

func NewSecretsManagerService(cfg aws.Config) *SecretsManagerService {
	return &SecretsManagerService{
		client: secretsmanager.NewFromConfig(cfg),
	}
}

// GetSecret retrieves a secret value by path from AWS Secrets Manager
func (s *SecretsManagerService) GetSecret(ctx context.Context, secretPath string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %s", secretPath, describeAPIError(err))
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretPath)
	}

	return *result.SecretString, nil
}

// GetEnvValues retrieves a secret holding a flat JSON object and returns it as
// .env key/value pairs. Numbers and booleans are rendered as their JSON text.
func (s *SecretsManagerService) GetEnvValues(ctx context.Context, secretPath string) (map[string]string, error) {
	raw, err := s.GetSecret(ctx, secretPath)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", secretPath, err)
	}

	values := make(map[string]string, len(fields))
	for key, field := range fields {
		var str string
		if err := json.Unmarshal(field, &str); err == nil {
			values[key] = str
			continue
		}
		if bytes.HasPrefix(bytes.TrimSpace(field), []byte("{")) || bytes.HasPrefix(bytes.TrimSpace(field), []byte("[")) {
			return nil, fmt.Errorf("secret %s: field %s must be a scalar", secretPath, key)
		}
		values[key] = string(bytes.TrimSpace(field))
	}
	return values, nil
}

// SecretStore adapts a single JSON secret to ParameterStore.
type SecretStore struct {
	service  *SecretsManagerService
	secretID string
}

func NewSecretStore(service *SecretsManagerService, secretID string) *SecretStore {
	return &SecretStore{service: service, secretID: secretID}
}

func (s *SecretStore) GetValues(ctx context.Context, keys []string) (map[string]string, error) {
	values, err := s.service.GetEnvValues(ctx, s.secretID)
	if err != nil {
		return nil, err
	}
	return pick(values, keys), nil
}
