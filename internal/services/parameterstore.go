package services

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterStore defines the interface for reading .env values from an
// external source
type ParameterStore interface {
	// GetValues returns the values found for keys. Keys without a value are
	// omitted. An empty keys slice returns everything the store holds.
	GetValues(ctx context.Context, keys []string) (map[string]string, error)
}

type ssmAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store.
// Parameters live under a path prefix and are named after the .env key in
// lower kebab case, e.g. /airflow/dev/aws-access-key-id.
type SSMParameterStore struct {
	client ssmAPI
	path   string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, prefix string) *SSMParameterStore {
	return newSSMParameterStore(client, prefix)
}

func newSSMParameterStore(client ssmAPI, prefix string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		path:   "/" + strings.Trim(prefix, "/"),
	}
}

// ParameterKey maps a parameter name to its .env key.
func ParameterKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(path.Base(name), "-", "_"))
}

func (s *SSMParameterStore) load(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	if s.cache != nil {
		defer s.mu.RUnlock()
		return s.cache, nil
	}
	s.mu.RUnlock()

	params := make(map[string]string)
	var nextToken *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(s.path),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %s", s.path, describeAPIError(err))
		}

		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[ParameterKey(*param.Name)] = *param.Value
			}
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		nextToken = result.NextToken
	}

	s.mu.Lock()
	s.cache = params
	s.mu.Unlock()

	return params, nil
}

// GetValues retrieves every parameter under the path in one paginated sweep
func (s *SSMParameterStore) GetValues(ctx context.Context, keys []string) (map[string]string, error) {
	params, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return pick(params, keys), nil
}

// EnvParameterStore implements ParameterStore using environment variables.
// It lets CI pipelines that already export credentials seed a new .env.
type EnvParameterStore struct {
	lookup func(string) (string, bool)
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore() *EnvParameterStore {
	return &EnvParameterStore{lookup: os.LookupEnv}
}

// GetValues reads keys from the environment. Without keys it returns nothing
// since the process environment is not a namespace of its own.
func (e *EnvParameterStore) GetValues(_ context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string)
	for _, key := range keys {
		if value, ok := e.lookup(key); ok && value != "" {
			values[key] = value
		}
	}
	return values, nil
}

func pick(params map[string]string, keys []string) map[string]string {
	values := make(map[string]string)
	if len(keys) == 0 {
		for k, v := range params {
			values[k] = v
		}
		return values
	}
	for _, key := range keys {
		if value, ok := params[key]; ok {
			values[key] = value
		}
	}
	return values
}
