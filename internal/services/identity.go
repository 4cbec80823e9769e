package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the principal behind a set of AWS credentials.
type Identity struct {
	Account string
	ARN     string
	UserID  string
}

type IdentityService struct {
	client stsAPI
}

// NewIdentityService checks the static credentials found in a .env file
// rather than whatever the default provider chain would pick up.
func NewIdentityService(ctx context.Context, accessKeyID, secretAccessKey, region string) (*IdentityService, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &IdentityService{
		client: sts.NewFromConfig(cfg),
	}, nil
}

// CallerIdentity asks STS who the credentials belong to.
func (s *IdentityService) CallerIdentity(ctx context.Context) (*Identity, error) {
	out, err := s.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %s", describeAPIError(err))
	}

	return &Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// describeAPIError reduces AWS API errors to "Code: message" so operators see
// why a request was rejected without the SDK's operation wrapping.
func describeAPIError(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
