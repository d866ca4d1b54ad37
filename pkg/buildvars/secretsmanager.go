package buildvars

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsAPI is the subset of the Secrets Manager client used here.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads build variables from a JSON object stored in an AWS
// Secrets Manager secret, e.g. {"API_URL": "https://api.example.com"}.
type SecretsManager struct {
	secretID string
	client   secretsAPI
}

// NewSecretsManager creates a source for secretID using the AWS SDK default
// credential chain in region.
func NewSecretsManager(ctx context.Context, region, secretID string) (*SecretsManager, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SecretsManager{secretID: secretID, client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (s *SecretsManager) Name() string { return "secrets manager " + s.secretID }

func (s *SecretsManager) Load(ctx context.Context) (map[string]string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve secret %s: %w", s.secretID, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", s.secretID)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(*result.SecretString), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			vars[k] = v
		case nil:
			vars[k] = ""
		default:
			vars[k] = fmt.Sprint(v)
		}
	}
	return vars, nil
}
