package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KromaEnergia/api-auth/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SecretGetter é o subconjunto do cliente do Secrets Manager que usamos.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func initSecretsClient(ctx context.Context) (*secretsmanager.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// retrieveCredentials prefere DB_USERNAME/DB_PASSWORD e só consulta o
// Secrets Manager quando eles não estão definidos.
func retrieveCredentials(ctx context.Context, cfg config.Config) (string, string, error) {
	if cfg.DBUsername != "" && cfg.DBPassword != "" {
		return cfg.DBUsername, cfg.DBPassword, nil
	}
	if cfg.DBSecretID == "" {
		return "", "", errors.New("defina DB_USERNAME/DB_PASSWORD ou DB_SECRET_ID")
	}
	client, err := initSecretsClient(ctx)
	if err != nil {
		return "", "", fmt.Errorf("aws config: %w", err)
	}
	creds, err := FetchCredentials(ctx, client, cfg.DBSecretID)
	if err != nil {
		return "", "", err
	}
	return creds.Username, creds.Password, nil
}

// FetchCredentials lê e decodifica o segredo JSON {username, password}.
func FetchCredentials(ctx context.Context, client SecretGetter, secretID string) (Credentials, error) {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("secrets manager: %w", err)
	}
	if result.SecretString == nil {
		return Credentials{}, errors.New("segredo sem SecretString")
	}

	var secret Credentials
	if err := json.Unmarshal([]byte(*result.SecretString), &secret); err != nil {
		return Credentials{}, fmt.Errorf("segredo inválido: %w", err)
	}
	return secret, nil
}
