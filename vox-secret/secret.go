// Package voxsecret loads JSON secrets from AWS Secrets Manager into Go structs.
package voxsecret

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/savaki/secrets"
)

// AdminSecret holds the credentials of the session admin API.
type AdminSecret struct {
	APIKey string `json:"api_key"`
}

func LoadSecret(s *session.Session, secretName string, data interface{}) error {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	if err := manager.Decode(secretName, data); err != nil {
		return fmt.Errorf("failed to load secret %v: %w", secretName, err)
	}
	return nil
}

func LoadAdminSecret(s *session.Session, secretName string) (AdminSecret, error) {
	var secret AdminSecret
	if err := LoadSecret(s, secretName, &secret); err != nil {
		return AdminSecret{}, err
	}
	if secret.APIKey == "" {
		return AdminSecret{}, fmt.Errorf("secret %v has no api_key", secretName)
	}
	return secret, nil
}
