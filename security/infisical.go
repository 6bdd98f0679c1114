// Package security holds the external authentication and secret-resolution
// helpers shared by config and auth: OIDC token verification and an
// Infisical-backed secret fetcher.
package security

import (
	"context"
	"fmt"

	infisical "github.com/infisical/go-sdk"
)

// SecretFetcher resolves named secrets from an Infisical project/environment,
// falling back to the zero value when a key is absent rather than failing
// the whole batch.
type SecretFetcher struct {
	client      infisical.InfisicalClientInterface
	projectID   string
	environment string
}

// NewSecretFetcher authenticates against Infisical using universal auth and
// returns a fetcher scoped to the given project and environment.
func NewSecretFetcher(ctx context.Context, host, clientID, clientSecret, projectID, environment string) (*SecretFetcher, error) {
	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          "https://" + host,
		AutoTokenRefresh: false,
	})

	if _, err := client.Auth().UniversalAuthLogin(clientID, clientSecret); err != nil {
		return nil, fmt.Errorf("infisical auth: %w", err)
	}

	return &SecretFetcher{client: client, projectID: projectID, environment: environment}, nil
}

// Lookup returns the value of a single secret key, or ok=false if it does
// not exist in the project/environment.
func (f *SecretFetcher) Lookup(key string) (string, bool) {
	secrets, err := f.client.Secrets().List(infisical.ListSecretsOptions{
		AttachToProcessEnv: false,
		Environment:        f.environment,
		ProjectID:          f.projectID,
		SecretPath:         "/",
		IncludeImports:     true,
	})
	if err != nil {
		return "", false
	}

	for _, secret := range secrets {
		if secret.SecretKey == key {
			return secret.SecretValue, true
		}
	}
	return "", false
}
