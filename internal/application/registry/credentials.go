package registry

import (
	"context"
	"fmt"

	"github.com/elitedynamics/stepflow/internal/domain"
)

// StaticCredentials is a CredentialProvider backed by a fixed map of
// service name to credential. It serves single-tenant deployments and
// tests; real deployments plug in a provider that talks to the token
// service.
type StaticCredentials map[string]domain.Credentials

// Credential returns the configured credential for a service.
func (s StaticCredentials) Credential(_ context.Context, service string) (domain.Credentials, error) {
	creds, ok := s[service]
	if !ok {
		return nil, fmt.Errorf("no credential configured for service %s", service)
	}
	return creds, nil
}
