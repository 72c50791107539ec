package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

// Identity is the credential bundle used to construct a store client.
type Identity struct {
	Token     string
	ProjectID string
}

// Authenticator resolves the bearer credential and project id for a client.
type Authenticator interface {
	Resolve(ctx context.Context) (Identity, error)
}

// Default returns an authenticator that discovers credentials from the
// environment: DATASTORE_PROJECT_ID for the project id and DATASTORE_TOKEN,
// or the contents of the file named by DATASTORE_TOKEN_FILE, for the bearer
// token. An empty token is allowed, for use against local emulators.
func Default() Authenticator {
	return &envAuthenticator{}
}

// Static returns an authenticator that resolves to a fixed identity.
func Static(projectID, token string) Authenticator {
	return &staticAuthenticator{
		identity: Identity{Token: token, ProjectID: projectID},
	}
}

type envAuthenticator struct{}

func (a *envAuthenticator) Resolve(ctx context.Context) (Identity, error) {
	projectID := env.GetVariableOrDefault(ctx, "DATASTORE_PROJECT_ID", "")
	if projectID == "" {
		return Identity{}, fmt.Errorf("no project id configured (set DATASTORE_PROJECT_ID)")
	}

	token := env.GetVariableOrDefault(ctx, "DATASTORE_TOKEN", "")

	if token == "" {
		tokenFile := env.GetVariableOrDefault(ctx, "DATASTORE_TOKEN_FILE", "")
		if tokenFile != "" {
			contents, err := os.ReadFile(tokenFile)
			if err != nil {
				return Identity{}, fmt.Errorf("unable to read token file: %s", err.Error())
			}
			token = strings.TrimSpace(string(contents))
		}
	}

	return Identity{Token: token, ProjectID: projectID}, nil
}

type staticAuthenticator struct {
	identity Identity
}

func (a *staticAuthenticator) Resolve(ctx context.Context) (Identity, error) {
	return a.identity, nil
}
