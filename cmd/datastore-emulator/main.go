package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/diwise/datastore-client/internal/pkg/application/store"
	"github.com/diwise/datastore-client/internal/pkg/infrastructure/router"
	"github.com/diwise/datastore-client/internal/pkg/infrastructure/storage"
	api "github.com/diwise/datastore-client/internal/pkg/presentation/api/datastore"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const appName string = "datastore-emulator"

// defaultPolicy allows everything. Real deployments should mount a policy
// via EMULATOR_AUTHZ_POLICY_FILE instead.
const defaultPolicy string = `package datastore.authz

default allow = true
`

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg, err := loadConfigurationFromFileOrDefault(ctx)
	if err != nil {
		log.Error("failed to load configuration", "err", err.Error())
		os.Exit(1)
	}

	backend, err := newStorageBackend(ctx, cfg)
	if err != nil {
		log.Error("failed to create storage backend", "err", err.Error())
		os.Exit(1)
	}

	app := store.New(backend)
	r := router.New(appName)

	policies, err := openPolicies(ctx)
	if err != nil {
		log.Error("failed to open authz policies", "err", err.Error())
		os.Exit(1)
	}

	err = api.RegisterHandlers(ctx, r, app, policies)
	if err != nil {
		log.Error("failed to register handlers", "err", err.Error())
		os.Exit(1)
	}

	port := env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8080")

	log.Info("starting to listen for connections", "port", port)

	err = http.ListenAndServe(":"+port, r)
	if err != nil {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

func loadConfigurationFromFileOrDefault(ctx context.Context) (*Config, error) {
	configPath := env.GetVariableOrDefault(ctx, "EMULATOR_CONFIG_FILE", "")
	if configPath == "" {
		return DefaultConfiguration(), nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadConfiguration(f)
}

func newStorageBackend(ctx context.Context, cfg *Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return storage.NewMemory(), nil
	case "postgres":
		return storage.NewPostgres(ctx, storage.LoadConfiguration(ctx))
	default:
		return nil, fmt.Errorf("unknown storage backend \"%s\"", cfg.Storage.Backend)
	}
}

func openPolicies(ctx context.Context) (io.Reader, error) {
	policyPath := env.GetVariableOrDefault(ctx, "EMULATOR_AUTHZ_POLICY_FILE", "")
	if policyPath == "" {
		return strings.NewReader(defaultPolicy), nil
	}

	contents, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, err
	}

	return strings.NewReader(string(contents)), nil
}
