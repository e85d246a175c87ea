package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/backend/todoist"
	"github.com/dapp-whisperer/terminalist/internal/config"
	"github.com/dapp-whisperer/terminalist/internal/credentials"
	"github.com/dapp-whisperer/terminalist/internal/storage"
	tasksync "github.com/dapp-whisperer/terminalist/internal/sync"
	"github.com/dapp-whisperer/terminalist/internal/utils"
)

// app holds everything a command needs once startup is done.
type app struct {
	cfg         *config.Config
	store       *storage.Store
	registry    *backend.Registry
	svc         *tasksync.Service
	instanceIDs []uuid.UUID
	dbPath      string
}

// loadConfig resolves the config file from the --config flag or the default
// location.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// newApp opens the store and connects every enabled backend instance.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	utils.SetVerboseMode(cfg.Logging.Verbose || flagBool(cmd, "verbose"))

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		if dbPath, err = cfg.DatabasePath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %s: %w", dbPath, err)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		registry: backend.NewRegistry(),
		dbPath:   dbPath,
	}
	a.svc = tasksync.NewService(store, a.registry)

	creds := credentials.NewManager()
	ctx := context.Background()
	for _, bc := range cfg.EnabledBackends() {
		instanceID, err := bc.UUID()
		if err != nil {
			a.Close()
			return nil, err
		}
		gw, err := connectBackend(bc, creds)
		if err != nil {
			a.Close()
			return nil, err
		}

		if err := storage.InsertBackendInstance(ctx, store.DB(), storage.BackendInstance{
			UUID:      instanceID,
			Kind:      bc.Kind,
			Name:      bc.Name,
			IsEnabled: true,
		}); err != nil {
			_ = gw.Close()
			a.Close()
			return nil, err
		}

		a.registry.Register(instanceID, gw)
		a.instanceIDs = append(a.instanceIDs, instanceID)
		utils.Debugf("connected backend %s (%s)", bc.Name, bc.Kind)
	}

	return a, nil
}

// connectBackend builds the gateway for one configured instance.
func connectBackend(bc config.BackendConfig, creds *credentials.Manager) (backend.Backend, error) {
	switch bc.Kind {
	case "todoist":
		token, err := creds.Token(bc)
		if err != nil {
			return nil, err
		}
		tcfg := todoist.ConfigFromEnv()
		tcfg.APIToken = token
		return todoist.New(tcfg)
	default:
		return nil, fmt.Errorf("unknown backend kind %q for %s", bc.Kind, bc.Name)
	}
}

func (a *app) Close() {
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			utils.Warnf("closing backends: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			utils.Warnf("closing database: %v", err)
		}
	}
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
