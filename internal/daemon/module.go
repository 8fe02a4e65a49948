// Package daemon composes the declsync daemon out of its parts with fx and
// owns the process lifecycle.
package daemon

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ykovtun/declsync/internal/api"
	"github.com/ykovtun/declsync/internal/bus"
	"github.com/ykovtun/declsync/internal/config"
	"github.com/ykovtun/declsync/internal/cryptox"
	"github.com/ykovtun/declsync/internal/gateway"
	"github.com/ykovtun/declsync/internal/lock"
	"github.com/ykovtun/declsync/internal/logging"
	"github.com/ykovtun/declsync/internal/metrics"
	"github.com/ykovtun/declsync/internal/paths"
	"github.com/ykovtun/declsync/internal/store"
	"github.com/ykovtun/declsync/internal/syncjob"
)

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	DataDir    string // empty = default data dir
	ConfigPath string // empty = <data dir>/config.toml
	ListenAddr string // optional override for testing; empty = config value
}

func (p Params) dataDir() string {
	if p.DataDir != "" {
		return p.DataDir
	}
	return paths.BaseDir()
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideCredentials,
			provideGateway,
			provideController,
			provideHandlers,
			NewServer,
		),
		fx.Invoke(registerEventBridge, registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = paths.ConfigPath(p.dataDir())
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	base := p.dataDir()
	if err := paths.EnsureDirs(base); err != nil {
		return nil, err
	}
	return logging.New(paths.LogPath(base))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", p.dataDir()))
	l, err := lock.Acquire(p.dataDir())
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.DBPath(p.dataDir())
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredentials(p Params, cfg *config.Config, logger *zap.Logger) (*syncjob.Credentials, error) {
	passphrase := cfg.Security.CredentialKey
	if passphrase == "" {
		logger.Warn("security.credential_key is not set, sealing tokens with a built-in key")
		passphrase = "declsync-local"
	}
	salt, err := loadOrCreateSalt(paths.KeySaltPath(p.dataDir()))
	if err != nil {
		return nil, err
	}
	return syncjob.NewCredentials(passphrase, salt), nil
}

// loadOrCreateSalt keeps the key-derivation salt stable across restarts so
// previously sealed tokens stay openable.
func loadOrCreateSalt(path string) ([]byte, error) {
	if salt, err := os.ReadFile(path); err == nil && len(salt) > 0 {
		return salt, nil
	}
	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, err
	}
	return salt, nil
}

func provideGateway(cfg *config.Config, logger *zap.Logger) *gateway.Client {
	return gateway.New(cfg.Upstream.BaseURL, cfg.Upstream.MessageNS, logger)
}

func provideController(db *store.DB, gw *gateway.Client, creds *syncjob.Credentials, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *syncjob.Controller {
	return syncjob.New(db, gw, creds, b, logger, syncjob.DefaultTiming(), cfg.Sync.ChunkDays)
}

func provideHandlers(db *store.DB, controller *syncjob.Controller, creds *syncjob.Credentials, b *bus.Bus, logger *zap.Logger) *api.Handlers {
	return api.NewHandlers(db, controller, creds, b, logger)
}

// registerEventBridge drains the event bus into the events_total metric and
// the debug log for the daemon's whole lifetime.
func registerEventBridge(lc fx.Lifecycle, b *bus.Bus, logger *zap.Logger) {
	ch, unsub := b.Subscribe("", 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			metrics.EventsTotal.WithLabelValues(evt.Kind).Inc()
			logger.Debug("event", zap.String("kind", evt.Kind), zap.Any("payload", evt.Payload))
		}
	}()
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			unsub()
			<-done
			return nil
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, controller *syncjob.Controller, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			controller.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			controller.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
