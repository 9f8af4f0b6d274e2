package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/chat"
	"github.com/Mayores-04/my-messaging-app/internal/config"
	"github.com/Mayores-04/my-messaging-app/internal/gateway"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/live"
	"github.com/Mayores-04/my-messaging-app/internal/lock"
	"github.com/Mayores-04/my-messaging-app/internal/logging"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	ConfigPath string
	ListenAddr string // optional override for testing; empty = use config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideChatService,
			provideHub,
			provideSigner,
			provideGateway,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// provideConfig loads the config file, creating it with defaults (and a
// fresh random JWT secret) on first run.
func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		cfg.JWTSecret = hex.EncodeToString(secret)
		if err := config.Save(p.ConfigPath, cfg); err != nil {
			return nil, err
		}
	}
	if p.ListenAddr != "" {
		cfg.ListenAddr = p.ListenAddr
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := cfg.DatabasePath()
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

func provideChatService(db *store.DB, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, b, logger)
}

func provideHub(b *bus.Bus) *live.Hub {
	return live.NewHub(b)
}

func provideSigner(cfg *config.Config) *identity.Signer {
	return identity.NewSigner(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
}

func provideGateway(svc *chat.Service, signer *identity.Signer, b *bus.Bus, hub *live.Hub, logger *zap.Logger) *gateway.Gateway {
	return gateway.New(svc, signer, b, hub, logger)
}

func provideServer(cfg *config.Config, gw *gateway.Gateway, logger *zap.Logger) *Server {
	return NewServer(ServerConfig{ListenAddr: cfg.ListenAddr}, gw, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
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
