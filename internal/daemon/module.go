package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/api"
	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/config"
	"github.com/jyoon-dev/ssak3/internal/identity"
	"github.com/jyoon-dev/ssak3/internal/lock"
	"github.com/jyoon-dev/ssak3/internal/logging"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/outbox"
	"github.com/jyoon-dev/ssak3/internal/session"
	"github.com/jyoon-dev/ssak3/internal/status"
	"github.com/jyoon-dev/ssak3/internal/store"
	intsync "github.com/jyoon-dev/ssak3/internal/sync"
	"github.com/jyoon-dev/ssak3/internal/unread"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConfig,
			provideStore,
			provideCredStore,
			provideResolver,
			provideClient,
			provideUnread,
			provideRoomPoller,
			provideFeedManager,
			provideArchiver,
			provideSender,
			NewHealth,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("api_base_url", cfg.APIBaseURL))
	return cfg, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
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

func provideCredStore(p Params) *session.CredStore {
	return session.NewCredStore(session.CredsPath(p.SessionName))
}

func provideResolver(creds *session.CredStore, logger *zap.Logger) *identity.Resolver {
	return identity.NewResolver(creds, logger)
}

func provideClient(cfg *config.Config, creds *session.CredStore, b *bus.Bus, logger *zap.Logger) *market.Client {
	return market.NewClient(cfg.APIBaseURL, creds, b, logger)
}

func provideUnread(b *bus.Bus) *unread.State {
	return unread.NewState(b)
}

func provideRoomPoller(cfg *config.Config, client *market.Client, resolver *identity.Resolver, b *bus.Bus, u *unread.State, logger *zap.Logger) *intsync.RoomPoller {
	interval := time.Duration(cfg.RoomPollMillis) * time.Millisecond
	jitter := time.Duration(cfg.PollJitterMillis) * time.Millisecond
	return intsync.NewRoomPoller(client, resolver, b, u, logger, interval, jitter)
}

func provideFeedManager(cfg *config.Config, client *market.Client, resolver *identity.Resolver, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.FeedManager {
	interval := time.Duration(cfg.MessagePollMillis) * time.Millisecond
	return intsync.NewFeedManager(client, resolver, db, b, logger, interval)
}

func provideArchiver(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Archiver {
	return intsync.NewArchiver(db, b, logger)
}

func provideSender(db *store.DB, client *market.Client, feeds *intsync.FeedManager, resolver *identity.Resolver, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, feeds, resolver, b, logger)
}

func provideHandler(p Params, cfg *config.Config, machine *status.Machine, creds *session.CredStore, resolver *identity.Resolver, client *market.Client, poller *intsync.RoomPoller, feeds *intsync.FeedManager, sender *outbox.Sender, u *unread.State, b *bus.Bus, logger *zap.Logger) *api.Handler {
	return api.NewHandler(p.SessionName, cfg, machine, creds, resolver, client, poller, feeds, sender, u, b, session.MediaDir(p.SessionName), logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, archiver *intsync.Archiver, poller *intsync.RoomPoller, feeds *intsync.FeedManager, sender *outbox.Sender, health *Health, resolver *identity.Resolver, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Persist room and message snapshots as they flow over the bus.
			archiver.Start(context.Background())

			health.Start(context.Background())
			poller.Start(context.Background())
			feeds.Start(context.Background())
			sender.Start(context.Background())

			// Start control server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			// Transition state based on cached credentials.
			me, err := resolver.Resolve()
			if err != nil {
				logger.Error("identity resolution failed", zap.Error(err))
				_ = machine.Transition(status.AuthRequired)
				return nil
			}
			if me != nil {
				_ = machine.Transition(status.Resolving)
				_ = machine.Transition(status.Ready)
				logger.Info("session resumed", zap.String("nickname", me.Nickname))
				poller.Kick(0)
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			feeds.Stop()
			poller.Stop()
			health.Stop()
			archiver.Stop()
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
