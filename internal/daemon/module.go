package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/api"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/config"
	"github.com/matheus3301/ringcore/internal/lock"
	"github.com/matheus3301/ringcore/internal/logging"
	"github.com/matheus3301/ringcore/internal/outbox"
	"github.com/matheus3301/ringcore/internal/session"
	"github.com/matheus3301/ringcore/internal/status"
	"github.com/matheus3301/ringcore/internal/store"
	intsync "github.com/matheus3301/ringcore/internal/sync"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string // optional override for testing; empty = use default
	// BridgeSocket overrides the daemon socket from the config.
	BridgeSocket string
}

// Module returns the fx module for the engine host, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideHost,
			provideLock,
			provideStore,
			provideLink,
			provideCallEngine,
			provideAccounts,
			provideJournal,
			provideSyncEngine,
			provideSender,
			provideAccountService,
			provideConversationService,
			provideCallService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Profile), p.Profile, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideHost(b *bus.Bus) *status.Host {
	return status.NewHost(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// The lock is a parameter so the database is only opened by the holder.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Applied() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("to", result.To))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.To))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

func provideLink(p Params, cfg *config.Config, host *status.Host, logger *zap.Logger) *Link {
	socket := p.BridgeSocket
	if socket == "" {
		socket = cfg.DaemonSocket
	}
	if socket == "" {
		socket = session.BridgeSocketPath(p.Profile)
	}
	return NewLink(socket, host, logger)
}

func provideCallEngine(b *bus.Bus, logger *zap.Logger) *call.Engine {
	return call.NewEngine(b, logger, call.HooksFunc(func() {
		logger.Info("no more calls")
	}))
}

func provideAccounts() *account.Set {
	return account.NewSet()
}

func provideJournal(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Journal {
	return intsync.NewJournal(db, b, logger)
}

func provideSyncEngine(link *Link, accounts *account.Set, calls *call.Engine, b *bus.Bus, host *status.Host, journal *intsync.Journal, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	opts := intsync.Options{BackfillPage: cfg.BackfillPage, BackfillRate: cfg.BackfillRate}
	return intsync.NewEngine(link, accounts, calls, b, host, journal, opts, logger)
}

func provideSender(db *store.DB, link *Link, accounts *account.Set, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	timelines := func(id string) (outbox.Timeline, error) {
		a, err := accounts.Get(id)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return outbox.NewSender(db, link, timelines, b, logger)
}

func provideAccountService(p Params, host *status.Host, accounts *account.Set, db *store.DB) *api.AccountService {
	return api.NewAccountService(p.Profile, host, accounts, db)
}

func provideConversationService(p Params, accounts *account.Set, sender *outbox.Sender, journal *intsync.Journal, b *bus.Bus) *api.ConversationService {
	return api.NewConversationService(p.Profile, accounts, sender, journal, b)
}

func provideCallService(link *Link, calls *call.Engine, engine *intsync.Engine) *api.CallService {
	return api.NewCallService(link, calls, engine)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, link *Link, engine *intsync.Engine, journal *intsync.Journal, sender *outbox.Sender, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The journal follows the bus before any event can be published.
			journal.Start(context.Background())

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			sender.Start(context.Background())

			// Dial the daemon and load accounts in the background.
			link.Start(context.Background(), engine)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// No RPC may reach the engine once its workers are gone.
			srv.Stop(ctx)
			sender.Stop()
			link.Stop()
			engine.Stop()
			journal.Stop()
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
