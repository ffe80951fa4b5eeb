// Package server wires the storefront together: storage, services, the REST
// API and the gRPC health endpoint, and runs them until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/httpapi"
	"github.com/dmitrijs2005/storefront/internal/server/metrics"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/server/revocation"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/dmitrijs2005/storefront/internal/syncx"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/storefront/internal/server/grpc"
)

const (
	janitorInterval = time.Minute
	clientIdleAfter = 10 * time.Minute
	startupTimeout  = 30 * time.Second
)

// revocationStore is what the token service and the janitor need from
// either revocation backend.
type revocationStore interface {
	auth.RevocationStore
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	revocations revocationStore
	closers     []io.Closer
	http        *httpapi.Server
	runners     []runner
	now         func() time.Time
}

// seams for tests
var (
	openDB         = repomanager.OpenDB
	newRedisStore  = openRedisRevocations
	newImageSigner = services.NewImageSigner
)

func openRedisRevocations(ctx context.Context, url string) (revocationStore, io.Closer, error) {
	s, err := revocation.NewRedisStore(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}, now: time.Now}

	m := repomanager.NewPostgresRepositoryManager()
	if c.RunMigrations {
		if err := m.RunMigrations(ctx, db); err != nil {
			app.close()
			return nil, err
		}
	}

	if c.RedisURL != "" {
		store, closer, err := newRedisStore(ctx, c.RedisURL)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.revocations = store
		app.closers = append(app.closers, closer)
	} else {
		app.revocations = m.Revocations(db)
	}

	images, err := newImageSigner(ctx, c)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("image signer init error: %w", err)
	}

	tokens := auth.NewTokenService(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, app.revocations)
	hasher := auth.NewPasswordHasher(c.BcryptCost)
	met := metrics.New()
	locks := syncx.NewKeyedMutex()

	catalog := services.NewCatalogService(db, m, images, c.StorageTimeout)
	svc := httpapi.Services{
		Users:   services.NewUserService(db, m, hasher, tokens, c.StorageTimeout),
		Catalog: catalog,
		Carts:   services.NewCartService(db, m, catalog, locks, c, met, logger),
		Orders:  services.NewOrderService(db, m, catalog, locks, c, met, logger),
		Tokens:  tokens,
	}

	app.http = httpapi.NewServer(svc, httpapi.Options{
		Addr:           c.HTTPAddr,
		CORSOrigins:    c.CORSOrigins,
		CookieSecure:   c.CookieSecure,
		RefreshTTL:     c.RefreshTokenValidityDuration,
		RateLimitRPS:   c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
		HealthCheck:    db.PingContext,
	}, logger, met)

	app.runners = []runner{app.http, gs.NewGRPCServer(c.GRPCAddr, logger)}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is done, a shutdown signal arrives or one of the
// servers fails. Storage handles are closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range app.runners {
		g.Go(func() error { return r.Run(ctx) })
	}
	g.Go(func() error {
		app.janitor(ctx, janitorInterval)
		return nil
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// janitor periodically purges expired revocations and forgets idle
// rate-limited clients.
func (app *App) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweep(ctx)
		}
	}
}

func (app *App) sweep(ctx context.Context) {
	if app.revocations != nil {
		sctx, cancel := context.WithTimeout(ctx, app.config.StorageTimeout)
		n, err := app.revocations.DeleteExpired(sctx, app.now())
		cancel()
		if err != nil {
			app.logger.Warn(ctx, "purge expired revocations", "error", err)
		} else if n > 0 {
			app.logger.Debug(ctx, "purged expired revocations", "count", n)
		}
	}
	if app.http != nil {
		if n := app.http.SweepIdleClients(clientIdleAfter); n > 0 {
			app.logger.Debug(ctx, "forgot idle clients", "count", n)
		}
	}
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close", "error", err)
		}
	}
	app.closers = nil
}
