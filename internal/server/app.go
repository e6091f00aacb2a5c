// Package server wires the draftkeeper backend together: storage backends,
// lease authority, archive, metrics, the lease sweeper and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/server/archive"
	"github.com/dmitrijs2005/draftkeeper/internal/server/config"
	"github.com/dmitrijs2005/draftkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/drafts"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/leases"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/draftkeeper/internal/server/services"
	"github.com/dmitrijs2005/draftkeeper/internal/server/sweeper"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	gs "github.com/dmitrijs2005/draftkeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics

	db        *sql.DB
	firestore *firestore.Client
	redis     *redis.Client

	sessions *services.SessionService
	drafts   *services.DraftService
	leases   *services.LeaseService
	audit    *services.AuditService
	sweeper  *sweeper.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(c.LogBackend, os.Stdout, c.Debug)
	app := &App{config: c, logger: logger, metrics: metrics.New()}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	draftRunner, err := app.draftBackend(ctx, rm)
	if err != nil {
		app.Close()
		return nil, err
	}

	leaseRepo, err := app.leaseBackend(ctx, rm)
	if err != nil {
		app.Close()
		return nil, err
	}

	var archiver archive.Archiver
	if c.ArchiveEnabled {
		a, err := archive.NewS3Archiver(ctx, archive.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		archiver = a
	}

	app.sessions = services.NewSessionService(c)
	app.drafts = services.NewDraftService(draftRunner, archiver, app.metrics, logger)
	app.leases = services.NewLeaseService(leaseRepo, c.LeaseTTL, app.metrics, logger)
	app.audit = services.NewAuditService(rm.AuditLog(db), app.metrics, logger)

	sw, err := sweeper.New(c.SweepSchedule, app.leases, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("sweeper init error: %w", err)
	}
	app.sweeper = sw

	return app, nil
}

func (app *App) draftBackend(ctx context.Context, rm repomanager.RepositoryManager) (drafts.Runner, error) {
	switch app.config.DraftBackend {
	case config.BackendPostgres:
		return rm.DraftsTx(app.db), nil
	case config.BackendFirestore:
		var opts []option.ClientOption
		if app.config.FirestoreCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(app.config.FirestoreCredentialsFile))
		}
		client, err := firestore.NewClient(ctx, app.config.FirestoreProject, opts...)
		if err != nil {
			return nil, fmt.Errorf("firestore init error: %w", err)
		}
		app.firestore = client
		return drafts.Direct(drafts.NewFirestoreRepository(client)), nil
	default:
		return nil, fmt.Errorf("unknown draft backend %q", app.config.DraftBackend)
	}
}

func (app *App) leaseBackend(ctx context.Context, rm repomanager.RepositoryManager) (leases.Repository, error) {
	switch app.config.LeaseBackend {
	case config.BackendPostgres:
		return rm.Leases(app.db), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = client
		return leases.NewRedisRepository(client), nil
	default:
		return nil, fmt.Errorf("unknown lease backend %q", app.config.LeaseBackend)
	}
}

// Close releases backend connections.
func (app *App) Close() {
	if app.firestore != nil {
		_ = app.firestore.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, gs.Services{
		Sessions: app.sessions,
		Drafts:   app.drafts,
		Leases:   app.leases,
		Audit:    app.audit,
	}, app.metrics, app.config.RateLimit, app.config.RateBurst)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.metrics.Serve(ctx, app.config.MetricsAddr, app.logger); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...", "draft_backend", app.config.DraftBackend, "lease_backend", app.config.LeaseBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
