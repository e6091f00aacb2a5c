package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/client/client"
	"github.com/dmitrijs2005/draftkeeper/internal/client/config"
	"github.com/dmitrijs2005/draftkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/draftkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/draftkeeper/internal/client/session"
	"github.com/dmitrijs2005/draftkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/draftkeeper/internal/cryptox"
	"github.com/dmitrijs2005/draftkeeper/internal/filex"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	kv      kv.Repository
	closeKV func() error

	userID   string
	deviceID string
	cipher   *cryptox.AESCipher

	api   client.Client
	conn  syncer.Connectivity
	audit audit.Sink
	stop  []func()

	session *session.Session
	draftID string

	reader *bufio.Reader
	out    io.Writer
}

// NewApp prepares the data directory, the log file and the local store.
// Network setup happens in Run once the user is known.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	dir, err := filex.EnsureDataDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	c.DataDir = dir

	logger := logging.New(logging.BackendSlog, newLogWriter(c.LogFile), c.Debug)

	store, closeKV, err := openKV(ctx, c)
	if err != nil {
		logger.Error(ctx, "error initializing local store", "error", err)
		return nil, err
	}

	return &App{
		config:  c,
		logger:  logger,
		kv:      store,
		closeKV: closeKV,
		userID:  c.UserID,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func newLogWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

func openKV(ctx context.Context, c *config.Config) (kv.Repository, func() error, error) {
	switch c.StorageBackend {
	case config.StoragePebble:
		r, err := kv.OpenPebble(filepath.Join(c.DataDir, "pebble"), &pebble.Options{})
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case config.StorageSQLite, "":
		db, err := client.InitDatabase(ctx, filepath.Join(c.DataDir, "drafts.db"))
		if err != nil {
			return nil, nil, err
		}
		return kv.NewSQLiteRepository(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// connect builds the API client and starts the background connectivity and
// audit workers.
func (a *App) connect(ctx context.Context) error {
	api, err := client.NewDraftKeeperClient(a.config.ServerEndpointAddr, a.userID, a.deviceID)
	if err != nil {
		return err
	}
	a.api = api

	wctx, cancel := context.WithCancel(ctx)
	a.stop = append(a.stop, cancel)

	monitor := connectivity.NewMonitor(api, a.config.OnlineCheckInterval, a.logger)
	go monitor.Run(wctx)
	a.conn = monitor

	sink := audit.NewAsyncSink(a.logger, api.LogEvent, 64)
	go sink.Run(wctx)
	a.stop = append(a.stop, sink.Close)
	a.audit = sink

	return nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.shutdown(ctx)

	if err := a.identify(ctx); err != nil {
		return err
	}
	if err := a.Unlock(ctx); err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}

	a.Root(ctx)
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	if a.session != nil {
		a.session.Close(context.WithoutCancel(ctx))
		a.session = nil
	}
	for _, fn := range a.stop {
		fn()
	}
	if a.api != nil {
		_ = a.api.Close()
	}
	if a.closeKV != nil {
		if err := a.closeKV(); err != nil {
			a.logger.Warn(ctx, "failed to close local store", "error", err)
		}
	}
}
