package serverrun

import (
	"context"
	"net"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/shyifrah/kas/internal/codec"
	cfgpkg "github.com/shyifrah/kas/internal/config"
	"github.com/shyifrah/kas/internal/packet"
	"github.com/shyifrah/kas/internal/runtime"
	"github.com/shyifrah/kas/internal/server/broker"
	grpcserver "github.com/shyifrah/kas/internal/server/grpc"
	httpserver "github.com/shyifrah/kas/internal/server/http"
	"github.com/shyifrah/kas/internal/session"
	pebblestore "github.com/shyifrah/kas/internal/storage/pebble"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// Options configures Run. Listener addresses and tunables come from Config.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
	// Ready, when set, is called with the bound broker address once the
	// broker accepts connections.
	Ready func(addr net.Addr)
	// Reload triggers a reload of users and access lists through
	// LoadConfig. Other settings only take effect on restart.
	Reload     <-chan struct{}
	LoadConfig func() (cfgpkg.Config, error)
}

// Run starts the broker, gRPC and HTTP servers and blocks until ctx is
// cancelled, a server fails, or an authorized client requests shutdown.
// Permanent queues are persisted before Run returns.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.ApplyConfig(&cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		logpkg.RedirectStdLog(logger)
	}
	if opts.DataDir == "" {
		opts.DataDir = cfg.DataDir
	}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.Fsync == pebblestore.FsyncModeUnspecified {
		mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
		if err != nil {
			return err
		}
		opts.Fsync = mode
	}
	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: opts.Fsync, Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("runtime close", logpkg.Err(err))
		}
	}()

	sctx, stop := context.WithCancel(ctx)
	defer stop()

	var copts []codec.Option
	if cfg.Queues.MaxBodyBytes > 0 {
		copts = append(copts, codec.WithMaxBody(cfg.Queues.MaxBodyBytes))
	}
	handler := session.NewHandler(session.Options{
		Queues:      rt.Queues(),
		Access:      rt.Access(),
		Auth:        rt.Users(),
		ServerName:  cfg.ServerName,
		AuthTimeout: cfg.Session.AuthTimeout.D(),
		IdleTimeout: cfg.Session.IdleTimeout.D(),
		MaxGetWait:  cfg.Session.MaxGetWait.D(),
		Selectors:   rt.Selectors(),
		Metrics:     rt.Metrics(),
		Logger:      logger,
		Shutdown: func() {
			logger.Info("shutdown requested by client")
			stop()
		},
	})

	lis, err := net.Listen("tcp", cfg.Listen.Broker)
	if err != nil {
		return err
	}
	logger.Info("Starting KAS server",
		logpkg.Str("server", cfg.ServerName),
		logpkg.Str("broker", lis.Addr().String()),
		logpkg.Str("grpc", cfg.Listen.GRPC),
		logpkg.Str("http", cfg.Listen.HTTP),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("fsync", opts.Fsync.String()),
	)

	g, gctx := errgroup.WithContext(sctx)
	bsrv := broker.New(handler, packet.Codec(copts...), logger)
	g.Go(func() error { return bsrv.Serve(gctx, lis) })
	if cfg.Listen.GRPC != "" {
		gsrv := grpcserver.New(rt, logger)
		g.Go(func() error { return gsrv.ListenAndServe(gctx, cfg.Listen.GRPC) })
	}
	if cfg.Listen.HTTP != "" {
		hsrv := httpserver.New(rt, logger)
		g.Go(func() error { return hsrv.ListenAndServe(gctx, cfg.Listen.HTTP) })
	}
	if opts.Reload != nil && opts.LoadConfig != nil {
		g.Go(func() error {
			reloadLoop(gctx, rt, opts.Reload, opts.LoadConfig, logger)
			return nil
		})
	}
	if opts.Ready != nil {
		opts.Ready(lis.Addr())
	}

	err = g.Wait()
	logger.Info("KAS server stopped")
	return err
}

func reloadLoop(ctx context.Context, rt *runtime.Runtime, trigger <-chan struct{}, load func() (cfgpkg.Config, error), logger logpkg.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}
		cfg, err := load()
		if err != nil {
			logger.Error("reload: loading configuration", logpkg.Err(err))
			continue
		}
		if err := rt.Reload(cfg); err != nil {
			logger.Error("reload rejected; previous configuration kept", logpkg.Err(err))
		}
	}
}
