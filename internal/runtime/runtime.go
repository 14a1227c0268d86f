package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/auth"
	cfgpkg "github.com/shyifrah/kas/internal/config"
	"github.com/shyifrah/kas/internal/metrics"
	"github.com/shyifrah/kas/internal/queue"
	"github.com/shyifrah/kas/internal/queuestore"
	"github.com/shyifrah/kas/internal/selector"
	pebblestore "github.com/shyifrah/kas/internal/storage/pebble"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  logpkg.Logger
}

// Runtime wires storage, queues, access control and users for a single
// broker instance.
type Runtime struct {
	db        *pebblestore.DB
	store     *queuestore.Store
	queues    *queue.Registry
	access    *access.Manager
	users     *auth.Directory
	metrics   *metrics.Metrics
	selectors *selector.Cache
	config    cfgpkg.Config
	logger    logpkg.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open initializes storage, restores permanent queues and loads users and
// access lists from the configuration.
func Open(opts Options) (*Runtime, error) {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	users, err := auth.NewDirectory(cfg.AuthUsers())
	if err != nil {
		return nil, err
	}
	mgr := access.NewManager(users)
	specs, err := cfg.AccessSpecs()
	if err != nil {
		return nil, err
	}
	if err := mgr.Apply(specs); err != nil {
		return nil, err
	}

	m := metrics.New()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: opts.DataDir,
		Fsync:   opts.Fsync,
		Metrics: m,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	store, err := queuestore.New(db, opts.Logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	queues := queue.NewRegistry(queue.Options{
		Logger:      opts.Logger,
		Store:       store,
		Observer:    m,
		DefaultPoll: cfg.Queues.DefaultPoll.D(),
	})
	rt := &Runtime{
		db:        db,
		store:     store,
		queues:    queues,
		access:    mgr,
		users:     users,
		metrics:   m,
		selectors: selector.NewCache(cfg.Queues.SelectorCache),
		config:    cfg,
		logger:    opts.Logger.WithComponent("runtime"),
	}
	if _, err := store.Restore(context.Background(), queues); err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, fmt.Errorf("restore queues: %w", err)
	}
	return rt, nil
}

// Close persists permanent queue contents and closes storage. Safe to call
// more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		if r.db == nil {
			return
		}
		var errs []error
		if _, err := r.store.Snapshot(context.Background(), r.queues); err != nil {
			r.logger.Error("persist queues", logpkg.Err(err))
			errs = append(errs, err)
		}
		errs = append(errs, r.store.Close(), r.db.Close())
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Ping()
}

// Reload swaps in users and access lists from cfg. Either both are replaced
// or neither is.
func (r *Runtime) Reload(cfg cfgpkg.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	specs, err := cfg.AccessSpecs()
	if err != nil {
		return err
	}
	staged := access.NewManager(r.users)
	if err := staged.Apply(specs); err != nil {
		return err
	}
	if err := r.users.Replace(cfg.AuthUsers()); err != nil {
		return err
	}
	if err := r.access.Apply(specs); err != nil {
		return err
	}
	r.logger.Info("configuration reloaded",
		logpkg.Int("users", r.users.Len()),
		logpkg.Int("classes", len(specs)))
	return nil
}

// Queues returns the queue registry.
func (r *Runtime) Queues() *queue.Registry { return r.queues }

// Access returns the access manager.
func (r *Runtime) Access() *access.Manager { return r.access }

// Users returns the user directory.
func (r *Runtime) Users() *auth.Directory { return r.users }

// Metrics returns the process metrics.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Selectors returns the compiled selector cache.
func (r *Runtime) Selectors() *selector.Cache { return r.selectors }

// Store exposes permanent queue persistence (internal use only).
func (r *Runtime) Store() *queuestore.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
