package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ledger/internal/config"
	"github.com/roach88/ledger/internal/index"
	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/metrics"
	"github.com/roach88/ledger/internal/store"
	"github.com/roach88/ledger/internal/store/postgres"
	"github.com/roach88/ledger/internal/telemetry"
)

// session is everything one command needs: configuration, logger, the
// opened stores and the engine over them.
type session struct {
	cfg       config.Config
	log       *slog.Logger
	tenant    int
	requestID string

	engine *ledger.Engine
	store  ledger.DocumentStore
	index  *index.Index

	registry *prometheus.Registry
	shutdown func(context.Context) error
}

// loadConfig reads the configuration and checks the tenant flag against it.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	if !slices.Contains(cfg.Ledger.Tenants, opts.Tenant) {
		return config.Config{}, NewExitError(ExitCommandError, fmt.Sprintf("tenant %d is not configured (tenants: %v)", opts.Tenant, cfg.Ledger.Tenants))
	}
	return cfg, nil
}

// newLogger builds the stderr logger. --verbose forces debug.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openSession loads the configuration, opens the stores and initializes
// the engine for every configured tenant.
func openSession(ctx context.Context, opts *RootOptions, stderr io.Writer) (_ *session, err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:       cfg,
		tenant:    opts.Tenant,
		requestID: uuid.NewString(),
		shutdown:  func(context.Context) error { return nil },
	}
	s.log = newLogger(cfg.Log, opts.Verbose, stderr).With("request_id", s.requestID)
	defer func() {
		if err != nil {
			s.Close(ctx)
		}
	}()

	s.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Textfile != "" {
		s.registry = prometheus.NewRegistry()
		p, err := metrics.NewPrometheus(s.registry)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		recorder = p
	}

	// Stores are assigned only once open: a nil pointer must never become
	// a non-nil interface.
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s.log.Debug("opening store", "driver", cfg.Store.Driver)
		pg, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
		s.store = pg
	default:
		s.log.Debug("opening store", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
		s.store = st
	}

	var search ledger.SearchIndex
	if !cfg.Index.Disabled {
		s.log.Debug("opening index", "path", cfg.Index.Path)
		ix, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open index", err)
		}
		s.index = ix
		search = ix
	}

	s.engine = ledger.New(s.store, search,
		ledger.WithLogger(s.log),
		ledger.WithMetrics(recorder),
		ledger.WithTracer(telemetry.Tracer()),
		ledger.WithSlices(cfg.Ledger.OperationSlice, cfg.Ledger.LifecycleSlice),
	)
	if err := s.engine.Init(ctx, cfg.Ledger.Tenants...); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize search aliases", err)
	}
	return s, nil
}

// Close flushes traces, writes the metrics textfile and closes the stores.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.shutdown != nil {
		errs = append(errs, s.shutdown(ctx))
	}
	if s.registry != nil {
		errs = append(errs, prometheus.WriteToTextfile(s.cfg.Metrics.Textfile, s.registry))
	}
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("error closing session", "error", err)
		return err
	}
	return nil
}

// withSession opens a session, runs fn and closes the session.
func withSession(ctx context.Context, opts *RootOptions, stderr io.Writer, fn func(*session) error) error {
	s, err := openSession(ctx, opts, stderr)
	if err != nil {
		return err
	}
	defer s.Close(ctx)
	return fn(s)
}
