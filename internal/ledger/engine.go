package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/ledger/internal/metrics"
	"github.com/roach88/ledger/internal/telemetry"
)

// DateLayout formats lastPersistedDate and defaulted event dates.
const DateLayout = "2006-01-02T15:04:05.000"

// Engine implements the ledger operations over a primary store and a search
// index. It holds no locks and runs no background work: every call is a
// short sequence of store commands, and per-object exclusion comes solely
// from the staging collections' identity constraint.
type Engine struct {
	reg     *Registry
	index   SearchIndex
	now     func() time.Time
	log     *slog.Logger
	metrics metrics.Recorder
	tracer  trace.Tracer

	operationSlice int
	lifecycleSlice int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock used for lastPersistedDate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithSlices sets the default sliced-read widths for operations and
// lifecycles.
func WithSlices(operation, lifecycle int) Option {
	return func(e *Engine) {
		e.operationSlice = operation
		e.lifecycleSlice = lifecycle
	}
}

// New returns an engine over store and index. A nil index disables
// mirroring; traceability listings then read the primary store directly.
func New(store DocumentStore, index SearchIndex, opts ...Option) *Engine {
	e := &Engine{
		index:          index,
		now:            time.Now,
		log:            slog.Default(),
		metrics:        metrics.Noop{},
		tracer:         telemetry.Tracer(),
		operationSlice: OperationSlice,
		lifecycleSlice: LifecycleSlice,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reg = NewRegistry(store, index, e.operationSlice, e.lifecycleSlice)
	return e
}

// Registry exposes the collection bindings.
func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) stamp() string {
	return e.now().UTC().Format(DateLayout)
}

// begin opens a span and returns the function that closes it and records
// the call's outcome.
func (e *Engine) begin(ctx context.Context, call string, c Collection, tenant int, id string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "ledger."+call, trace.WithAttributes(
		attribute.Int("ledger.tenant", tenant),
		attribute.String("ledger.collection", c.String()),
		attribute.String("ledger.id", id),
	))
	return ctx, func(errp *error) {
		outcome := "ok"
		if err := *errp; err != nil {
			outcome = string(CodeOf(err))
			if outcome == "" {
				outcome = "error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.metrics.ObserveCall(call, outcome, time.Since(start))
		span.End()
	}
}

// Init verifies the search aliases for tenants. An alias that cannot be
// created, or whose creation yields nothing, is fatal.
func (e *Engine) Init(ctx context.Context, tenants ...int) error {
	if e.index == nil {
		return nil
	}
	for _, tenant := range tenants {
		if err := e.ensureAlias(ctx, Operations, tenant); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureAlias(ctx context.Context, c Collection, tenant int) error {
	aliases, err := e.index.EnsureAlias(ctx, c.IndexName(), tenant)
	if err != nil {
		return fmt.Errorf("ensure alias %s: %w", c.Alias(tenant), err)
	}
	if len(aliases) == 0 {
		return fmt.Errorf("ensure alias %s: index creation returned no result", c.Alias(tenant))
	}
	e.log.Debug("search alias ready", "alias", c.Alias(tenant), "index", aliases[c.Alias(tenant)])
	return nil
}

func errUpdateNotFound(id string, cause error) *Error {
	return &Error{Code: CodeNotFound, Message: msgUpdateNotFound + id, Cause: cause}
}
