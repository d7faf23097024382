// Package exporter wraps OTLP exporters in hot-swappable shims so a signal's
// destination can change at runtime without rebuilding providers. The wrapped
// exporter is replaced atomically: in-flight exports are served by either the
// old or the new transport, never a half-built one.
package exporter

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/telemetry/internal/constants"
	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/logging"
)

// State reports whether a shim is serving steadily or mid-swap.
type State int32

// Shim states.
const (
	StateReady State = iota
	StateUpdating
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateUpdating {
		return "UPDATING"
	}

	return "READY"
}

// transport is the lifecycle shared by every exporter kind a shim can wrap.
type transport interface {
	Shutdown(ctx context.Context) error
}

// Params carries everything a Factory needs to construct a transport for one
// destination.
type Params struct {
	// Endpoint is the full, path-suffixed endpoint URL.
	Endpoint string
	// Protocol is the endpoint's scheme: http, https, grpc, or grpcs.
	Protocol string
	// Insecure dials plaintext transports; set from the endpoint's TLS flag.
	Insecure bool
	// Headers are sent with every export request, including the bearer
	// auth header when a token is configured.
	Headers map[string]string
	// CACert is the TLS verification material for the destination.
	CACert config.CACert
}

// WithBearerToken returns a copy of the params whose headers carry the token,
// leaving the receiver untouched.
func (p Params) WithBearerToken(token string) Params {
	headers := make(map[string]string, len(p.Headers)+1)
	for key, value := range p.Headers {
		headers[key] = value
	}

	if token != "" {
		headers["authorization"] = "Bearer " + token
	}

	p.Headers = headers

	return p
}

// Factory builds a transport for the given params. Factories are invoked on
// every endpoint change, outside any shim lock.
type Factory[T transport] func(ctx context.Context, params Params) (T, error)

// Flusher drains buffered telemetry before the old transport is retired,
// typically a PeriodicReader or batch processor ForceFlush.
type Flusher func(ctx context.Context) error

// Option customizes a shim.
type Option func(*options)

type options struct {
	logger logging.Adapter
}

// WithLogger routes the shim's diagnostics through the given adapter.
func WithLogger(logger logging.Adapter) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// core is the swap machinery shared by the per-signal shims. The mutex guards
// only the pointer read and the pointer swap; construction, flush, and
// shutdown of transports all happen outside it.
type core[T transport] struct {
	mu      sync.RWMutex
	current T
	params  Params

	// swapMu serializes ChangeEndpoint callers so concurrent swaps cannot
	// interleave their build/flush/swap sequences.
	swapMu sync.Mutex
	state  atomic.Int32

	signal  config.Signal
	factory Factory[T]
	logger  logging.Adapter
}

func newCore[T transport](ctx context.Context, signal config.Signal, factory Factory[T], params Params, opts ...Option) (*core[T], error) {
	cfg := options{logger: logging.NewNoopAdapter()}
	for _, opt := range opts {
		opt(&cfg)
	}

	initial, err := factory(ctx, params)
	if err != nil {
		return nil, err
	}

	c := &core[T]{
		current: initial,
		params:  params,
		signal:  signal,
		factory: factory,
		logger:  cfg.logger,
	}

	return c, nil
}

// load returns the transport currently serving exports.
func (c *core[T]) load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// State reports the shim's current state.
func (c *core[T]) State() State {
	return State(c.state.Load())
}

// Endpoint returns the path-suffixed endpoint currently being exported to.
func (c *core[T]) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.params.Endpoint
}

// changeEndpoint points the shim at a new destination. The endpoint is
// resolved through settings first, so an invalid endpoint fails fast with no
// state change. A transport construction failure leaves the old transport
// serving and returns (false, nil). The old transport is shut down after the
// swap; a shutdown failure is logged and the swap still counts as successful,
// since the new destination is already live.
func (c *core[T]) changeEndpoint(ctx context.Context, flush Flusher, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	suffixed, err := settings.ChangeSignalEndpoint(c.signal, newEndpoint, authToken)
	if err != nil {
		return false, err
	}

	endpoint := settings.SignalEndpoint(c.signal)

	params := c.snapshotParams()
	params.Endpoint = suffixed
	params.Protocol = endpoint.Protocol
	params.Insecure = !endpoint.TLS
	params.CACert = settings.CACertFor(c.signal)

	if authToken != "" {
		params = params.WithBearerToken(authToken)
	}

	c.state.Store(int32(StateUpdating))
	defer c.state.Store(int32(StateReady))

	next, err := c.factory(ctx, params)
	if err != nil {
		c.logger.Error(ctx, err, "build exporter for new endpoint",
			attribute.String("signal", string(c.signal)),
			attribute.String("endpoint", suffixed))

		return false, nil
	}

	if flush != nil {
		err = flush(ctx)
		if err != nil {
			c.logger.Warn(ctx, "flush before endpoint swap",
				attribute.String("signal", string(c.signal)),
				attribute.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	old := c.current
	c.current = next
	c.params = params
	c.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
	defer cancel()

	err = old.Shutdown(shutdownCtx)
	if err != nil {
		c.logger.Error(shutdownCtx, err, "shutdown previous exporter",
			attribute.String("signal", string(c.signal)))
	}

	c.logger.Info(ctx, "exporter endpoint changed",
		attribute.String("signal", string(c.signal)),
		attribute.String("endpoint", suffixed))

	return true, nil
}

func (c *core[T]) snapshotParams() Params {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.params
}

// shutdown retires the current transport.
func (c *core[T]) shutdown(ctx context.Context) error {
	return c.load().Shutdown(ctx)
}
