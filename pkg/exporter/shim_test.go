package exporter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hyp3rd/ewrap"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hyp3rd/telemetry/pkg/config"
)

type stubMetricExporter struct {
	id          string
	exportCount atomic.Int64
	flushCount  atomic.Int64
	shutdown    atomic.Bool
	shutdownErr error
}

func (*stubMetricExporter) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.DeltaTemporality
}

func (*stubMetricExporter) Aggregation(sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.AggregationDefault{}
}

func (s *stubMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	s.exportCount.Add(1)

	return nil
}

func (s *stubMetricExporter) ForceFlush(context.Context) error {
	s.flushCount.Add(1)

	return nil
}

func (s *stubMetricExporter) Shutdown(context.Context) error {
	s.shutdown.Store(true)

	return s.shutdownErr
}

func newTestSettings(t *testing.T) *config.Settings {
	t.Helper()

	settings, err := config.New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}

	return settings
}

func stubFactory(exporters ...*stubMetricExporter) (Factory[sdkmetric.Exporter], *atomic.Int32) {
	calls := &atomic.Int32{}

	return func(_ context.Context, _ Params) (sdkmetric.Exporter, error) {
		idx := int(calls.Add(1)) - 1
		if idx >= len(exporters) {
			return nil, ewrap.New("factory exhausted")
		}

		return exporters[idx], nil
	}, calls
}

func TestMetricShimDelegates(t *testing.T) {
	t.Parallel()

	inner := &stubMetricExporter{id: "first"}
	factory, _ := stubFactory(inner)

	shim, err := NewMetricShim(context.Background(), factory, Params{Endpoint: "https://collector.example.com/v1/metrics"})
	if err != nil {
		t.Fatalf("NewMetricShim: %v", err)
	}

	if err := shim.Export(context.Background(), &metricdata.ResourceMetrics{}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if inner.exportCount.Load() != 1 {
		t.Errorf("export count = %d, want 1", inner.exportCount.Load())
	}

	if got := shim.Temporality(sdkmetric.InstrumentKindCounter); got != metricdata.DeltaTemporality {
		t.Errorf("Temporality = %v, want delta passthrough", got)
	}

	if shim.State() != StateReady {
		t.Errorf("State = %v, want READY", shim.State())
	}
}

func TestChangeEndpointSwapsTransport(t *testing.T) {
	t.Parallel()

	first := &stubMetricExporter{id: "first"}
	second := &stubMetricExporter{id: "second"}
	factory, calls := stubFactory(first, second)

	shim, err := NewMetricShim(context.Background(), factory, Params{Endpoint: "https://collector.example.com/v1/metrics"})
	if err != nil {
		t.Fatalf("NewMetricShim: %v", err)
	}

	settings := newTestSettings(t)
	flushed := atomic.Bool{}

	ok, err := shim.ChangeEndpoint(context.Background(), func(context.Context) error {
		flushed.Store(true)

		return nil
	}, settings, "https://next.example.com:4318", "next-token")
	if err != nil || !ok {
		t.Fatalf("ChangeEndpoint = (%v, %v), want (true, nil)", ok, err)
	}

	if calls.Load() != 2 {
		t.Errorf("factory calls = %d, want 2", calls.Load())
	}

	if !flushed.Load() {
		t.Error("flush hook was not invoked")
	}

	if !first.shutdown.Load() {
		t.Error("old exporter was not shut down")
	}

	if err := shim.Export(context.Background(), &metricdata.ResourceMetrics{}); err != nil {
		t.Fatalf("Export after swap: %v", err)
	}

	if second.exportCount.Load() != 1 {
		t.Errorf("new exporter export count = %d, want 1", second.exportCount.Load())
	}

	if got := shim.Endpoint(); got != "https://next.example.com:4318/v1/metrics" {
		t.Errorf("Endpoint() = %q", got)
	}

	if got := settings.AuthTokenMetrics(); got != "next-token" {
		t.Errorf("settings token = %q, want swap to update it", got)
	}

	if shim.State() != StateReady {
		t.Errorf("State = %v after swap, want READY", shim.State())
	}
}

func TestChangeEndpointInvalidEndpoint(t *testing.T) {
	t.Parallel()

	first := &stubMetricExporter{id: "first"}
	factory, calls := stubFactory(first)

	shim, err := NewMetricShim(context.Background(), factory, Params{Endpoint: "https://collector.example.com/v1/metrics"})
	if err != nil {
		t.Fatalf("NewMetricShim: %v", err)
	}

	settings := newTestSettings(t)

	ok, err := shim.ChangeEndpoint(context.Background(), nil, settings, "ftp://bad.example.com", "")
	if ok || !errors.Is(err, config.ErrInvalidEndpoint) {
		t.Fatalf("ChangeEndpoint = (%v, %v), want (false, ErrInvalidEndpoint)", ok, err)
	}

	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, invalid endpoint must not trigger a build", calls.Load())
	}

	if first.shutdown.Load() {
		t.Error("old exporter must keep serving after a rejected endpoint")
	}
}

func TestChangeEndpointConstructionFailure(t *testing.T) {
	t.Parallel()

	first := &stubMetricExporter{id: "first"}
	// Single exporter: the second factory call fails.
	factory, _ := stubFactory(first)

	shim, err := NewMetricShim(context.Background(), factory, Params{Endpoint: "https://collector.example.com/v1/metrics"})
	if err != nil {
		t.Fatalf("NewMetricShim: %v", err)
	}

	settings := newTestSettings(t)

	ok, err := shim.ChangeEndpoint(context.Background(), nil, settings, "https://next.example.com", "")
	if ok || err != nil {
		t.Fatalf("ChangeEndpoint = (%v, %v), want (false, nil) on construction failure", ok, err)
	}

	if shim.State() != StateReady {
		t.Errorf("State = %v, want READY restored after failed build", shim.State())
	}

	if first.shutdown.Load() {
		t.Error("old exporter must survive a failed build")
	}

	if err := shim.Export(context.Background(), &metricdata.ResourceMetrics{}); err != nil {
		t.Fatalf("Export after failed swap: %v", err)
	}

	if first.exportCount.Load() != 1 {
		t.Errorf("old exporter export count = %d, want it still serving", first.exportCount.Load())
	}
}

func TestChangeEndpointShutdownFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	first := &stubMetricExporter{id: "first", shutdownErr: ewrap.New("shutdown boom")}
	second := &stubMetricExporter{id: "second"}
	factory, _ := stubFactory(first, second)

	shim, err := NewMetricShim(context.Background(), factory, Params{Endpoint: "https://collector.example.com/v1/metrics"})
	if err != nil {
		t.Fatalf("NewMetricShim: %v", err)
	}

	settings := newTestSettings(t)

	ok, err := shim.ChangeEndpoint(context.Background(), nil, settings, "https://next.example.com", "")
	if !ok || err != nil {
		t.Fatalf("ChangeEndpoint = (%v, %v), want swap success despite shutdown failure", ok, err)
	}

	if err := shim.Export(context.Background(), &metricdata.ResourceMetrics{}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if second.exportCount.Load() != 1 {
		t.Errorf("new exporter export count = %d, want 1", second.exportCount.Load())
	}
}

func TestConcurrentExportsDuringSwap(t *testing.T) {
	t.Parallel()

	first := &stubMetricExporter{id: "first"}
	second := &stubMetricExporter{id: "second"}
	factory, _ := stubFactory(first, second)

	shim, err := NewMetricShim(context.Background(), factory, Params{Endpoint: "https://collector.example.com/v1/metrics"})
	if err != nil {
		t.Fatalf("NewMetricShim: %v", err)
	}

	settings := newTestSettings(t)

	const exporters = 8

	var wg sync.WaitGroup

	stop := atomic.Bool{}

	for range exporters {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for !stop.Load() {
				err := shim.Export(context.Background(), &metricdata.ResourceMetrics{})
				if err != nil {
					t.Errorf("Export during swap: %v", err)

					return
				}
			}
		}()
	}

	ok, err := shim.ChangeEndpoint(context.Background(), nil, settings, "https://next.example.com", "")

	stop.Store(true)
	wg.Wait()

	if !ok || err != nil {
		t.Fatalf("ChangeEndpoint = (%v, %v)", ok, err)
	}

	total := first.exportCount.Load() + second.exportCount.Load()
	if total == 0 {
		t.Error("no exports were served during the swap")
	}
}

func TestParamsWithBearerToken(t *testing.T) {
	t.Parallel()

	base := Params{Headers: map[string]string{"x-team": "telemetry"}}

	withToken := base.WithBearerToken("secret")
	if withToken.Headers["authorization"] != "Bearer secret" {
		t.Errorf("authorization header = %q", withToken.Headers["authorization"])
	}

	if _, ok := base.Headers["authorization"]; ok {
		t.Error("WithBearerToken must not mutate the receiver")
	}

	if withToken.Headers["x-team"] != "telemetry" {
		t.Error("existing headers must be preserved")
	}
}
