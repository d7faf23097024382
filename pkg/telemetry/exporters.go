package telemetry

import (
	"context"
	"strings"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/exporter"
)

// buildParams assembles exporter construction parameters for one signal from
// the resolved settings.
func buildParams(settings *config.Settings, signal config.Signal) exporter.Params {
	endpoint := settings.SignalEndpoint(signal)

	var suffixed, token string

	switch signal {
	case config.SignalLogging:
		suffixed = settings.LoggingEndpoint()
		token = settings.AuthTokenLogging()
	case config.SignalTracing:
		suffixed = settings.TracingEndpoint()
		token = settings.AuthTokenTracing()
	case config.SignalMetrics:
		suffixed = settings.MetricsEndpoint()
		token = settings.AuthTokenMetrics()
	}

	params := exporter.Params{
		Endpoint: suffixed,
		Protocol: endpoint.Protocol,
		Insecure: !endpoint.TLS,
		CACert:   settings.CACertFor(signal),
	}

	return params.WithBearerToken(token)
}

// grpcTarget reduces a full endpoint URL to the host[:port] form the gRPC
// exporters dial.
func grpcTarget(endpoint string) string {
	if idx := strings.Index(endpoint, "://"); idx >= 0 {
		endpoint = endpoint[idx+3:]
	}

	if idx := strings.Index(endpoint, "/"); idx >= 0 {
		endpoint = endpoint[:idx]
	}

	return endpoint
}

func isGRPC(protocol string) bool {
	return protocol == "grpc" || protocol == "grpcs"
}

// temporalitySelector returns the metric temporality policy: everything
// cumulative, or the delta default where up-down counters stay cumulative
// because their value is a level, not a rate.
func temporalitySelector(cumulative bool) sdkmetric.TemporalitySelector {
	if cumulative {
		return func(sdkmetric.InstrumentKind) metricdata.Temporality {
			return metricdata.CumulativeTemporality
		}
	}

	return func(kind sdkmetric.InstrumentKind) metricdata.Temporality {
		switch kind {
		case sdkmetric.InstrumentKindUpDownCounter, sdkmetric.InstrumentKindObservableUpDownCounter:
			return metricdata.CumulativeTemporality
		default:
			return metricdata.DeltaTemporality
		}
	}
}

// newMetricFactory builds the factory the metric shim invokes on every
// endpoint change. Console mode short-circuits to a stdout exporter.
func newMetricFactory(settings *config.Settings) exporter.Factory[sdkmetric.Exporter] {
	selector := temporalitySelector(settings.UseCumulativeMetrics())
	console := settings.ConsoleExporter()

	return func(ctx context.Context, params exporter.Params) (sdkmetric.Exporter, error) {
		if console {
			exp, err := stdoutmetric.New(stdoutmetric.WithTemporalitySelector(selector))
			if err != nil {
				return nil, ewrap.Wrap(err, "create stdout metric exporter")
			}

			return exp, nil
		}

		if isGRPC(params.Protocol) {
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpoint(grpcTarget(params.Endpoint)),
				otlpmetricgrpc.WithTemporalitySelector(selector),
			}

			if params.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			} else {
				creds, err := params.CACert.TransportCredentials()
				if err != nil {
					return nil, err
				}

				opts = append(opts, otlpmetricgrpc.WithTLSCredentials(creds))
			}

			if len(params.Headers) > 0 {
				opts = append(opts, otlpmetricgrpc.WithHeaders(params.Headers))
			}

			exp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, ewrap.Wrap(err, "create grpc metric exporter")
			}

			return exp, nil
		}

		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(params.Endpoint),
			otlpmetrichttp.WithTemporalitySelector(selector),
		}

		if !params.Insecure {
			tlsCfg, err := params.CACert.TLSConfig()
			if err != nil {
				return nil, err
			}

			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(tlsCfg))
		}

		if len(params.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(params.Headers))
		}

		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create http metric exporter")
		}

		return exp, nil
	}
}

// newSpanFactory builds the factory the span shim invokes on every endpoint
// change.
func newSpanFactory(settings *config.Settings) exporter.Factory[sdktrace.SpanExporter] {
	console := settings.ConsoleExporter()

	return func(ctx context.Context, params exporter.Params) (sdktrace.SpanExporter, error) {
		if console {
			exp, err := stdouttrace.New()
			if err != nil {
				return nil, ewrap.Wrap(err, "create stdout span exporter")
			}

			return exp, nil
		}

		if isGRPC(params.Protocol) {
			opts := []otlptracegrpc.Option{
				otlptracegrpc.WithEndpoint(grpcTarget(params.Endpoint)),
			}

			if params.Insecure {
				opts = append(opts, otlptracegrpc.WithInsecure())
			} else {
				creds, err := params.CACert.TransportCredentials()
				if err != nil {
					return nil, err
				}

				opts = append(opts, otlptracegrpc.WithTLSCredentials(creds))
			}

			if len(params.Headers) > 0 {
				opts = append(opts, otlptracegrpc.WithHeaders(params.Headers))
			}

			exp, err := otlptracegrpc.New(ctx, opts...)
			if err != nil {
				return nil, ewrap.Wrap(err, "create grpc span exporter")
			}

			return exp, nil
		}

		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(params.Endpoint),
		}

		if !params.Insecure {
			tlsCfg, err := params.CACert.TLSConfig()
			if err != nil {
				return nil, err
			}

			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsCfg))
		}

		if len(params.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(params.Headers))
		}

		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create http span exporter")
		}

		return exp, nil
	}
}

// newLogFactory builds the factory the log shim invokes on every endpoint
// change.
func newLogFactory(settings *config.Settings) exporter.Factory[sdklog.Exporter] {
	console := settings.ConsoleExporter()

	return func(ctx context.Context, params exporter.Params) (sdklog.Exporter, error) {
		if console {
			exp, err := stdoutlog.New()
			if err != nil {
				return nil, ewrap.Wrap(err, "create stdout log exporter")
			}

			return exp, nil
		}

		if isGRPC(params.Protocol) {
			opts := []otlploggrpc.Option{
				otlploggrpc.WithEndpoint(grpcTarget(params.Endpoint)),
			}

			if params.Insecure {
				opts = append(opts, otlploggrpc.WithInsecure())
			} else {
				creds, err := params.CACert.TransportCredentials()
				if err != nil {
					return nil, err
				}

				opts = append(opts, otlploggrpc.WithTLSCredentials(creds))
			}

			if len(params.Headers) > 0 {
				opts = append(opts, otlploggrpc.WithHeaders(params.Headers))
			}

			exp, err := otlploggrpc.New(ctx, opts...)
			if err != nil {
				return nil, ewrap.Wrap(err, "create grpc log exporter")
			}

			return exp, nil
		}

		opts := []otlploghttp.Option{
			otlploghttp.WithEndpointURL(params.Endpoint),
		}

		if !params.Insecure {
			tlsCfg, err := params.CACert.TLSConfig()
			if err != nil {
				return nil, err
			}

			opts = append(opts, otlploghttp.WithTLSClientConfig(tlsCfg))
		}

		if len(params.Headers) > 0 {
			opts = append(opts, otlploghttp.WithHeaders(params.Headers))
		}

		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create http log exporter")
		}

		return exp, nil
	}
}
