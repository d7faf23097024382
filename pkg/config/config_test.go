package config

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRequiresDefaultEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New("", nil)
	if !errors.Is(err, ErrMissingDefaultEndpoint) {
		t.Fatalf("New with no endpoint: got %v, want ErrMissingDefaultEndpoint", err)
	}
}

func TestNewFromArgument(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com:4318", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := settings.DefaultEndpoint(); got != "https://collector.example.com:4318" {
		t.Errorf("DefaultEndpoint() = %q", got)
	}

	if !settings.TLSDefault() {
		t.Error("TLSDefault() = false, want true")
	}

	if got := settings.RequestProtocolDefault(); got != "https" {
		t.Errorf("RequestProtocolDefault() = %q, want https", got)
	}
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New("ftp://collector.example.com", nil)
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("got %v, want ErrInvalidEndpoint", err)
	}

	_, err = New("https://collector.example.com", map[string]any{
		SettingMetricsEndpoint: "http://example.com:812",
	})
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("bad metrics endpoint: got %v, want ErrInvalidEndpoint", err)
	}
}

func TestEnvOverridesDict(t *testing.T) {
	t.Setenv("ATEL_DEFAULT_ENDPOINT", "  https://env.example.com:4318  ")

	settings, err := New("https://arg.example.com", map[string]any{
		SettingDefaultEndpoint: "https://dict.example.com",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := settings.DefaultEndpoint(); got != "https://env.example.com:4318" {
		t.Errorf("DefaultEndpoint() = %q, want the trimmed env value", got)
	}
}

func TestEnvEndpointIsValidated(t *testing.T) {
	t.Setenv("ATEL_TRACING_ENDPOINT", "http://example.com:70000")

	_, err := New("https://collector.example.com", nil)
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("got %v, want ErrInvalidEndpoint for env endpoint", err)
	}
}

func TestEnvBoolCoercion(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "true", want: true},
		{raw: "YES", want: true},
		{raw: " 1 ", want: true},
		{raw: "On", want: true},
		{raw: "false", want: false},
		{raw: "0", want: false},
		{raw: "enabled", want: false},
	}

	for _, testCase := range tests {
		t.Run(testCase.raw, func(t *testing.T) {
			t.Setenv("ATEL_USE_CONSOLE_EXPORTER", testCase.raw)

			settings, err := New("https://collector.example.com", nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			if got := settings.ConsoleExporter(); got != testCase.want {
				t.Errorf("ConsoleExporter() = %v for %q, want %v", got, testCase.raw, testCase.want)
			}
		})
	}
}

func TestSDKDisabledImpliesSkipInternetCheck(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !settings.SkipInternetCheck() {
		t.Error("SkipInternetCheck() = false, want true when OTEL_SDK_DISABLED is truthy")
	}
}

func TestSkipInternetCheckEnvBeatsSDKDisabled(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")
	t.Setenv("skip_internet_check", "false")
	t.Setenv("ATEL_SKIP_INTERNET_CHECK", "false")

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if settings.SkipInternetCheck() {
		t.Error("SkipInternetCheck() = true, want explicit env override to win")
	}
}

func TestInvalidIntSetting(t *testing.T) {
	t.Setenv("ATEL_METRICS_EXPORT_INTERVAL_MS", "soon")

	_, err := New("https://collector.example.com", nil)
	if !errors.Is(err, ErrInvalidConfigValue) {
		t.Fatalf("got %v, want ErrInvalidConfigValue", err)
	}
}

func TestIntCoercion(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", map[string]any{
		// YAML decoders can produce float64 for numeric scalars.
		SettingMetricsExportInterval: float64(15000),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := settings.MetricsExportInterval(); got != 15000 {
		t.Errorf("MetricsExportInterval() = %d, want 15000", got)
	}
}

func TestSignalEndpointFallback(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", map[string]any{
		SettingMetricsEndpoint: "grpc://metrics.example.com:4317",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := settings.MetricsEndpoint(); got != "grpc://metrics.example.com:4317/v1/metrics" {
		t.Errorf("MetricsEndpoint() = %q", got)
	}

	if got := settings.TracingEndpoint(); got != "https://collector.example.com/v1/traces" {
		t.Errorf("TracingEndpoint() = %q, want default endpoint with traces path", got)
	}

	if got := settings.LoggingEndpoint(); got != "https://collector.example.com/v1/logs" {
		t.Errorf("LoggingEndpoint() = %q, want default endpoint with logs path", got)
	}

	if got := settings.RequestProtocolMetrics(); got != "grpc" {
		t.Errorf("RequestProtocolMetrics() = %q, want grpc", got)
	}

	if settings.TLSMetrics() {
		t.Error("TLSMetrics() = true, want false for grpc endpoint")
	}

	if !settings.TLSTracing() {
		t.Error("TLSTracing() = false, want fallback to TLS default endpoint")
	}
}

func TestPathSuffixIdempotent(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", map[string]any{
		SettingLoggingEndpoint: "https://logs.example.com/v1/logs",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := settings.LoggingEndpoint(); got != "https://logs.example.com/v1/logs" {
		t.Errorf("LoggingEndpoint() = %q, suffix must not double up", got)
	}
}

func TestAuthTokenFallback(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	settings.SetAuthToken("default-token").SetAuthTokenMetrics("metrics-token")

	if got := settings.AuthTokenMetrics(); got != "metrics-token" {
		t.Errorf("AuthTokenMetrics() = %q", got)
	}

	if got := settings.AuthTokenTracing(); got != "default-token" {
		t.Errorf("AuthTokenTracing() = %q, want fallback to default token", got)
	}
}

func TestSoftSettersIgnoreBadInput(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	settings.SetLoggingLevel("debug").SetLoggingLevel("loud")
	if got := settings.LoggingLevel(); got != "debug" {
		t.Errorf("LoggingLevel() = %q, bad level must be ignored", got)
	}

	settings.SetMetricsExportInterval(5000).SetMetricsExportInterval(0).SetMetricsExportInterval(-7)
	if got := settings.MetricsExportInterval(); got != 5000 {
		t.Errorf("MetricsExportInterval() = %d, non-positive values must be ignored", got)
	}
}

func TestHardEndpointSetters(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = settings.SetMetricsEndpoint("grpcs://metrics.example.com:4317",
		WithAuthToken("swap-token"), WithCACertFile("/etc/ssl/private-ca.pem"))
	if err != nil {
		t.Fatalf("SetMetricsEndpoint: %v", err)
	}

	if got := settings.MetricsEndpoint(); got != "grpcs://metrics.example.com:4317/v1/metrics" {
		t.Errorf("MetricsEndpoint() = %q", got)
	}

	if got := settings.AuthTokenMetrics(); got != "swap-token" {
		t.Errorf("AuthTokenMetrics() = %q", got)
	}

	if got := settings.CACertMetrics().CertFile; got != "/etc/ssl/private-ca.pem" {
		t.Errorf("CACertMetrics().CertFile = %q", got)
	}

	_, err = settings.SetMetricsEndpoint("nope")
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("invalid endpoint: got %v, want ErrInvalidEndpoint", err)
	}

	if got := settings.MetricsEndpoint(); got != "grpcs://metrics.example.com:4317/v1/metrics" {
		t.Errorf("MetricsEndpoint() = %q after failed set, prior state must survive", got)
	}
}

func TestChangeSignalEndpoint(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	suffixed, err := settings.ChangeSignalEndpoint(SignalMetrics, "https://next.example.com:4318", "next-token")
	if err != nil {
		t.Fatalf("ChangeSignalEndpoint: %v", err)
	}

	if suffixed != "https://next.example.com:4318/v1/metrics" {
		t.Errorf("suffixed endpoint = %q", suffixed)
	}

	if got := settings.AuthTokenMetrics(); got != "next-token" {
		t.Errorf("AuthTokenMetrics() = %q", got)
	}

	_, err = settings.ChangeSignalEndpoint(SignalMetrics, "http://1.2.3.4.5", "")
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("got %v, want ErrInvalidEndpoint", err)
	}

	if got := settings.MetricsEndpoint(); got != "https://next.example.com:4318/v1/metrics" {
		t.Errorf("MetricsEndpoint() = %q after failed change, prior state must survive", got)
	}

	_, err = settings.ChangeSignalEndpoint(Signal("profiles"), "https://next.example.com", "")
	if !errors.Is(err, ErrInvalidConfigValue) {
		t.Fatalf("unknown signal: got %v, want ErrInvalidConfigValue", err)
	}
}

func TestSessionEntropyCached(t *testing.T) {
	t.Parallel()

	settings, err := New("https://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := settings.TracingSessionEntropy()
	second := settings.TracingSessionEntropy()

	if first == nil || first != second {
		t.Errorf("TracingSessionEntropy() not cached: %v vs %v", first, second)
	}

	settings.SetTracingSessionEntropy("fixed")
	if got := settings.TracingSessionEntropy(); got != "fixed" {
		t.Errorf("TracingSessionEntropy() = %v, want explicit value", got)
	}
}

func TestCACertFallback(t *testing.T) {
	t.Parallel()

	settings, err := New("grpcs://collector.example.com", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	settings.SetTLSPrivateCACert("/etc/ssl/default-ca.pem")

	cert := settings.CACertTracing()
	if cert.CertFile != "/etc/ssl/default-ca.pem" {
		t.Errorf("CACertTracing().CertFile = %q, want default fallback", cert.CertFile)
	}

	if !cert.TLS {
		t.Error("CACertTracing().TLS = false, want true for grpcs endpoint")
	}
}

func TestTransportCredentials(t *testing.T) {
	t.Parallel()

	plain := CACert{TLS: false}

	creds, err := plain.TransportCredentials()
	if err != nil || creds != nil {
		t.Errorf("plaintext credentials = (%v, %v), want (nil, nil)", creds, err)
	}

	system := CACert{TLS: true}

	creds, err = system.TransportCredentials()
	if err != nil {
		t.Fatalf("system trust store credentials: %v", err)
	}

	if creds == nil {
		t.Fatal("system trust store credentials = nil")
	}

	missing := CACert{TLS: true, CertFile: "/nonexistent/ca.pem"}

	_, err = missing.TransportCredentials()
	if err == nil || !strings.Contains(err.Error(), "read ca file") {
		t.Errorf("missing cert file: got %v, want read error", err)
	}
}
