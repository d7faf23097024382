// Package config resolves per-signal telemetry settings: endpoint parsing and
// validation, layering of constructor arguments, config dictionaries, and
// environment variables, and per-signal fallbacks onto the default values.
//
// A Settings instance is not safe for concurrent mutation. Callers sharing one
// across goroutines must serialize Set* and ChangeSignalEndpoint calls
// themselves; read-only getters after construction are safe.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
)

// EnvPrefix is prepended to the uppercased setting name to form the
// environment variable that overrides it, e.g. default_endpoint becomes
// ATEL_DEFAULT_ENDPOINT.
const EnvPrefix = "ATEL_"

// sdkDisabledEnvName is checked without the prefix: when truthy it implies an
// offline run, so the connectivity probe is skipped unless the caller said
// otherwise through the unprefixed skip_internet_check variable.
const sdkDisabledEnvName = "OTEL_SDK_DISABLED"

// Setting names recognized in config dictionaries, files, and environment
// variables.
const (
	SettingDefaultEndpoint       = "default_endpoint"
	SettingLoggingEndpoint       = "logging_endpoint"
	SettingTracingEndpoint       = "tracing_endpoint"
	SettingMetricsEndpoint       = "metrics_endpoint"
	SettingUseConsoleExporter    = "use_console_exporter"
	SettingDefaultAuthToken      = "default_auth_token"
	SettingLoggingAuthToken      = "logging_auth_token"
	SettingTracingAuthToken      = "tracing_auth_token"
	SettingMetricsAuthToken      = "metrics_auth_token"
	SettingMetricsExportInterval = "metrics_export_interval_ms"
	SettingLoggingLevel          = "logging_level"
	SettingSessionEntropy        = "session_entropy_value"
	SettingDefaultCACert         = "default_credentials"
	SettingLoggingCACert         = "logging_credentials"
	SettingTracingCACert         = "tracing_credentials"
	SettingMetricsCACert         = "metrics_credentials"
	SettingSkipInternetCheck     = "skip_internet_check"
	SettingUseCumulativeMetrics  = "use_cumulative_metrics"
)

// DefaultMetricsExportInterval is the metric export interval in milliseconds
// applied when the setting is absent.
const DefaultMetricsExportInterval = 60_000

// DefaultLoggingLevel is applied when no logging level was configured.
const DefaultLoggingLevel = "warning"

// Signal identifies one of the three telemetry signals, each with an
// independently configurable endpoint, auth token, and CA certificate.
type Signal string

// The three supported signals.
const (
	SignalLogging Signal = "logging"
	SignalTracing Signal = "tracing"
	SignalMetrics Signal = "metrics"
)

var settingNames = []string{
	SettingDefaultEndpoint,
	SettingLoggingEndpoint,
	SettingTracingEndpoint,
	SettingMetricsEndpoint,
	SettingUseConsoleExporter,
	SettingDefaultAuthToken,
	SettingLoggingAuthToken,
	SettingTracingAuthToken,
	SettingMetricsAuthToken,
	SettingMetricsExportInterval,
	SettingLoggingLevel,
	SettingSessionEntropy,
	SettingDefaultCACert,
	SettingLoggingCACert,
	SettingTracingCACert,
	SettingMetricsCACert,
	SettingSkipInternetCheck,
	SettingUseCumulativeMetrics,
}

var endpointSettings = []string{
	SettingDefaultEndpoint,
	SettingLoggingEndpoint,
	SettingTracingEndpoint,
	SettingMetricsEndpoint,
}

var boolSettings = []string{
	SettingUseConsoleExporter,
	SettingSkipInternetCheck,
	SettingUseCumulativeMetrics,
}

var intSettings = []string{
	SettingMetricsExportInterval,
}

var allowedLoggingLevels = []string{
	"debug", "info", "warn", "warning", "error", "fatal", "critical",
}

// Settings holds the resolved configuration for one telemetry session: a flat
// setting map plus the parsed endpoint model per signal.
type Settings struct {
	values    map[string]any
	endpoints map[string]Endpoint
}

// New builds a Settings instance from an optional default endpoint, an
// optional config dictionary, and the environment. Environment variables
// (EnvPrefix + uppercased setting name) always override programmatic values
// and are merged before endpoints are parsed, so an environment-supplied
// endpoint is the one that gets validated.
//
// New fails with ErrMissingDefaultEndpoint when no default endpoint is
// resolvable, with ErrInvalidEndpoint when any configured endpoint violates
// the grammar, and with ErrInvalidConfigValue when an integer setting holds a
// non-numeric string.
func New(defaultEndpoint string, dict map[string]any) (*Settings, error) {
	settings := &Settings{
		values:    make(map[string]any, len(dict)),
		endpoints: make(map[string]Endpoint, len(endpointSettings)),
	}

	for key, value := range dict {
		settings.values[key] = value
	}

	if defaultEndpoint != "" {
		settings.values[SettingDefaultEndpoint] = defaultEndpoint
	}

	for _, name := range settingNames {
		env, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(name))
		if ok {
			settings.values[name] = strings.TrimSpace(env)
		}
	}

	if _, ok := settings.values[SettingDefaultEndpoint]; !ok {
		return nil, ErrMissingDefaultEndpoint
	}

	for _, name := range endpointSettings {
		raw, ok := settings.values[name]
		if !ok {
			continue
		}

		str, ok := raw.(string)
		if !ok {
			return nil, ewrap.Wrapf(ErrInvalidConfigValue, "setting %q must be a string", name)
		}

		endpoint, err := ParseEndpoint(str)
		if err != nil {
			return nil, err
		}

		settings.endpoints[name] = endpoint
		settings.values[name] = endpoint.URL
	}

	for _, name := range boolSettings {
		if str, ok := settings.values[name].(string); ok {
			settings.values[name] = isTruthy(str)
		}
	}

	if isTruthy(os.Getenv(sdkDisabledEnvName)) {
		if _, ok := os.LookupEnv(SettingSkipInternetCheck); !ok {
			settings.values[SettingSkipInternetCheck] = true
		}
	}

	for _, name := range intSettings {
		switch value := settings.values[name].(type) {
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, ewrap.Wrapf(ErrInvalidConfigValue, "invalid value for %q: %s", name, value)
			}

			settings.values[name] = parsed
		case float64:
			// JSON and YAML decoders hand integers over as float64.
			settings.values[name] = int(value)
		}
	}

	return settings, nil
}

// isTruthy reports whether a string setting holds an accepted truthy token.
func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "on":
		return true
	default:
		return false
	}
}

// EndpointOption customizes a per-signal endpoint update with auxiliary
// credentials.
type EndpointOption func(*endpointUpdate)

type endpointUpdate struct {
	authToken string
	hasToken  bool
	caCert    string
	hasCACert bool
}

// WithAuthToken attaches a bearer auth token to the endpoint being set.
func WithAuthToken(token string) EndpointOption {
	return func(update *endpointUpdate) {
		update.authToken = token
		update.hasToken = true
	}
}

// WithCACertFile attaches a private CA certificate file to the endpoint being
// set.
func WithCACertFile(path string) EndpointOption {
	return func(update *endpointUpdate) {
		update.caCert = path
		update.hasCACert = true
	}
}

// SetLoggingEndpoint replaces the logging endpoint, re-validating it against
// the endpoint grammar. A non-nil error wraps ErrInvalidEndpoint and leaves
// the prior state untouched.
func (s *Settings) SetLoggingEndpoint(endpoint string, opts ...EndpointOption) (*Settings, error) {
	return s.setSignalEndpoint(SignalLogging, endpoint, opts...)
}

// SetTracingEndpoint replaces the tracing endpoint. See SetLoggingEndpoint.
func (s *Settings) SetTracingEndpoint(endpoint string, opts ...EndpointOption) (*Settings, error) {
	return s.setSignalEndpoint(SignalTracing, endpoint, opts...)
}

// SetMetricsEndpoint replaces the metrics endpoint. See SetLoggingEndpoint.
func (s *Settings) SetMetricsEndpoint(endpoint string, opts ...EndpointOption) (*Settings, error) {
	return s.setSignalEndpoint(SignalMetrics, endpoint, opts...)
}

func (s *Settings) setSignalEndpoint(signal Signal, endpoint string, opts ...EndpointOption) (*Settings, error) {
	update := endpointUpdate{}
	for _, opt := range opts {
		opt(&update)
	}

	parsed, err := ParseEndpoint(endpoint)
	if err != nil {
		return s, err
	}

	name := endpointSettingName(signal)
	s.endpoints[name] = parsed
	s.values[name] = parsed.URL

	if update.hasToken {
		s.values[authTokenSettingName(signal)] = update.authToken
	}

	if update.hasCACert {
		s.values[caCertSettingName(signal)] = update.caCert
	}

	return s, nil
}

// SetConsoleExporter toggles console exporters for all signals. Intended for
// local debugging, not production.
func (s *Settings) SetConsoleExporter(useConsole bool) *Settings {
	s.values[SettingUseConsoleExporter] = useConsole

	return s
}

// SetAuthToken sets the default bearer auth token, the fallback for every
// signal lacking its own token.
func (s *Settings) SetAuthToken(token string) *Settings {
	s.values[SettingDefaultAuthToken] = token

	return s
}

// SetAuthTokenLogging sets the auth token used only by the logging signal.
func (s *Settings) SetAuthTokenLogging(token string) *Settings {
	s.values[SettingLoggingAuthToken] = token

	return s
}

// SetAuthTokenTracing sets the auth token used only by the tracing signal.
func (s *Settings) SetAuthTokenTracing(token string) *Settings {
	s.values[SettingTracingAuthToken] = token

	return s
}

// SetAuthTokenMetrics sets the auth token used only by the metrics signal.
func (s *Settings) SetAuthTokenMetrics(token string) *Settings {
	s.values[SettingMetricsAuthToken] = token

	return s
}

// SetTLSPrivateCACert sets the default private CA certificate file used to
// verify the collector's certificate. An empty path clears it.
func (s *Settings) SetTLSPrivateCACert(certFile string) *Settings {
	s.values[SettingDefaultCACert] = certFile

	return s
}

// SetTLSPrivateCACertLogging sets the CA certificate file for the logging
// signal only.
func (s *Settings) SetTLSPrivateCACertLogging(certFile string) *Settings {
	s.values[SettingLoggingCACert] = certFile

	return s
}

// SetTLSPrivateCACertTracing sets the CA certificate file for the tracing
// signal only.
func (s *Settings) SetTLSPrivateCACertTracing(certFile string) *Settings {
	s.values[SettingTracingCACert] = certFile

	return s
}

// SetTLSPrivateCACertMetrics sets the CA certificate file for the metrics
// signal only.
func (s *Settings) SetTLSPrivateCACertMetrics(certFile string) *Settings {
	s.values[SettingMetricsCACert] = certFile

	return s
}

// SetLoggingLevel sets the level gate for telemetry logging. Accepted values
// are debug, info, warn, warning, error, fatal, and critical; anything else
// is silently ignored and the previous value stands.
func (s *Settings) SetLoggingLevel(level string) *Settings {
	for _, allowed := range allowedLoggingLevels {
		if level == allowed {
			s.values[SettingLoggingLevel] = level

			return s
		}
	}

	return s
}

// SetMetricsExportInterval sets the metric export interval in milliseconds.
// Zero and negative intervals are silently ignored and the previous value
// stands.
func (s *Settings) SetMetricsExportInterval(intervalMS int) *Settings {
	if intervalMS <= 0 {
		return s
	}

	s.values[SettingMetricsExportInterval] = intervalMS

	return s
}

// SetTracingSessionEntropy sets the entropy value mixed into the session id
// hash so concurrent sessions of one service stay distinguishable.
func (s *Settings) SetTracingSessionEntropy(entropy any) *Settings {
	s.values[SettingSessionEntropy] = entropy

	return s
}

// SetSkipInternetCheck toggles the pre-init connectivity probe, for
// environments with no outbound network access.
func (s *Settings) SetSkipInternetCheck(skip bool) *Settings {
	s.values[SettingSkipInternetCheck] = skip

	return s
}

// SetUseCumulativeMetrics switches metric temporality from delta to
// cumulative.
func (s *Settings) SetUseCumulativeMetrics(cumulative bool) *Settings {
	s.values[SettingUseCumulativeMetrics] = cumulative

	return s
}

// ChangeSignalEndpoint re-parses and stores a new endpoint, and optionally a
// new auth token, for the named signal, returning the path-suffixed endpoint.
// This is the entry point exporter shims call during a hot swap. On a parse
// failure the prior state is left untouched.
func (s *Settings) ChangeSignalEndpoint(signal Signal, newEndpoint, authToken string) (string, error) {
	name := endpointSettingName(signal)
	if name == "" {
		return "", ewrap.Wrapf(ErrInvalidConfigValue, "unknown signal %q", signal)
	}

	parsed, err := ParseEndpoint(newEndpoint)
	if err != nil {
		return "", err
	}

	s.endpoints[name] = parsed
	s.values[name] = parsed.URL

	if authToken != "" {
		s.values[authTokenSettingName(signal)] = authToken
	}

	return appendSignalPath(parsed.URL, signalPathSegment(signal)), nil
}

// DefaultEndpoint returns the normalized default endpoint URL.
func (s *Settings) DefaultEndpoint() string {
	return s.stringValue(SettingDefaultEndpoint, "")
}

// LoggingEndpoint returns the logging endpoint, falling back to the default
// endpoint, with the v1/logs path segment appended when absent.
func (s *Settings) LoggingEndpoint() string {
	return appendSignalPath(s.stringValue(SettingLoggingEndpoint, s.DefaultEndpoint()), "v1/logs")
}

// TracingEndpoint returns the tracing endpoint, falling back to the default
// endpoint, with the v1/traces path segment appended when absent.
func (s *Settings) TracingEndpoint() string {
	return appendSignalPath(s.stringValue(SettingTracingEndpoint, s.DefaultEndpoint()), "v1/traces")
}

// MetricsEndpoint returns the metrics endpoint, falling back to the default
// endpoint, with the v1/metrics path segment appended when absent.
func (s *Settings) MetricsEndpoint() string {
	return appendSignalPath(s.stringValue(SettingMetricsEndpoint, s.DefaultEndpoint()), "v1/metrics")
}

// SignalEndpoint returns the resolved endpoint model for a signal, falling
// back to the default endpoint's model.
func (s *Settings) SignalEndpoint(signal Signal) Endpoint {
	return s.endpointModel(endpointSettingName(signal))
}

// DefaultEndpointModel returns the parsed default endpoint, used by the
// reachability probe.
func (s *Settings) DefaultEndpointModel() Endpoint {
	return s.endpoints[SettingDefaultEndpoint]
}

// AuthTokenDefault returns the default auth token, or "" when unset.
func (s *Settings) AuthTokenDefault() string {
	return s.stringValue(SettingDefaultAuthToken, "")
}

// AuthTokenLogging returns the logging auth token, falling back to the
// default token.
func (s *Settings) AuthTokenLogging() string {
	return s.stringValue(SettingLoggingAuthToken, s.AuthTokenDefault())
}

// AuthTokenTracing returns the tracing auth token, falling back to the
// default token.
func (s *Settings) AuthTokenTracing() string {
	return s.stringValue(SettingTracingAuthToken, s.AuthTokenDefault())
}

// AuthTokenMetrics returns the metrics auth token, falling back to the
// default token.
func (s *Settings) AuthTokenMetrics() string {
	return s.stringValue(SettingMetricsAuthToken, s.AuthTokenDefault())
}

// TLSDefault reports whether the default endpoint uses TLS.
func (s *Settings) TLSDefault() bool {
	return s.endpoints[SettingDefaultEndpoint].TLS
}

// TLSLogging reports whether the logging endpoint uses TLS, falling back to
// the default endpoint.
func (s *Settings) TLSLogging() bool {
	return s.endpointModel(SettingLoggingEndpoint).TLS
}

// TLSTracing reports whether the tracing endpoint uses TLS, falling back to
// the default endpoint.
func (s *Settings) TLSTracing() bool {
	return s.endpointModel(SettingTracingEndpoint).TLS
}

// TLSMetrics reports whether the metrics endpoint uses TLS, falling back to
// the default endpoint.
func (s *Settings) TLSMetrics() bool {
	return s.endpointModel(SettingMetricsEndpoint).TLS
}

// RequestProtocolDefault returns the default endpoint's protocol.
func (s *Settings) RequestProtocolDefault() string {
	return s.endpoints[SettingDefaultEndpoint].Protocol
}

// RequestProtocolLogging returns the logging endpoint's protocol, falling
// back to the default endpoint's.
func (s *Settings) RequestProtocolLogging() string {
	return s.endpointModel(SettingLoggingEndpoint).Protocol
}

// RequestProtocolTracing returns the tracing endpoint's protocol, falling
// back to the default endpoint's.
func (s *Settings) RequestProtocolTracing() string {
	return s.endpointModel(SettingTracingEndpoint).Protocol
}

// RequestProtocolMetrics returns the metrics endpoint's protocol, falling
// back to the default endpoint's.
func (s *Settings) RequestProtocolMetrics() string {
	return s.endpointModel(SettingMetricsEndpoint).Protocol
}

// MetricsExportInterval returns the metric export interval in milliseconds,
// defaulting to DefaultMetricsExportInterval.
func (s *Settings) MetricsExportInterval() int {
	return s.intValue(SettingMetricsExportInterval, DefaultMetricsExportInterval)
}

// LoggingLevel returns the configured logging level, defaulting to
// DefaultLoggingLevel.
func (s *Settings) LoggingLevel() string {
	return s.stringValue(SettingLoggingLevel, DefaultLoggingLevel)
}

// TracingSessionEntropy returns the session entropy, lazily generating and
// caching a high-resolution timestamp on first read.
func (s *Settings) TracingSessionEntropy() any {
	entropy, ok := s.values[SettingSessionEntropy]
	if !ok || entropy == nil {
		entropy = time.Now().UnixNano()
		s.values[SettingSessionEntropy] = entropy
	}

	return entropy
}

// SkipInternetCheck reports whether the pre-init connectivity probe is
// disabled.
func (s *Settings) SkipInternetCheck() bool {
	return s.boolValue(SettingSkipInternetCheck)
}

// ConsoleExporter reports whether console exporters replace OTLP transports.
func (s *Settings) ConsoleExporter() bool {
	return s.boolValue(SettingUseConsoleExporter)
}

// UseCumulativeMetrics reports whether metric temporality is cumulative
// rather than delta.
func (s *Settings) UseCumulativeMetrics() bool {
	return s.boolValue(SettingUseCumulativeMetrics)
}

func (s *Settings) endpointModel(name string) Endpoint {
	if endpoint, ok := s.endpoints[name]; ok {
		return endpoint
	}

	return s.endpoints[SettingDefaultEndpoint]
}

func (s *Settings) stringValue(name, fallback string) string {
	if value, ok := s.values[name].(string); ok {
		return value
	}

	return fallback
}

func (s *Settings) intValue(name string, fallback int) int {
	if value, ok := s.values[name].(int); ok {
		return value
	}

	return fallback
}

func (s *Settings) boolValue(name string) bool {
	value, ok := s.values[name].(bool)

	return ok && value
}

// appendSignalPath suffixes the fixed per-signal path segment unless the
// endpoint already ends with it.
func appendSignalPath(endpoint, segment string) string {
	if endpoint == "" || strings.HasSuffix(endpoint, segment) {
		return endpoint
	}

	if strings.HasSuffix(endpoint, "/") {
		return endpoint + segment
	}

	return endpoint + "/" + segment
}

func signalPathSegment(signal Signal) string {
	switch signal {
	case SignalLogging:
		return "v1/logs"
	case SignalTracing:
		return "v1/traces"
	case SignalMetrics:
		return "v1/metrics"
	default:
		return ""
	}
}

func endpointSettingName(signal Signal) string {
	switch signal {
	case SignalLogging:
		return SettingLoggingEndpoint
	case SignalTracing:
		return SettingTracingEndpoint
	case SignalMetrics:
		return SettingMetricsEndpoint
	default:
		return ""
	}
}

func authTokenSettingName(signal Signal) string {
	switch signal {
	case SignalLogging:
		return SettingLoggingAuthToken
	case SignalTracing:
		return SettingTracingAuthToken
	case SignalMetrics:
		return SettingMetricsAuthToken
	default:
		return ""
	}
}

func caCertSettingName(signal Signal) string {
	switch signal {
	case SignalLogging:
		return SettingLoggingCACert
	case SignalTracing:
		return SettingTracingCACert
	case SignalMetrics:
		return SettingMetricsCACert
	default:
		return ""
	}
}
