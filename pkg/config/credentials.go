package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/hyp3rd/ewrap"
	"google.golang.org/grpc/credentials"
)

// CACert carries the TLS verification material for one signal's endpoint.
// HTTP exporters consume the tls.Config from TLSConfig; gRPC exporters wrap
// the same config through TransportCredentials.
type CACert struct {
	// CertFile is the private CA certificate file path, or "" when the
	// system trust store should be used.
	CertFile string
	// TLS mirrors the owning endpoint's TLS flag. When false, gRPC dials
	// use insecure transport and TransportCredentials returns nil.
	TLS bool
}

// TLSConfig builds the client TLS configuration for the endpoint: nil for
// plaintext endpoints, the system trust store when no CA file was configured,
// and a pool holding the private CA otherwise. The config is rebuilt on every
// call so a rotated certificate file is picked up by the next exporter
// construction.
func (c CACert) TLSConfig() (*tls.Config, error) {
	if !c.TLS {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.CertFile == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(c.CertFile)
	if err != nil {
		return nil, ewrap.Wrapf(err, "read ca file %s", c.CertFile)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, ewrap.Newf("failed to parse ca file %s", c.CertFile)
	}

	cfg.RootCAs = pool

	return cfg, nil
}

// TransportCredentials builds gRPC transport credentials from TLSConfig,
// returning nil for plaintext endpoints.
func (c CACert) TransportCredentials() (credentials.TransportCredentials, error) {
	cfg, err := c.TLSConfig()
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		return nil, nil
	}

	return credentials.NewTLS(cfg), nil
}

// CACertDefault returns the default CA certificate material.
func (s *Settings) CACertDefault() CACert {
	return CACert{
		CertFile: s.stringValue(SettingDefaultCACert, ""),
		TLS:      s.TLSDefault(),
	}
}

// CACertLogging returns the logging CA certificate material, falling back to
// the default certificate file.
func (s *Settings) CACertLogging() CACert {
	return CACert{
		CertFile: s.stringValue(SettingLoggingCACert, s.stringValue(SettingDefaultCACert, "")),
		TLS:      s.TLSLogging(),
	}
}

// CACertTracing returns the tracing CA certificate material, falling back to
// the default certificate file.
func (s *Settings) CACertTracing() CACert {
	return CACert{
		CertFile: s.stringValue(SettingTracingCACert, s.stringValue(SettingDefaultCACert, "")),
		TLS:      s.TLSTracing(),
	}
}

// CACertMetrics returns the metrics CA certificate material, falling back to
// the default certificate file.
func (s *Settings) CACertMetrics() CACert {
	return CACert{
		CertFile: s.stringValue(SettingMetricsCACert, s.stringValue(SettingDefaultCACert, "")),
		TLS:      s.TLSMetrics(),
	}
}

// CACertFor returns the CA certificate material for a signal.
func (s *Settings) CACertFor(signal Signal) CACert {
	switch signal {
	case SignalLogging:
		return s.CACertLogging()
	case SignalTracing:
		return s.CACertTracing()
	case SignalMetrics:
		return s.CACertMetrics()
	default:
		return s.CACertDefault()
	}
}
