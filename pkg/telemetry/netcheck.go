package telemetry

import (
	"context"
	"net"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/telemetry/internal/constants"
	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/logging"
)

// dnsAnchor is a highly available address used to distinguish "no internet"
// from "endpoint down".
const dnsAnchor = "8.8.8.8:53"

// checkConnectivity probes general internet reachability and the default
// endpoint before initialization. Results are logged and never fatal: an
// unreachable endpoint is worth knowing about, but on-prem collectors work
// without internet and transient failures should not block startup.
func checkConnectivity(ctx context.Context, settings *config.Settings, logger logging.Adapter) (internet, access bool) {
	if settings.SkipInternetCheck() {
		return true, true
	}

	dialer := net.Dialer{Timeout: constants.DefaultReachabilityTimeout / 2}

	internet = true

	conn, err := dialer.DialContext(ctx, "tcp", dnsAnchor)
	if err != nil {
		logger.Warn(ctx, "no internet access detected")

		internet = false
	} else {
		_ = conn.Close()
	}

	target := settings.DefaultEndpointModel().HostPort()

	access = true

	conn, err = dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		logger.Error(ctx, err, "no access to the default endpoint",
			attribute.String("endpoint", settings.DefaultEndpoint()))

		access = false
	} else {
		_ = conn.Close()

		logger.Info(ctx, "default endpoint reachable",
			attribute.String("endpoint", settings.DefaultEndpoint()))
	}

	return internet, access
}
