package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/hyp3rd/telemetry/pkg/logging"
)

// SDKVersion is stamped on every resource as client.sdk.version.
const SDKVersion = "0.4.0"

// SchemaVersion is the telemetry schema the emitted attributes follow,
// stamped as schema.version.
const SchemaVersion = "1.1.0"

// serviceFieldPattern bounds service name and version: 1 to 30 characters
// from the letters, digits, dot, underscore, hyphen set.
var serviceFieldPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,30}$`)

// ErrInvalidServiceField reports a service name or version that violates the
// naming rule.
var ErrInvalidServiceField = ewrap.New("service name and version must match ^[a-zA-Z0-9._-]{1,30}$")

var validEnvironments = map[string]struct{}{
	"":            {},
	"test":        {},
	"development": {},
	"staging":     {},
	"production":  {},
}

// ResourceAttributes describes the service emitting telemetry. ServiceName
// and ServiceVersion are required and validated; the host-derived fields
// default from the running system when left empty. Free-form keys go in
// Parameters, which is serialized to JSON on the resource.
type ResourceAttributes struct {
	ServiceName    string
	ServiceVersion string
	OSType         string
	OSVersion      string
	RuntimeVersion string
	Hostname       string
	Platform       string
	// Environment must be one of "", test, development, staging,
	// production. Invalid values fall back to "" with a logged warning.
	Environment string
	// UserID feeds the session id hash; it is not placed on the resource.
	UserID     string
	Parameters map[string]string
}

// NewResourceAttributes validates the required service fields and returns
// attributes with host defaults left to be filled at initialization.
func NewResourceAttributes(serviceName, serviceVersion string) (*ResourceAttributes, error) {
	if !serviceFieldPattern.MatchString(serviceName) {
		return nil, ewrap.Wrapf(ErrInvalidServiceField, "invalid service name %q", serviceName)
	}

	if !serviceFieldPattern.MatchString(serviceVersion) {
		return nil, ewrap.Wrapf(ErrInvalidServiceField, "invalid service version %q", serviceVersion)
	}

	return &ResourceAttributes{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Parameters:     map[string]string{},
	}, nil
}

// normalize validates the environment, lowercasing it and falling back to ""
// when it is not an accepted value, and fills host defaults for the fields
// the caller left empty.
func (a *ResourceAttributes) normalize(ctx context.Context, logger logging.Adapter) error {
	if !serviceFieldPattern.MatchString(a.ServiceName) {
		return ewrap.Wrapf(ErrInvalidServiceField, "invalid service name %q", a.ServiceName)
	}

	if !serviceFieldPattern.MatchString(a.ServiceVersion) {
		return ewrap.Wrapf(ErrInvalidServiceField, "invalid service version %q", a.ServiceVersion)
	}

	a.Environment = strings.ToLower(strings.TrimSpace(a.Environment))
	if _, ok := validEnvironments[a.Environment]; !ok {
		logger.Warn(ctx, "invalid environment value, falling back to empty",
			attribute.String("environment", a.Environment))
		a.Environment = ""
	}

	if a.OSType == "" {
		a.OSType = runtime.GOOS
	}

	if a.RuntimeVersion == "" {
		a.RuntimeVersion = runtime.Version()
	}

	if a.Hostname == "" {
		hostname, err := os.Hostname()
		if err == nil {
			a.Hostname = hostname
		}
	}

	if a.Parameters == nil {
		a.Parameters = map[string]string{}
	}

	return nil
}

// toResource builds the OTel resource carrying the normalized attributes plus
// the hashed session id.
func (a *ResourceAttributes) toResource(sessionID string) (*resource.Resource, error) {
	parameters, err := json.Marshal(a.Parameters)
	if err != nil {
		return nil, ewrap.Wrap(err, "serialize resource parameters")
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", a.ServiceName),
		attribute.String("service.version", a.ServiceVersion),
		attribute.String("os.type", a.OSType),
		attribute.String("os.version", a.OSVersion),
		attribute.String("runtime.version", a.RuntimeVersion),
		attribute.String("hostname", a.Hostname),
		attribute.String("platform", a.Platform),
		attribute.String("environment", a.Environment),
		attribute.String("client.sdk.version", SDKVersion),
		attribute.String("schema.version", SchemaVersion),
		attribute.String("parameters", string(parameters)),
		attribute.String("session.id", sessionID),
	}

	return resource.NewSchemaless(attrs...), nil
}
