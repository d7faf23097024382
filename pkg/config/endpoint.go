package config

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hyp3rd/ewrap"
)

// endpointPattern is the endpoint grammar: protocol, IPv4 or dotted domain
// host, optional port (five digits at most), optional path.
var endpointPattern = regexp.MustCompile(
	`^(https?|grpcs?)://` +
		`((?:\d{1,3}\.){3}\d{1,3}` +
		`|[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*(?:\.[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*)*)` +
		`(?::(\d{1,5}))?` +
		`(/.*)?$`,
)

// numericHostPattern detects hosts made solely of dot-separated digit runs,
// which must then validate as strict IPv4 literals.
var numericHostPattern = regexp.MustCompile(`^(?:\d{1,3}\.)+\d{1,3}$`)

const (
	portHTTP  = 80
	portHTTPS = 443

	minUnprivilegedPort = 1024
	maxPort             = 65535
)

// Endpoint is the parsed, validated form of a single telemetry destination.
// Values are immutable once built; an endpoint update replaces the whole
// value rather than mutating it.
type Endpoint struct {
	// Protocol is one of http, https, grpc, grpcs.
	Protocol string
	// Host is a dotted domain name or a strict IPv4 literal.
	Host string
	// Port is the explicit port, or 0 when the endpoint did not carry one.
	Port int
	// Path is the verbatim path component including the leading slash, or "".
	Path string
	// TLS is true when the protocol ends in "s".
	TLS bool
	// URL is the normalized form protocol://host[:port]path.
	URL string
	// ReachabilityPort is the port used for basic connectivity probes:
	// the explicit port when present, otherwise 80 for http and 443 for
	// everything else.
	ReachabilityPort int
}

// ParseEndpoint parses and validates raw against the endpoint grammar
// (http|https|grpc|grpcs)://<host>[:<port>][/<path>]. The host must be a
// dotted domain or an IPv4 literal whose first octet is not 0 or 255 and
// whose last octet is not 0 or 255. An explicit port must be 80, 443, or lie
// within [1024,65535].
func ParseEndpoint(raw string) (Endpoint, error) {
	match := endpointPattern.FindStringSubmatch(raw)
	if match == nil {
		return Endpoint{}, invalidEndpoint(raw)
	}

	ep := Endpoint{
		Protocol: match[1],
		Host:     match[2],
		Path:     match[4],
	}
	ep.TLS = strings.HasSuffix(ep.Protocol, "s")

	err := validateHost(ep.Host)
	if err != nil {
		return Endpoint{}, invalidEndpoint(raw)
	}

	hasPort := match[3] != ""
	if hasPort {
		port, err := strconv.Atoi(match[3])
		if err != nil {
			return Endpoint{}, invalidEndpoint(raw)
		}

		ep.Port = port
	}

	switch {
	case !hasPort:
		if ep.Protocol == "http" {
			ep.ReachabilityPort = portHTTP
		} else {
			// https and grpc(s) default to 443.
			ep.ReachabilityPort = portHTTPS
		}
	case ep.Port != portHTTP && ep.Port != portHTTPS &&
		(ep.Port < minUnprivilegedPort || ep.Port > maxPort):
		return Endpoint{}, invalidEndpoint(raw)
	default:
		ep.ReachabilityPort = ep.Port
	}

	builder := strings.Builder{}
	builder.WriteString(ep.Protocol)
	builder.WriteString("://")
	builder.WriteString(ep.Host)

	if ep.Port != 0 {
		builder.WriteString(":")
		builder.WriteString(strconv.Itoa(ep.Port))
	}

	builder.WriteString(ep.Path)
	ep.URL = builder.String()

	return ep, nil
}

// HostPort returns host:port suitable for dialing, substituting the
// reachability port when no explicit port was given.
func (e Endpoint) HostPort() string {
	return e.Host + ":" + strconv.Itoa(e.ReachabilityPort)
}

func validateHost(host string) error {
	if !numericHostPattern.MatchString(host) {
		return nil
	}

	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return ewrap.Newf("ipv4 host %q must have exactly four octets", host)
	}

	quads := make([]int, 0, len(octets))

	for _, octet := range octets {
		quad, err := strconv.Atoi(octet)
		if err != nil {
			return ewrap.Wrapf(err, "ipv4 octet %q", octet)
		}

		if quad > 255 {
			return ewrap.Newf("ipv4 octet %d out of range", quad)
		}

		quads = append(quads, quad)
	}

	if quads[0] == 0 || quads[0] == 255 || quads[3] == 0 || quads[3] == 255 {
		return ewrap.Newf("ipv4 host %q has a reserved boundary octet", host)
	}

	return nil
}

func invalidEndpoint(raw string) error {
	return ewrap.Wrapf(ErrInvalidEndpoint, "invalid endpoint format: %s", raw)
}
