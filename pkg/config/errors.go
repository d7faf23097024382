package config

import "github.com/hyp3rd/ewrap"

// ErrInvalidEndpoint reports an endpoint string that violates the endpoint
// grammar: bad protocol, malformed host, out-of-range IPv4 octets, or an
// unusable port.
var ErrInvalidEndpoint = ewrap.New("invalid endpoint format")

// ErrMissingDefaultEndpoint is returned by New when no default endpoint can be
// resolved from the constructor arguments, the config dictionary, or the
// environment.
var ErrMissingDefaultEndpoint = ewrap.New("a default endpoint must be provided or set in the configuration")

// ErrInvalidConfigValue reports a setting value that cannot be coerced to the
// type the setting requires.
var ErrInvalidConfigValue = ewrap.New("invalid configuration value")
