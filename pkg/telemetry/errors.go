package telemetry

import "github.com/hyp3rd/ewrap"

// ErrNilSettings is returned by Init when no settings are provided.
var ErrNilSettings = ewrap.New("settings must not be nil")

// ErrNilAttributes is returned by Init when no resource attributes are
// provided.
var ErrNilAttributes = ewrap.New("resource attributes must not be nil")

// ErrSignalNotEnabled reports an operation against a signal that was not
// requested at initialization.
var ErrSignalNotEnabled = ewrap.New("signal was not enabled at initialization")

// errNilException is recorded when AddException is called with a nil error.
var errNilException = ewrap.New("generic exception because the error passed was nil")
