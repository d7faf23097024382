package config

import (
	"os"
	"path/filepath"

	"github.com/hyp3rd/ewrap"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// fileSettings mirrors the recognized setting names with pointer fields so a
// decode distinguishes "absent" from zero values. Only fields the file
// actually set make it into the dict handed to New. Boolean settings stay
// strings here: New applies the same truthy-token coercion to them as it does
// to environment values, which accepts yes/on forms strconv would reject.
type fileSettings struct {
	DefaultEndpoint       *string `mapstructure:"default_endpoint"`
	LoggingEndpoint       *string `mapstructure:"logging_endpoint"`
	TracingEndpoint       *string `mapstructure:"tracing_endpoint"`
	MetricsEndpoint       *string `mapstructure:"metrics_endpoint"`
	UseConsoleExporter    *string `mapstructure:"use_console_exporter"`
	DefaultAuthToken      *string `mapstructure:"default_auth_token"`
	LoggingAuthToken      *string `mapstructure:"logging_auth_token"`
	TracingAuthToken      *string `mapstructure:"tracing_auth_token"`
	MetricsAuthToken      *string `mapstructure:"metrics_auth_token"`
	MetricsExportInterval *int    `mapstructure:"metrics_export_interval_ms"`
	LoggingLevel          *string `mapstructure:"logging_level"`
	SessionEntropy        *string `mapstructure:"session_entropy_value"`
	DefaultCACert         *string `mapstructure:"default_credentials"`
	LoggingCACert         *string `mapstructure:"logging_credentials"`
	TracingCACert         *string `mapstructure:"tracing_credentials"`
	MetricsCACert         *string `mapstructure:"metrics_credentials"`
	SkipInternetCheck     *string `mapstructure:"skip_internet_check"`
	UseCumulativeMetrics  *string `mapstructure:"use_cumulative_metrics"`
}

// FromFile reads a YAML or JSON settings file and returns the dict expected
// by New. Unknown keys are ignored; scalar types coerce the same way
// environment strings do.
func FromFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, ewrap.Wrapf(err, "read config file %q", path)
	}

	dict, err := FromYAML(data)
	if err != nil {
		return nil, ewrap.Wrapf(err, "parse config file %q", path)
	}

	return dict, nil
}

// FromYAML decodes raw YAML (or JSON, which YAML subsumes) into the settings
// dict expected by New.
func FromYAML(raw []byte) (map[string]any, error) {
	var parsed map[string]any

	err := yaml.Unmarshal(raw, &parsed)
	if err != nil {
		return nil, ewrap.Wrap(err, "unmarshal yaml")
	}

	var fields fileSettings

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fields,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, ewrap.Wrap(err, "create decoder")
	}

	err = decoder.Decode(parsed)
	if err != nil {
		return nil, ewrap.Wrap(err, "decode settings")
	}

	return fields.toDict(), nil
}

func (f fileSettings) toDict() map[string]any {
	dict := map[string]any{}

	setString := func(name string, value *string) {
		if value != nil {
			dict[name] = *value
		}
	}

	setString(SettingDefaultEndpoint, f.DefaultEndpoint)
	setString(SettingLoggingEndpoint, f.LoggingEndpoint)
	setString(SettingTracingEndpoint, f.TracingEndpoint)
	setString(SettingMetricsEndpoint, f.MetricsEndpoint)
	setString(SettingDefaultAuthToken, f.DefaultAuthToken)
	setString(SettingLoggingAuthToken, f.LoggingAuthToken)
	setString(SettingTracingAuthToken, f.TracingAuthToken)
	setString(SettingMetricsAuthToken, f.MetricsAuthToken)
	setString(SettingLoggingLevel, f.LoggingLevel)
	setString(SettingSessionEntropy, f.SessionEntropy)
	setString(SettingDefaultCACert, f.DefaultCACert)
	setString(SettingLoggingCACert, f.LoggingCACert)
	setString(SettingTracingCACert, f.TracingCACert)
	setString(SettingMetricsCACert, f.MetricsCACert)
	setString(SettingUseConsoleExporter, f.UseConsoleExporter)
	setString(SettingSkipInternetCheck, f.SkipInternetCheck)
	setString(SettingUseCumulativeMetrics, f.UseCumulativeMetrics)

	if f.MetricsExportInterval != nil {
		dict[SettingMetricsExportInterval] = *f.MetricsExportInterval
	}

	return dict
}
