package conf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ovframework/ovf/internal/logger"
)

var logLevelNames = map[LogLevel]string{
	LogLevel(logger.Error): "error",
	LogLevel(logger.Warn):  "warn",
	LogLevel(logger.Info):  "info",
	LogLevel(logger.Debug): "debug",
}

// LogLevel is the minimum severity written by the pipeline logger.
// It is configured by name: error, warn, info or debug.
type LogLevel logger.Level

func parseLogLevel(name string) (LogLevel, error) {
	for lvl, n := range logLevelNames {
		if n == strings.ToLower(name) {
			return lvl, nil
		}
	}
	return 0, fmt.Errorf("unsupported log level '%s', expected error, warn, info or debug", name)
}

// MarshalJSON implements json.Marshaler.
func (d LogLevel) MarshalJSON() ([]byte, error) {
	name, ok := logLevelNames[d]
	if !ok {
		return nil, fmt.Errorf("log level %d has no name", d)
	}
	return json.Marshal(name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogLevel) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}

	lvl, err := parseLogLevel(name)
	if err != nil {
		return err
	}

	*d = lvl
	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
// OVF_LOGLEVEL accepts the same names as the YAML file, in any case.
func (d *LogLevel) UnmarshalEnv(_ string, v string) error {
	lvl, err := parseLogLevel(v)
	if err != nil {
		return err
	}

	*d = lvl
	return nil
}
