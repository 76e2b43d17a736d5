package conf

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/ovframework/ovf/internal/logger"
)

var logDestinationNames = map[logger.Destination]string{
	logger.DestinationStdout: "stdout",
	logger.DestinationFile:   "file",
	logger.DestinationSyslog: "syslog",
}

// LogDestinations is the logDestinations parameter.
type LogDestinations []logger.Destination

// MarshalJSON implements json.Marshaler.
func (d LogDestinations) MarshalJSON() ([]byte, error) {
	out := make([]string, len(d))

	for i, p := range d {
		v, ok := logDestinationNames[p]
		if !ok {
			return nil, fmt.Errorf("invalid log destination: %v", p)
		}
		out[i] = v
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogDestinations) UnmarshalJSON(b []byte) error {
	var in []string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	out := LogDestinations{}

	for _, name := range in {
		found := false

		for dest, destName := range logDestinationNames {
			if destName == name {
				if slices.Contains(out, dest) {
					return fmt.Errorf("log destination set twice")
				}
				out = append(out, dest)
				found = true
				break
			}
		}

		if !found {
			return fmt.Errorf("invalid log destination: %s", name)
		}
	}

	*d = out
	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *LogDestinations) UnmarshalEnv(_ string, v string) error {
	byts, _ := json.Marshal(strings.Split(v, ","))
	return d.UnmarshalJSON(byts)
}
