package health

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Reading is a raw part value as it arrives in a request payload. Numbers
// and numeric strings are accepted; anything else decodes to 0.
type Reading float64

// UnmarshalJSON never fails: unparsable values become 0
func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*r = 0
			return nil
		}
		*r = Reading(ParseReading(s))
		return nil
	}

	*r = Reading(ParseReading(string(data)))
	return nil
}

// ParseReading parses a raw reading, defaulting to 0 for empty, malformed
// or non-finite input
func ParseReading(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ReadingsFromPayload converts the request shape (machine -> part -> value)
// into scorer input, with parts in name order
func ReadingsFromPayload(machines map[MachineType]map[string]Reading) map[MachineType][]PartReading {
	out := make(map[MachineType][]PartReading, len(machines))
	for machineType, parts := range machines {
		names := make([]string, 0, len(parts))
		for name := range parts {
			names = append(names, name)
		}
		sort.Strings(names)

		readings := make([]PartReading, 0, len(names))
		for _, name := range names {
			readings = append(readings, PartReading{Name: name, Value: float64(parts[name])})
		}
		out[machineType] = readings
	}
	return out
}

// FlattenPayload returns plain float values for persistence
func FlattenPayload(machines map[MachineType]map[string]Reading) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(machines))
	for machineType, parts := range machines {
		values := make(map[string]float64, len(parts))
		for name, v := range parts {
			values[name] = float64(v)
		}
		out[string(machineType)] = values
	}
	return out
}
