package health

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/machines.json
var defaultTableJSON []byte

// Range is a closed interval [low, high]
type Range [2]float64

// Low returns the lower bound
func (r Range) Low() float64 { return r[0] }

// High returns the upper bound
func (r Range) High() float64 { return r[1] }

// Contains reports whether v lies inside the closed interval
func (r Range) Contains(v float64) bool {
	return v >= r[0] && v <= r[1]
}

// PartRanges holds the three classification intervals for one part
type PartRanges struct {
	Optimal  Range `json:"optimalRange" yaml:"optimalRange"`
	Normal   Range `json:"normalRange" yaml:"normalRange"`
	Abnormal Range `json:"abnormalRange" yaml:"abnormalRange"`
}

// ReferenceTable maps machine type -> part name -> classification ranges.
// It is loaded once at startup and must not be mutated afterwards.
type ReferenceTable map[MachineType]map[string]PartRanges

// DefaultReferenceTable returns the reference table shipped with the binary
func DefaultReferenceTable() (ReferenceTable, error) {
	return decodeReferenceTable(bytes.NewReader(defaultTableJSON), ".json")
}

// LoadReferenceTable loads a reference table from a JSON or YAML file.
// An empty path returns the embedded default table.
func LoadReferenceTable(path string) (ReferenceTable, error) {
	if path == "" {
		return DefaultReferenceTable()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference table: %w", err)
	}
	defer file.Close()

	return decodeReferenceTable(file, strings.ToLower(filepath.Ext(path)))
}

func decodeReferenceTable(r io.Reader, ext string) (ReferenceTable, error) {
	var table ReferenceTable

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&table); err != nil {
			return nil, fmt.Errorf("failed to decode reference table yaml: %w", err)
		}
	case ".json":
		if err := json.NewDecoder(r).Decode(&table); err != nil {
			return nil, fmt.Errorf("failed to decode reference table json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported reference table format %q", ext)
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	return table, nil
}

// Validate checks that every range is finite and ordered low <= high
func (t ReferenceTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("reference table is empty")
	}

	for machineType, parts := range t {
		for name, ranges := range parts {
			checks := []struct {
				label string
				r     Range
			}{
				{"optimalRange", ranges.Optimal},
				{"normalRange", ranges.Normal},
				{"abnormalRange", ranges.Abnormal},
			}
			for _, check := range checks {
				if !isFinite(check.r.Low()) || !isFinite(check.r.High()) {
					return fmt.Errorf("%s.%s.%s has a non-finite bound", machineType, name, check.label)
				}
				if check.r.Low() > check.r.High() {
					return fmt.Errorf("%s.%s.%s: low %v is greater than high %v",
						machineType, name, check.label, check.r.Low(), check.r.High())
				}
			}
		}
	}

	return nil
}

// MachineTypes returns the machine types present in the table in sorted order
func (t ReferenceTable) MachineTypes() []MachineType {
	types := make([]MachineType, 0, len(t))
	for machineType := range t {
		types = append(types, machineType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Parts returns the part names configured for a machine type in sorted order
func (t ReferenceTable) Parts(machineType MachineType) []string {
	parts := t[machineType]
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the ranges for a part. machineFound is false when the
// machine type is absent; partFound is false when only the part is absent.
func (t ReferenceTable) Lookup(machineType MachineType, part string) (ranges PartRanges, machineFound, partFound bool) {
	parts, ok := t[machineType]
	if !ok {
		return PartRanges{}, false, false
	}
	ranges, ok = parts[part]
	return ranges, true, ok
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
