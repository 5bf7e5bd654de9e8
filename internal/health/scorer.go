package health

import (
	"math"
	"sort"
	"strconv"
)

const (
	// notApplicable marks a part that has no reference entry for its machine.
	// It never leaves the package; aggregation skips it.
	notApplicable = -1.0

	normalFloor   = 50.0
	normalCeiling = 100.0
	abnormalFloor = 0.0
	optimalScore  = 100.0
)

// Scorer computes part, machine and factory health scores against a fixed
// reference table. It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	table ReferenceTable
}

// NewScorer creates a scorer bound to the given reference table
func NewScorer(table ReferenceTable) *Scorer {
	return &Scorer{table: table}
}

// Table returns the reference table the scorer was built with
func (s *Scorer) Table() ReferenceTable {
	return s.table
}

// linearScale clamps value into [inMin, inMax] and maps it onto [outMin, outMax].
// A single-point input range maps to outMin.
func linearScale(value, outMin, outMax, inMin, inMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	clamped := math.Min(math.Max(value, inMin), inMax)
	return (clamped-inMin)/(inMax-inMin)*(outMax-outMin) + outMin
}

// ScorePart returns the 0-100 health of a single part reading.
// Unknown machine types score 0; unknown parts return the internal
// not-applicable marker (-1) so that ScoreMachine can skip them.
func (s *Scorer) ScorePart(machineType MachineType, part PartReading) float64 {
	ranges, machineFound, partFound := s.table.Lookup(machineType, part.Name)
	if !machineFound {
		return 0
	}
	if !partFound {
		return notApplicable
	}

	value := part.Value

	// normal is checked before abnormal and optimal; shared boundaries go to normal
	switch {
	case ranges.Normal.Contains(value):
		return linearScale(value, normalFloor, normalCeiling, ranges.Normal.Low(), ranges.Normal.High())
	case ranges.Abnormal.Contains(value):
		return linearScale(value, abnormalFloor, normalFloor, ranges.Abnormal.Low(), ranges.Abnormal.High())
	case ranges.Optimal.Contains(value):
		return optimalScore
	default:
		return 0
	}
}

// ScoreMachine averages the scores of every applicable part
func (s *Scorer) ScoreMachine(machineType MachineType, parts []PartReading) float64 {
	if len(parts) == 0 {
		return 0
	}

	total := 0.0
	counted := 0
	for _, part := range parts {
		score := s.ScorePart(machineType, part)
		if score == notApplicable {
			continue
		}
		total += score
		counted++
	}

	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

// ScoreFactory scores each machine present and averages the unformatted
// machine scores into the factory figure. Machines with no applicable parts
// still count as one machine scoring 0.
func (s *Scorer) ScoreFactory(machines map[MachineType][]PartReading) FactoryScore {
	result := FactoryScore{
		Factory:       FormatScore(0),
		MachineScores: make(MachineScores, len(machines)),
	}
	if len(machines) == 0 {
		return result
	}

	types := make([]MachineType, 0, len(machines))
	for machineType := range machines {
		types = append(types, machineType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	total := 0.0
	for _, machineType := range types {
		score := s.ScoreMachine(machineType, machines[machineType])
		result.MachineScores[machineType] = FormatScore(score)
		total += score
	}

	result.Factory = FormatScore(total / float64(len(types)))
	return result
}

// FormatScore renders a score with exactly two decimals, rounding halves up
func FormatScore(score float64) string {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}
	rounded := math.Round(score*100) / 100
	return strconv.FormatFloat(rounded, 'f', 2, 64)
}
