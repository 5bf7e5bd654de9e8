package health

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
	}{
		{name: "plain number", raw: "4.0", expected: 4},
		{name: "negative number", raw: "-2.5", expected: -2.5},
		{name: "surrounding whitespace", raw: "  0.8 ", expected: 0.8},
		{name: "exponent", raw: "1e2", expected: 100},
		{name: "empty string", raw: "", expected: 0},
		{name: "garbage", raw: "abc", expected: 0},
		{name: "trailing garbage", raw: "4abc", expected: 0},
		{name: "not a number literal", raw: "NaN", expected: 0},
		{name: "infinity literal", raw: "Inf", expected: 0},
		{name: "overflow", raw: "1e400", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseReading(tt.raw)
			assert.False(t, math.IsNaN(result))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestReading_UnmarshalJSON(t *testing.T) {
	payload := []byte(`{
		"number": 1.5,
		"string": "2.5",
		"padded": " 3 ",
		"garbage": "abc",
		"null": null,
		"bool": true,
		"object": {"nested": 1},
		"list": [1, 2]
	}`)

	var readings map[string]Reading
	require.NoError(t, json.Unmarshal(payload, &readings))

	expected := map[string]Reading{
		"number":  1.5,
		"string":  2.5,
		"padded":  3,
		"garbage": 0,
		"null":    0,
		"bool":    0,
		"object":  0,
		"list":    0,
	}
	assert.Equal(t, expected, readings)
}

func TestReadingsFromPayload(t *testing.T) {
	payload := map[MachineType]map[string]Reading{
		WeldingRobot: {
			PartVibrationLevel: 4,
			PartElectrodeWear:  0.8,
		},
		AssemblyLine: {},
	}

	result := ReadingsFromPayload(payload)

	require.Len(t, result, 2)
	assert.Equal(t, []PartReading{
		{Name: PartElectrodeWear, Value: 0.8},
		{Name: PartVibrationLevel, Value: 4},
	}, result[WeldingRobot])
	assert.Empty(t, result[AssemblyLine])
}

func TestFlattenPayload(t *testing.T) {
	payload := map[MachineType]map[string]Reading{
		PaintingStation: {PartPressure: 40},
	}

	assert.Equal(t, map[string]map[string]float64{
		"paintingStation": {"pressure": 40},
	}, FlattenPayload(payload))
}

func TestRequestPayloadEndToEnd(t *testing.T) {
	scorer := newDefaultScorer(t)

	body := []byte(`{
		"assemblyLine": {"alignmentAccuracy": "0.5"},
		"weldingRobot": {"vibrationLevel": 4.0, "electrodeWear": "not-a-number"}
	}`)

	var machines map[MachineType]map[string]Reading
	require.NoError(t, json.Unmarshal(body, &machines))

	result := scorer.ScoreFactory(ReadingsFromPayload(machines))

	// alignmentAccuracy 0.5 sits on the normal/abnormal boundary -> 100
	// electrodeWear defaults to 0 which is optimal -> 100; vibration 4 -> 75
	assert.Equal(t, "100.00", result.MachineScores[AssemblyLine])
	assert.Equal(t, "87.50", result.MachineScores[WeldingRobot])
	assert.Equal(t, "93.75", result.Factory)
}
