package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReferenceTable(t *testing.T) {
	table, err := DefaultReferenceTable()
	require.NoError(t, err)

	assert.Equal(t, []MachineType{AssemblyLine, PaintingStation, QualityControlStation, WeldingRobot}, table.MachineTypes())
	assert.Len(t, table.Parts(WeldingRobot), 8)
	assert.Len(t, table.Parts(PaintingStation), 4)
	assert.Len(t, table.Parts(AssemblyLine), 4)
	assert.Len(t, table.Parts(QualityControlStation), 4)

	ranges, machineFound, partFound := table.Lookup(WeldingRobot, PartVibrationLevel)
	assert.True(t, machineFound)
	assert.True(t, partFound)
	assert.Equal(t, Range{2, 6}, ranges.Normal)
}

func TestReferenceTable_Lookup(t *testing.T) {
	table, err := DefaultReferenceTable()
	require.NoError(t, err)

	_, machineFound, partFound := table.Lookup(MachineType("forklift"), PartSpeed)
	assert.False(t, machineFound)
	assert.False(t, partFound)

	_, machineFound, partFound = table.Lookup(AssemblyLine, "bogus")
	assert.True(t, machineFound)
	assert.False(t, partFound)
}

func TestReferenceTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   ReferenceTable
		wantErr string
	}{
		{
			name:    "empty table",
			table:   ReferenceTable{},
			wantErr: "reference table is empty",
		},
		{
			name: "inverted range",
			table: ReferenceTable{
				WeldingRobot: {
					PartSeamWidth: {Optimal: Range{1, 3}, Normal: Range{5, 3}, Abnormal: Range{5, 8}},
				},
			},
			wantErr: "weldingRobot.seamWidth.normalRange",
		},
		{
			name: "single point ranges are allowed",
			table: ReferenceTable{
				WeldingRobot: {
					PartSeamWidth: {Optimal: Range{2, 2}, Normal: Range{3, 3}, Abnormal: Range{4, 4}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadReferenceTable(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "machines.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
weldingRobot:
  vibrationLevel:
    optimalRange: [0, 1]
    normalRange: [1, 3]
    abnormalRange: [3, 9]
`), 0644))

	jsonPath := filepath.Join(dir, "machines.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"paintingStation": {
			"pressure": {"optimalRange": [50, 70], "normalRange": [30, 50], "abnormalRange": [10, 30]}
		}
	}`), 0644))

	badPath := filepath.Join(dir, "machines.txt")
	require.NoError(t, os.WriteFile(badPath, []byte("nope"), 0644))

	t.Run("empty path loads embedded table", func(t *testing.T) {
		table, err := LoadReferenceTable("")
		require.NoError(t, err)
		assert.Len(t, table, 4)
	})

	t.Run("yaml file", func(t *testing.T) {
		table, err := LoadReferenceTable(yamlPath)
		require.NoError(t, err)
		assert.Equal(t, Range{1, 3}, table[WeldingRobot][PartVibrationLevel].Normal)
	})

	t.Run("json file", func(t *testing.T) {
		table, err := LoadReferenceTable(jsonPath)
		require.NoError(t, err)
		assert.Equal(t, Range{10, 30}, table[PaintingStation][PartPressure].Abnormal)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadReferenceTable(badPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported reference table format")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadReferenceTable(filepath.Join(dir, "absent.json"))
		require.Error(t, err)
	})
}

func TestMachineType_DisplayName(t *testing.T) {
	assert.Equal(t, "Welding Robot", WeldingRobot.DisplayName())
	assert.Equal(t, "Quality Control Station", QualityControlStation.DisplayName())
	assert.Equal(t, "forklift", MachineType("forklift").DisplayName())
	assert.True(t, AssemblyLine.Known())
	assert.False(t, MachineType("forklift").Known())
}
