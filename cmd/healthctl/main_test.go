package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestScoreCmd(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "request body",
			input: `{"machines":{"weldingRobot":{"vibrationLevel":4}},"user":"alice"}`,
			want:  `{"factory":"75.00","machineScores":{"weldingRobot":"75.00"}}`,
		},
		{
			name:  "bare machines object",
			input: `{"weldingRobot":{"vibrationLevel":"1"},"assemblyLine":{}}`,
			want:  `{"factory":"50.00","machineScores":{"weldingRobot":"100.00","assemblyLine":"0.00"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.input, "score")
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, out)
		})
	}
}

func TestScoreCmd_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"machines":{"weldingRobot":{"vibrationLevel":4}}}`), 0o600))

	out, _, err := execute(t, "", "score", p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"factory":"75.00","machineScores":{"weldingRobot":"75.00"}}`, out)
}

func TestScoreCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		args    []string
		wantErr string
	}{
		{"not json", `nope`, []string{"score"}, "decode payload"},
		{"no machines", `{}`, []string{"score"}, "no machines"},
		{"missing file", ``, []string{"score", "/nonexistent/payload.json"}, "open payload"},
		{"bad table", `{}`, []string{"score", "--table", "/nonexistent/table.json"}, "load reference table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.input, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPartsCmd(t *testing.T) {
	out, _, err := execute(t, "", "parts", "weldingRobot")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9, "header plus eight welding robot parts")
	assert.True(t, strings.HasPrefix(lines[0], "MACHINE"))
	assert.Contains(t, out, "vibrationLevel")
	assert.Contains(t, out, "[2, 6]")

	_, _, err = execute(t, "", "parts", "toaster")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown machine type")

	out, _, err = execute(t, "", "parts")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 21)
}

func seedHistory(t *testing.T, dir string, snapshots ...*storage.Snapshot) {
	t.Helper()
	store, err := storage.NewSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()

	for _, s := range snapshots {
		require.NoError(t, store.Append(context.Background(), "alice", s))
	}
}

func TestHistoryCmd(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir,
		&storage.Snapshot{Factory: "75.00", MachineScores: map[string]string{"weldingRobot": "75.00"}},
		&storage.Snapshot{Factory: "100.00", MachineScores: map[string]string{"weldingRobot": "100.00"}},
	)

	out, _, err := execute(t, "", "history", "--backend", "sqlite", "--data-dir", dir, "--user", "alice")
	require.NoError(t, err)

	var got []storage.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "75.00", got[0].Factory)
	assert.Equal(t, "100.00", got[1].Factory)

	out, stderr, err := execute(t, "", "history", "--backend", "sqlite", "--data-dir", dir, "--user", "alice", "--clear")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Deleted 2 snapshots for alice")
	assert.NotEmpty(t, out)

	out, _, err = execute(t, "", "history", "--backend", "sqlite", "--data-dir", dir, "--user", "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestHistoryCmd_RequiresUser(t *testing.T) {
	_, _, err := execute(t, "", "history", "--backend", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestPruneCmd(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir,
		&storage.Snapshot{Factory: "10.00", Date: time.Now().Add(-10 * 24 * time.Hour)},
		&storage.Snapshot{Factory: "90.00"},
	)

	out, _, err := execute(t, "", "prune", "--backend", "sqlite", "--data-dir", dir, "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 snapshots")

	_, _, err = execute(t, "", "prune", "--backend", "memory", "--days", "0")
	require.Error(t, err)
}
