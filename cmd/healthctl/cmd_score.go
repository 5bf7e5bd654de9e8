package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/types"
)

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [payload.json]",
		Short: "Score a machines payload read from a file or stdin",
		Long: "Reads either a request body ({\"machines\": {...}}) or a bare\n" +
			"machine -> part -> reading object and prints the factory result.",
		Args: cobra.MaximumNArgs(1),
		RunE: runScore,
	}
}

func runScore(cmd *cobra.Command, args []string) error {
	table, err := loadTable(cmd)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	machines, err := decodeMachines(data)
	if err != nil {
		return err
	}

	result := health.NewScorer(table).ScoreFactory(health.ReadingsFromPayload(machines))
	return writeJSON(cmd.OutOrStdout(), types.FactoryScoreResponse{
		Factory:       result.Factory,
		MachineScores: result.MachineScores,
	})
}

// decodeMachines accepts the HTTP request shape or a bare machines object
func decodeMachines(data []byte) (types.Machines, error) {
	var req types.MachineHealthRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if req.Machines != nil {
		return req.Machines, nil
	}

	var machines types.Machines
	if err := json.Unmarshal(data, &machines); err != nil || len(machines) == 0 {
		return nil, fmt.Errorf("payload has no machines")
	}
	return machines, nil
}

func loadTable(cmd *cobra.Command) (health.ReferenceTable, error) {
	path, _ := cmd.Flags().GetString("table")
	table, err := health.LoadReferenceTable(path)
	if err != nil {
		return nil, fmt.Errorf("load reference table: %w", err)
	}
	return table, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
