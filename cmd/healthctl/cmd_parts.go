package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
)

func newPartsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parts [machineType]",
		Short: "Print the reference ranges of every part",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runParts,
	}
}

func runParts(cmd *cobra.Command, args []string) error {
	table, err := loadTable(cmd)
	if err != nil {
		return err
	}

	machineTypes := table.MachineTypes()
	if len(args) == 1 {
		machineType := health.MachineType(args[0])
		if _, ok := table[machineType]; !ok {
			return fmt.Errorf("unknown machine type %q", args[0])
		}
		machineTypes = []health.MachineType{machineType}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MACHINE\tPART\tOPTIMAL\tNORMAL\tABNORMAL")
	for _, machineType := range machineTypes {
		for _, part := range table.Parts(machineType) {
			ranges, _, _ := table.Lookup(machineType, part)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				machineType.DisplayName(), part,
				formatRange(ranges.Optimal), formatRange(ranges.Normal), formatRange(ranges.Abnormal))
		}
	}
	return tw.Flush()
}

func formatRange(r health.Range) string {
	return fmt.Sprintf("[%g, %g]", r.Low(), r.High())
}
