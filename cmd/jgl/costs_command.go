package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/ledger"
	"github.com/GoodnightSam/JGL-Assistant/internal/logging"
)

func newCostsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "costs <subject>",
		Short: "Show the cumulative spend ledger for one subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openWorkspace()
			if err != nil {
				return err
			}
			handle, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			costs, err := ledger.Open(store, handle, logging.NewNop())
			if err != nil {
				return err
			}
			summary := costs.Summarize()

			if jsonOutput {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			if len(summary.Operations) == 0 {
				fmt.Fprintf(out, "No recorded spend for %s\n", handle.DisplayName)
				return nil
			}
			rows := make([][]string, 0, len(summary.Operations)+1)
			for _, op := range summary.Operations {
				rows = append(rows, []string{
					op.Operation,
					fmt.Sprintf("%d", op.Count),
					fmt.Sprintf("%d", op.InputUnits),
					fmt.Sprintf("%d", op.OutputUnits),
					fmt.Sprintf("$%.4f", op.Cost),
				})
			}
			rows = append(rows, []string{"total", "", "", "", fmt.Sprintf("$%.4f", summary.Total)})
			fmt.Fprintln(out, renderTable(
				[]string{"Operation", "Calls", "Input", "Output", "Cost"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
