package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/janpfeifer/go-microbench/internal/workloads"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the workloads that can be measured with run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, workload := range workloads.All() {
				fmt.Fprintf(w, "%s\t%s\n", workload.Name, workload.Description)
			}
			return w.Flush()
		},
	}
}
