package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List known model descriptors",
		Long: `list prints every Model Descriptor known to the store, including the
factory-seeded models fleetd ships with.

Examples:
  fleetd list
  fleetd ls`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
	return cmd
}

func runList(cmd *cobra.Command) error {
	ctx := cmd.Context()

	descriptors, err := st.ListDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("listing descriptors: %w", err)
	}

	if len(descriptors) == 0 {
		cmd.Println("No known model descriptors")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "ORGANIZATION", "NAME", "BACKEND", "UUID"}),
	)

	for _, d := range descriptors {
		table.Append([]string{
			d.ID,
			d.Organization,
			d.Name,
			string(d.Backend),
			d.UUID.String(),
		})
	}

	table.Render()
	return nil
}
