package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/readdeck/internal/widget"
)

// widgets: print each widget contract.
func widgetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "widgets",
		Short: "List widget contracts and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range widget.Names() {
				fields, _ := widget.Contract(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s\n", name, strings.Join(fields, ", "))
			}
			return nil
		},
	}
}
