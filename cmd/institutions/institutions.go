// Package institutions prints the institution code table
package institutions

import (
	"fmt"
	"text/tabwriter"

	"fjacquet/cep-verify/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the institutions command
var Cmd = &cobra.Command{
	Use:   "institutions",
	Short: "List the institution names and their participant codes",
	Long: `List the institution names and their participant codes.

The table is the built-in Banxico participant list merged with the file named by
institutions.file, if any. Names are listed alphabetically.

Example:
  cep-verify institutions`,
	RunE: institutionsFunc,
}

func institutionsFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	table := c.GetInstitutionTable()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range table.Names() {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, table.Code(name)); err != nil {
			return err
		}
	}
	return w.Flush()
}
