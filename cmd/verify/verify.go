// Package verify runs the full portal workflow for one batch file
package verify

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/cep-verify/cmd/common"
	"fjacquet/cep-verify/cmd/root"

	"github.com/spf13/cobra"
)

var details bool

// Cmd represents the verify command
var Cmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a batch CSV against the CEP portal",
	Long: `Verify a batch CSV against the CEP portal.

The batch is encoded, submitted to the Banxico portal with a headless browser,
the confirmation archive is downloaded and every row is reconciled against its
confirmation. The verdict string is printed on standard output.

Example:
  cep-verify verify -i batch.csv --details`,
	RunE: verifyFunc,
}

func init() {
	Cmd.Flags().BoolVar(&details, "details", false, "Print the mismatching fields of each failed row")
}

func verifyFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	if _, err := c.GetDriver(); err != nil {
		return err
	}

	records, err := common.LoadRecords(root.SharedFlags.Input, c.GetLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := c.GetVerifier().Verify(ctx, records)
	if err != nil {
		return err
	}
	return common.WriteVerdicts(cmd.OutOrStdout(), result.Verdicts, details)
}
