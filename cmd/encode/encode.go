// Package encode writes the portal upload payload for a batch file
package encode

import (
	"fjacquet/cep-verify/cmd/common"
	"fjacquet/cep-verify/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the encode command
var Cmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a batch CSV into the portal upload format",
	Long: `Encode a batch CSV into the portal upload format.

Each row becomes "date,trackingKey,senderCode,receiverCode,account,amount" with the
institution names replaced by their Banxico participant codes. Without --output the
payload is printed on standard output.

Example:
  cep-verify encode -i batch.csv -o payload.txt`,
	RunE: encodeFunc,
}

func encodeFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}

	records, err := common.LoadRecords(root.SharedFlags.Input, c.GetLogger())
	if err != nil {
		return err
	}

	encoder := c.GetEncoder()
	if root.SharedFlags.Output == "" {
		_, err := cmd.OutOrStdout().Write(encoder.Encode(records))
		return err
	}
	return encoder.WritePayload(root.SharedFlags.Output, records)
}
