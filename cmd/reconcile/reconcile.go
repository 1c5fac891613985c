// Package reconcile checks a batch against confirmations already downloaded
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/cep-verify/cmd/common"
	"fjacquet/cep-verify/cmd/root"
	"fjacquet/cep-verify/internal/fileutils"
	"fjacquet/cep-verify/internal/logging"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	archivePath string
	dirPath     string
	keep        bool
	details     bool
)

// Cmd represents the reconcile command
var Cmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a batch CSV against a downloaded CEP archive or directory",
	Long: `Reconcile a batch CSV against a downloaded CEP archive or directory.

Use --archive with the zip downloaded from the portal, or --dir with a directory of
"[date]trackingKey.xml" confirmations. A directory is removed once reconciled unless
--keep is given, in which case a copy is reconciled instead.

Example:
  cep-verify reconcile -i batch.csv --archive T123.zip
  cep-verify reconcile -i batch.csv --dir confirmations/ --keep`,
	RunE: reconcileFunc,
}

func init() {
	Cmd.Flags().StringVar(&archivePath, "archive", "", "Confirmation archive (zip)")
	Cmd.Flags().StringVar(&dirPath, "dir", "", "Directory of extracted confirmations")
	Cmd.Flags().BoolVar(&keep, "keep", false, "Reconcile a copy of --dir and leave the original in place")
	Cmd.Flags().BoolVar(&details, "details", false, "Print the mismatching fields of each failed row")
	Cmd.MarkFlagsMutuallyExclusive("archive", "dir")
	Cmd.MarkFlagsOneRequired("archive", "dir")
}

func reconcileFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	logger := c.GetLogger()

	records, err := common.LoadRecords(root.SharedFlags.Input, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc := c.GetVerifier()

	if archivePath != "" {
		result, err := svc.ReconcileArchive(ctx, records, archivePath)
		if err != nil {
			return err
		}
		return common.WriteVerdicts(cmd.OutOrStdout(), result.Verdicts, details)
	}

	target := dirPath
	if keep {
		target, err = copyToWorkspace(dirPath, c.GetConfig().Work.Directory, logger)
		if err != nil {
			return err
		}
	}

	result, err := svc.ReconcileDirectory(ctx, records, target)
	if err != nil {
		return err
	}
	return common.WriteVerdicts(cmd.OutOrStdout(), result.Verdicts, details)
}

// copyToWorkspace copies dir into a fresh directory under workDir.
func copyToWorkspace(dir, workDir string, logger logging.Logger) (string, error) {
	if dir == "" {
		return "", errors.New("--keep requires --dir")
	}
	target := filepath.Join(workDir, uuid.NewString())
	count, err := fileutils.CopyDirectory(dir, target)
	if err != nil {
		_ = os.RemoveAll(target)
		return "", fmt.Errorf("failed to copy confirmations: %w", err)
	}
	logger.Debug("Copied confirmations",
		logging.F(logging.FieldDirectory, target),
		logging.F(logging.FieldCount, count))
	return target, nil
}
