// Package common contains shared functionality for command handlers
package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"fjacquet/cep-verify/internal/batch"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
)

// LoadRecords reads and validates the batch CSV at path.
func LoadRecords(path string, log logging.Logger) ([]models.TransactionRecord, error) {
	if path == "" {
		return nil, fmt.Errorf("input file must be specified with --input")
	}

	file, err := os.Open(path) // #nosec G304 -- CLI tool requires user-provided file paths
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close input file")
		}
	}()

	records, err := batch.ReadCSV(file)
	if err != nil {
		return nil, err
	}
	log.Info("Batch loaded",
		logging.F(logging.FieldFile, path),
		logging.F(logging.FieldCount, len(records)))
	return records, nil
}

// WriteVerdicts prints the verdict wire string. With details, one line per
// failed record follows, naming what did not match.
func WriteVerdicts(w io.Writer, verdicts models.VerdictList, details bool) error {
	if _, err := fmt.Fprintln(w, verdicts.String()); err != nil {
		return err
	}
	if !details {
		return nil
	}

	for _, v := range verdicts {
		if v.Matched {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", v.TrackingKey, strings.Join(v.Mismatches, ", ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d/%d confirmed\n", verdicts.MatchedCount(), len(verdicts))
	return err
}
