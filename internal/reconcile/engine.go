package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"fjacquet/cep-verify/internal/confirmation"
	"fjacquet/cep-verify/internal/fileutils"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
)

// Engine reconciles batches against extracted confirmation directories.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates an Engine.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "reconcile")}
}

// Reconcile produces one verdict per record, in input order, from the
// confirmation files in dir. A missing or unreadable document yields a false
// verdict and never stops the batch.
//
// dir is removed recursively before Reconcile returns, whatever the outcome.
// The only error is the context's, in which case no list is returned.
func (e *Engine) Reconcile(ctx context.Context, records []models.TransactionRecord, dir string) (models.VerdictList, error) {
	logger := e.logger.WithField(logging.FieldDirectory, dir)
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.WithError(err).Warn("Failed to remove confirmation directory")
		}
	}()

	if files, err := fileutils.ListFilesWithExtension(dir, models.ConfirmationExtension); err == nil {
		logger.Debug("Confirmation documents available", logging.F(logging.FieldCount, len(files)))
	}

	verdicts := make(models.VerdictList, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		verdicts = append(verdicts, e.verdict(logger, rec, dir))
	}

	logger.Info("Reconciliation finished",
		logging.F(logging.FieldCount, len(verdicts)),
		logging.F(logging.FieldMatched, verdicts.MatchedCount()))
	return verdicts, nil
}

func (e *Engine) verdict(logger logging.Logger, rec models.TransactionRecord, dir string) models.Verdict {
	logger = logger.WithField(logging.FieldTrackingKey, rec.TrackingKey)
	path := filepath.Join(dir, rec.ConfirmationFileName())

	doc, err := confirmation.ParseFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Confirmation document not found", logging.F(logging.FieldFile, path))
			return models.Verdict{TrackingKey: rec.TrackingKey, Mismatches: []string{models.ReasonMissing}}
		}
		logger.WithError(err).Error("Failed to read confirmation document", logging.F(logging.FieldFile, path))
		return models.Verdict{TrackingKey: rec.TrackingKey, Mismatches: []string{models.ReasonUnparsable}}
	}

	mismatches := Compare(rec, doc)
	if len(mismatches) > 0 {
		logger.Info("Confirmation does not match record", logging.F(logging.FieldMismatches, mismatches))
		return models.Verdict{TrackingKey: rec.TrackingKey, Mismatches: mismatches}
	}
	return models.Verdict{TrackingKey: rec.TrackingKey, Matched: true}
}
