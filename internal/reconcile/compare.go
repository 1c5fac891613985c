// Package reconcile checks a batch against the confirmation documents the
// portal returned for it.
package reconcile

import (
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/normalizer"
)

// Compare returns the inbound column names of the fields on which rec and doc
// disagree. An empty result means the transfer is confirmed.
//
// Tracking key, date and account must be identical strings. Institutions are
// compared after the alias rule is applied to both sides. Amounts are compared
// as two-decimal numbers; an amount that cannot be parsed is a mismatch.
func Compare(rec models.TransactionRecord, doc *models.ConfirmationDocument) []string {
	var mismatches []string
	if rec.TrackingKey != doc.TrackingKey {
		mismatches = append(mismatches, models.ColumnTrackingKey)
	}
	if rec.Date != doc.Date {
		mismatches = append(mismatches, models.ColumnDate)
	}
	if normalizer.Canonical(rec.SenderInstitution) != normalizer.Canonical(doc.SenderInstitution) {
		mismatches = append(mismatches, models.ColumnSender)
	}
	if normalizer.Canonical(rec.ReceiverInstitution) != normalizer.Canonical(doc.ReceiverInstitution) {
		mismatches = append(mismatches, models.ColumnReceiver)
	}
	if rec.Account != doc.Account {
		mismatches = append(mismatches, models.ColumnAccount)
	}
	if equal, err := normalizer.AmountsEqual(rec.Amount, doc.Amount); err != nil || !equal {
		mismatches = append(mismatches, models.ColumnAmount)
	}
	return mismatches
}
