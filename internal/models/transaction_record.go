// Package models holds the data shapes shared by the verification workflow.
package models

import "fmt"

// CSV column names of an inbound batch.
const (
	ColumnDate        = "Fecha"
	ColumnTrackingKey = "ClaveRastreo"
	ColumnSender      = "Emisora"
	ColumnReceiver    = "Receptora"
	ColumnAccount     = "Cuenta"
	ColumnAmount      = "Cargos"
)

// RequiredColumns lists the inbound CSV columns in their canonical order.
var RequiredColumns = []string{
	ColumnDate,
	ColumnTrackingKey,
	ColumnSender,
	ColumnReceiver,
	ColumnAccount,
	ColumnAmount,
}

// ConfirmationExtension is the file extension of a confirmation document
// inside the downloaded archive.
const ConfirmationExtension = ".xml"

// TransactionRecord is one transfer of the caller's batch. Institution fields
// hold free-text names; they are mapped to codes only when encoding.
// TrackingKey correlates the record with its confirmation and its verdict.
type TransactionRecord struct {
	Date                string `csv:"Fecha" json:"date"`
	TrackingKey         string `csv:"ClaveRastreo" json:"tracking_key"`
	SenderInstitution   string `csv:"Emisora" json:"sender_institution"`
	ReceiverInstitution string `csv:"Receptora" json:"receiver_institution"`
	Account             string `csv:"Cuenta" json:"account"`
	Amount              string `csv:"Cargos" json:"amount"`
}

// Field returns the value of the record for one of the inbound column names.
func (r TransactionRecord) Field(column string) string {
	switch column {
	case ColumnDate:
		return r.Date
	case ColumnTrackingKey:
		return r.TrackingKey
	case ColumnSender:
		return r.SenderInstitution
	case ColumnReceiver:
		return r.ReceiverInstitution
	case ColumnAccount:
		return r.Account
	case ColumnAmount:
		return r.Amount
	default:
		return ""
	}
}

// ConfirmationFileName is the archive entry name the portal uses for the
// confirmation of this record.
func (r TransactionRecord) ConfirmationFileName() string {
	return ConfirmationFileName(r.Date, r.TrackingKey)
}

// ConfirmationFileName builds "[date]trackingKey.xml".
func ConfirmationFileName(date, trackingKey string) string {
	return fmt.Sprintf("[%s]%s%s", date, trackingKey, ConfirmationExtension)
}

// ConfirmationDocument is the portal's authoritative view of one transfer,
// read from a downloaded confirmation file.
type ConfirmationDocument struct {
	TrackingKey         string `json:"tracking_key"`
	Date                string `json:"date"`
	SenderInstitution   string `json:"sender_institution"`
	ReceiverInstitution string `json:"receiver_institution"`
	Account             string `json:"account"`
	Amount              string `json:"amount"`
}
