// Package batch reads an inbound batch of transfers and encodes it into the
// flat upload payload accepted by the CEP portal.
package batch

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/models"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses an uploaded batch into records. The header must carry every
// column in models.RequiredColumns; extra columns are ignored. Values are
// trimmed and every required field must be non-empty.
func ReadCSV(r io.Reader) ([]models.TransactionRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading batch: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &apperrors.InvalidInputError{Reason: "empty upload"}
	}

	if err := checkHeader(data); err != nil {
		return nil, err
	}

	var rows []*models.TransactionRecord
	if err := gocsv.UnmarshalCSV(newReader(bytes.NewReader(data)), &rows); err != nil {
		return nil, &apperrors.InvalidInputError{Reason: fmt.Sprintf("malformed CSV: %v", err)}
	}

	records := make([]models.TransactionRecord, 0, len(rows))
	for i, row := range rows {
		rec := trimRecord(*row)
		if err := validate(i+1, rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	return reader
}

func checkHeader(data []byte) error {
	header, err := newReader(bytes.NewReader(data)).Read()
	if err != nil {
		return &apperrors.InvalidInputError{Reason: fmt.Sprintf("unreadable header: %v", err)}
	}

	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}

	var missing []string
	for _, name := range models.RequiredColumns {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &apperrors.InvalidInputError{
			Reason: fmt.Sprintf("missing column(s) %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

func trimRecord(rec models.TransactionRecord) models.TransactionRecord {
	return models.TransactionRecord{
		Date:                strings.TrimSpace(rec.Date),
		TrackingKey:         strings.TrimSpace(rec.TrackingKey),
		SenderInstitution:   strings.TrimSpace(rec.SenderInstitution),
		ReceiverInstitution: strings.TrimSpace(rec.ReceiverInstitution),
		Account:             strings.TrimSpace(rec.Account),
		Amount:              strings.TrimSpace(rec.Amount),
	}
}

func validate(row int, rec models.TransactionRecord) error {
	for _, column := range models.RequiredColumns {
		if rec.Field(column) == "" {
			return &apperrors.InvalidInputError{Row: row, Field: column, Reason: "required field is empty"}
		}
	}
	return nil
}
