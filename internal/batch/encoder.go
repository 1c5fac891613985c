package batch

import (
	"bytes"
	"fmt"

	"fjacquet/cep-verify/internal/fileutils"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/normalizer"
)

// Encoder turns records into the portal's upload format.
type Encoder struct {
	table  *normalizer.Table
	logger logging.Logger
}

// NewEncoder creates an Encoder resolving institution codes through table.
func NewEncoder(table *normalizer.Table, logger logging.Logger) *Encoder {
	if table == nil {
		table = normalizer.DefaultTable()
	}
	return &Encoder{
		table:  table,
		logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "encoder"),
	}
}

// Encode emits one newline-terminated line per record, in input order:
//
//	date,trackingKey,senderCode,receiverCode,account,amount
//
// An empty batch yields an empty payload. Unknown institutions are written
// as an empty code; the portal rejects such lines on its side.
func (e *Encoder) Encode(records []models.TransactionRecord) []byte {
	var buf bytes.Buffer
	for _, rec := range records {
		sender := e.code(rec.TrackingKey, rec.SenderInstitution)
		receiver := e.code(rec.TrackingKey, rec.ReceiverInstitution)
		fmt.Fprintf(&buf, "%s,%s,%s,%s,%s,%s\n",
			rec.Date, rec.TrackingKey, sender, receiver, rec.Account, rec.Amount)
	}
	return buf.Bytes()
}

func (e *Encoder) code(trackingKey, institution string) string {
	code := e.table.Code(institution)
	if code == normalizer.UnknownCode {
		e.logger.Warn("Unknown institution, encoding empty code",
			logging.F(logging.FieldTrackingKey, trackingKey),
			logging.F(logging.FieldInstitution, institution))
	}
	return code
}

// WritePayload encodes records into path, creating parent directories.
// The file is only readable by the current user.
func (e *Encoder) WritePayload(path string, records []models.TransactionRecord) error {
	if err := fileutils.WriteFile(path, e.Encode(records), fileutils.FilePerm); err != nil {
		return fmt.Errorf("error writing payload: %w", err)
	}
	e.logger.Debug("Wrote upload payload",
		logging.F(logging.FieldFile, path),
		logging.F(logging.FieldCount, len(records)))
	return nil
}
