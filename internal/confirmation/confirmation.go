// Package confirmation reads the portal's per-transfer confirmation documents.
package confirmation

import (
	"fmt"
	"io"
	"os"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/xmlutils"

	"gopkg.in/xmlpath.v2"
)

// Field names reported by RecordParseError.
const (
	FieldRoot        = "SPEI_Tercero"
	FieldTrackingKey = "claveRastreo"
	FieldDate        = "FechaOperacion"
	FieldSender      = "BancoEmisor"
	FieldReceiver    = "BancoReceptor"
	FieldAccount     = "Cuenta"
	FieldAmount      = "MontoPago"
)

var paths = xmlutils.DefaultCEPXPaths()

// ParseFile reads the confirmation document at path.
func ParseFile(path string) (*models.ConfirmationDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening confirmation %s: %w", path, err)
	}
	defer file.Close()

	return parse(path, file)
}

// Parse reads a confirmation document from r.
func Parse(r io.Reader) (*models.ConfirmationDocument, error) {
	return parse("<stream>", r)
}

func parse(name string, r io.Reader) (*models.ConfirmationDocument, error) {
	root, err := xmlutils.Parse(r)
	if err != nil {
		return nil, &apperrors.RecordParseError{FilePath: name, Err: err}
	}

	exists, err := xmlutils.Exists(root, paths.Root)
	if err != nil {
		return nil, &apperrors.RecordParseError{FilePath: name, Err: err}
	}
	if !exists {
		return nil, &apperrors.RecordParseError{FilePath: name, Field: FieldRoot}
	}

	doc := &models.ConfirmationDocument{}
	fields := []struct {
		name  string
		xpath string
		dest  *string
	}{
		{FieldTrackingKey, paths.Operation.TrackingKey, &doc.TrackingKey},
		{FieldDate, paths.Operation.Date, &doc.Date},
		{FieldSender, paths.Sender.Institution, &doc.SenderInstitution},
		{FieldReceiver, paths.Beneficiary.Institution, &doc.ReceiverInstitution},
		{FieldAccount, paths.Beneficiary.Account, &doc.Account},
		{FieldAmount, paths.Beneficiary.Amount, &doc.Amount},
	}

	for _, f := range fields {
		value, err := required(root, f.xpath)
		if err != nil {
			return nil, &apperrors.RecordParseError{FilePath: name, Field: f.name, Err: err}
		}
		*f.dest = value
	}
	return doc, nil
}

func required(root *xmlpath.Node, xpath string) (string, error) {
	value, ok, err := xmlutils.First(root, xpath)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attribute not found")
	}
	return value, nil
}
