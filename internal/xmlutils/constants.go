// Package xmlutils provides XML-related utility functions used throughout the application.
package xmlutils

// CEP contains the XPath expressions used to read a SPEI third-party
// confirmation document (root element SPEI_Tercero).
type CEP struct {
	Root string

	// Operation holds attributes of the root element
	Operation struct {
		TrackingKey string
		Date        string
	}

	// Sender holds attributes of the Ordenante block
	Sender struct {
		Institution string
	}

	// Beneficiary holds attributes of the Beneficiario block
	Beneficiary struct {
		Institution string
		Account     string
		Amount      string
	}
}

// DefaultCEPXPaths returns a CEP struct with the default XPath expressions
func DefaultCEPXPaths() CEP {
	cep := CEP{}

	cep.Root = "/SPEI_Tercero"

	cep.Operation.TrackingKey = "/SPEI_Tercero/@claveRastreo"
	cep.Operation.Date = "/SPEI_Tercero/@FechaOperacion"

	cep.Sender.Institution = "/SPEI_Tercero/Ordenante/@BancoEmisor"

	cep.Beneficiary.Institution = "/SPEI_Tercero/Beneficiario/@BancoReceptor"
	cep.Beneficiary.Account = "/SPEI_Tercero/Beneficiario/@Cuenta"
	cep.Beneficiary.Amount = "/SPEI_Tercero/Beneficiario/@MontoPago"

	return cep
}
