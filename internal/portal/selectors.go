package portal

// Portal endpoints.
const (
	DefaultSubmitURL   = "https://www.banxico.org.mx/cep-scl/inicio.do"
	DefaultRetrieveURL = "https://www.banxico.org.mx/cep-scl/inicio2.do"

	// FormatXML selects structured XML confirmations in the submission form.
	FormatXML = "2"

	// ArchiveExtension is appended to the token to name the downloaded archive.
	ArchiveExtension = ".zip"
)

// Submission page.
const (
	SelectorFileInput    = "#input-file"
	SelectorEmail        = `input[name="correo"]`
	SelectorFormat       = `select[name="formato"]`
	SelectorSubmitButton = "#btn_grupo-footer"
	SelectorResultForm   = `form[action="descarga.do"]`
	SelectorErrorMessage = "p.mensaje_error"
)

// Retrieval page.
const (
	SelectorToken          = `input[name="token"]`
	SelectorCheckStatus    = `input[type="button"][value="Consultar resultado"]`
	SelectorProcessingForm = `form.styled.horizontal[style*="padding:20px;"]`
	SelectorDownload       = `input[type="button"][value="Descargar"]`
)

// ArchiveName returns the file name the portal uses for a token's archive.
func ArchiveName(token string) string {
	return token + ArchiveExtension
}
