// Package normalizer maps institution names to SPEI participant codes and
// canonicalizes the values compared during reconciliation.
package normalizer

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// UnknownCode is returned by Table.Code for names absent from the table.
const UnknownCode = ""

// The CEP portal still prints BBVA under its former name.
const (
	aliasFolkName   = "BBVA BANCOMER"
	aliasFormalName = "BBVA MEXICO"
)

// Canonical applies the portal alias rule to an institution name. Every name
// other than the alias passes through unchanged, and
// Canonical(Canonical(x)) == Canonical(x).
func Canonical(name string) string {
	if name == aliasFolkName {
		return aliasFormalName
	}
	return name
}

// Table maps canonical institution names to participant codes. Names are
// case and format sensitive. Codes are kept as strings so values such as
// "2001" survive verbatim. A Table is read-only once built and safe for
// concurrent use.
type Table struct {
	codes map[string]string
}

var defaultCodes = map[string]string{
	"ABC CAPITAL":     "40138",
	"ACTINVER":        "40133",
	"AFIRME":          "40062",
	"ALTERNATIVOS":    "90661",
	"ARCUS":           "90706",
	"ASP INTEGRA OPC": "90659",
	"AUTOFIN":         "40128",
	"AZTECA":          "40127",
	"BaBien":          "37166",
	"BAJIO":           "40030",
	"BANAMEX":         "40002",
	"BANCO COVALTO":   "40154",
	"BANCOMEXT":       "37006",
	"BANCOPPEL":       "40137",
	"BANCO S3":        "40160",
	"BANCREA":         "40152",
	"BANJERCITO":      "37019",
	"BANKAOOL":        "40147",
	"BANK OF AMERICA": "40106",
	"BANK OF CHINA":   "40159",
	"BANOBRAS":        "37009",
	"BANORTE":         "40072",
	"BANREGIO":        "40058",
	"BANSI":           "40060",
	"BANXICO":         "2001",
	"BARCLAYS":        "40129",
	"BBASE":           "40145",
	"BBVA MEXICO":     "40012",
	"BMONEX":          "40112",
	"CAJA POP MEXICA": "90677",
	"CAJA TELEFONIST": "90683",
	"CB INTERCAM":     "90630",
	"CIBANCO":         "40143",
	"CI BOLSA":        "90631",
	"CLS":             "90901",
	"CoDi Valida":     "90903",
	"COMPARTAMOS":     "40130",
	"CONSUBANCO":      "40140",
	"CREDICAPITAL":    "90652",
	"CREDICLUB":       "90688",
	"CRISTOBAL COLON": "90680",
	"Cuenca":          "90723",
	"DONDE":           "40151",
	"FINAMEX":         "90616",
	"FINCOMUN":        "90634",
	"FOMPED":          "90689",
	"FONDO (FIRA)":    "90685",
	"GBM":             "90601",
	"HIPOTECARIA FED": "37168",
	"HSBC":            "40021",
	"ICBC":            "40155",
	"INBURSA":         "40036",
	"INDEVAL":         "90902",
	"INMOBILIARIO":    "40150",
	"INTERCAM BANCO":  "40136",
	"INVEX":           "40059",
	"JP MORGAN":       "40110",
	"KUSPIT":          "90653",
	"LIBERTAD":        "90670",
	"MASARI":          "90602",
	"Mercado Pago W":  "90722",
	"MIFEL":           "40042",
	"MIZUHO BANK":     "40158",
	"MONEXCB":         "90600",
	"MUFG":            "40108",
	"MULTIVA BANCO":   "40132",
	"NAFIN":           "37135",
	"NU MEXICO":       "90638",
	"NVIO":            "90710",
	"PAGATODO":        "40148",
	"PROFUTURO":       "90620",
	"SABADELL":        "40156",
	"SANTANDER":       "40014",
	"SCOTIABANK":      "40044",
	"SHINHAN":         "40157",
	"STP":             "90646",
	"TESORED":         "90703",
	"TRANSFER":        "90684",
	"UNAGRA":          "90656",
	"VALMEX":          "90617",
	"VALUE":           "90605",
	"VECTOR":          "90608",
	"VE POR MAS":      "40113",
	"VOLKSWAGEN":      "40141",
}

// NewTable builds a Table from a name to code map. The map is copied.
func NewTable(codes map[string]string) *Table {
	copied := make(map[string]string, len(codes))
	for name, code := range codes {
		copied[name] = code
	}
	return &Table{codes: copied}
}

// DefaultTable returns the built-in SPEI participant table.
func DefaultTable() *Table {
	return NewTable(defaultCodes)
}

type tableFile struct {
	Institutions map[string]string `yaml:"institutions"`
}

// LoadTable reads a YAML file of the form
//
//	institutions:
//	  NEW BANK: "40999"
//
// and returns the default table with those entries added or overridden.
// An empty path returns the default table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading institutions file: %w", err)
	}

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing institutions file %s: %w", path, err)
	}

	merged := make(map[string]string, len(defaultCodes)+len(file.Institutions))
	for name, code := range defaultCodes {
		merged[name] = code
	}
	for name, code := range file.Institutions {
		if code == "" {
			return nil, fmt.Errorf("institutions file %s: empty code for %q", path, name)
		}
		merged[name] = code
	}
	return &Table{codes: merged}, nil
}

// Code returns the participant code for name after applying the alias rule,
// or UnknownCode. It never fails.
func (t *Table) Code(name string) string {
	if t == nil {
		return UnknownCode
	}
	code, ok := t.codes[Canonical(name)]
	if !ok {
		return UnknownCode
	}
	return code
}

// Len returns the number of institutions in the table.
func (t *Table) Len() int {
	return len(t.codes)
}

// Names returns the institution names sorted alphabetically.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.codes))
	for name := range t.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
