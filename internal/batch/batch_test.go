package batch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/normalizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCSV = `Fecha,ClaveRastreo,Emisora,Receptora,Cuenta,Cargos
2024-01-01,ABC1,BBVA MEXICO,SANTANDER,001,50.00
2024-01-02, DEF2 ,BANORTE,BANXICO,002,"1,200"
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(validCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, models.TransactionRecord{
		Date:                "2024-01-01",
		TrackingKey:         "ABC1",
		SenderInstitution:   "BBVA MEXICO",
		ReceiverInstitution: "SANTANDER",
		Account:             "001",
		Amount:              "50.00",
	}, records[0])
	assert.Equal(t, "DEF2", records[1].TrackingKey, "values are trimmed")
	assert.Equal(t, "1,200", records[1].Amount)
}

func TestReadCSV_BOMAndReorderedColumns(t *testing.T) {
	input := "\xEF\xBB\xBFCargos,Cuenta,Receptora,Emisora,ClaveRastreo,Fecha,Notas\n10,123,HSBC,AZTECA,K1,2024-03-01,ignored\n"
	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "K1", records[0].TrackingKey)
	assert.Equal(t, "2024-03-01", records[0].Date)
	assert.Equal(t, "10", records[0].Amount)
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("Fecha,ClaveRastreo,Emisora,Receptora,Cuenta,Cargos\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadCSV_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantRow   int
		wantField string
		contains  string
	}{
		{name: "empty upload", input: "  \n", contains: "empty upload"},
		{name: "missing column", input: "Fecha,ClaveRastreo,Emisora,Receptora,Cuenta\n2024-01-01,A,B,C,D\n", contains: "Cargos"},
		{name: "empty required field", input: "Fecha,ClaveRastreo,Emisora,Receptora,Cuenta,Cargos\n2024-01-01,A,B,C,D,1\n2024-01-01,,B,C,D,1\n", wantRow: 2, wantField: "ClaveRastreo"},
		{name: "ragged row", input: "Fecha,ClaveRastreo,Emisora,Receptora,Cuenta,Cargos\n2024-01-01,A,B\n", contains: "malformed CSV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

			var inputErr *apperrors.InvalidInputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tt.wantRow, inputErr.Row)
			assert.Equal(t, tt.wantField, inputErr.Field)
			if tt.contains != "" {
				assert.Contains(t, inputErr.Error(), tt.contains)
			}
		})
	}
}

func TestEncoder_Encode(t *testing.T) {
	encoder := NewEncoder(normalizer.DefaultTable(), logging.Discard())
	records := []models.TransactionRecord{
		{Date: "2024-01-01", TrackingKey: "ABC1", SenderInstitution: "BBVA MEXICO", ReceiverInstitution: "SANTANDER", Account: "001", Amount: "50.00"},
		{Date: "2024-01-02", TrackingKey: "DEF2", SenderInstitution: "BBVA BANCOMER", ReceiverInstitution: "BANXICO", Account: "002", Amount: "7"},
	}

	payload := string(encoder.Encode(records))
	assert.Equal(t,
		"2024-01-01,ABC1,40012,40014,001,50.00\n"+
			"2024-01-02,DEF2,40012,2001,002,7\n",
		payload)
}

func TestEncoder_EmptyBatch(t *testing.T) {
	encoder := NewEncoder(nil, logging.Discard())
	assert.Empty(t, encoder.Encode(nil))
	assert.Empty(t, encoder.Encode([]models.TransactionRecord{}))
}

func TestEncoder_UnknownInstitutionWarns(t *testing.T) {
	mock := logging.NewMockLogger()
	encoder := NewEncoder(normalizer.DefaultTable(), mock)

	payload := encoder.Encode([]models.TransactionRecord{
		{Date: "2024-01-01", TrackingKey: "X1", SenderInstitution: "NOWHERE BANK", ReceiverInstitution: "HSBC", Account: "9", Amount: "1"},
	})

	assert.Equal(t, "2024-01-01,X1,,40021,9,1\n", string(payload))
	warnings := mock.GetEntriesByLevel("WARN")
	require.Len(t, warnings, 1)
	institution, _ := warnings[0].FieldValue(logging.FieldInstitution)
	assert.Equal(t, "NOWHERE BANK", institution)
}

func TestEncoder_WritePayload(t *testing.T) {
	encoder := NewEncoder(normalizer.DefaultTable(), logging.Discard())
	path := filepath.Join(t.TempDir(), "nested", "batch.txt")

	records := []models.TransactionRecord{
		{Date: "2024-01-01", TrackingKey: "ABC1", SenderInstitution: "HSBC", ReceiverInstitution: "HSBC", Account: "1", Amount: "1"},
	}
	require.NoError(t, encoder.WritePayload(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01,ABC1,40021,40021,1,1\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
