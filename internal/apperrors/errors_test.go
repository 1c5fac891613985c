package apperrors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInputError(t *testing.T) {
	tests := []struct {
		name     string
		err      *InvalidInputError
		expected string
	}{
		{
			name:     "row level",
			err:      &InvalidInputError{Row: 3, Field: "ClaveRastreo", Reason: "required field is empty"},
			expected: "invalid input at row 3, field ClaveRastreo: required field is empty",
		},
		{
			name:     "file level",
			err:      &InvalidInputError{Reason: "missing column Cargos"},
			expected: "invalid input: missing column Cargos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
			assert.True(t, errors.Is(tt.err, ErrInvalidInput))
		})
	}
}

func TestTokenNotObtainedError(t *testing.T) {
	err := &TokenNotObtainedError{Attempts: 3}
	assert.Equal(t, "token not obtained after 3 attempts", err.Error())
	assert.True(t, errors.Is(err, ErrTokenNotObtained))

	err.LastMessage = "formato inválido"
	assert.Contains(t, err.Error(), "formato inválido")
}

func TestExtractionError(t *testing.T) {
	err := &ExtractionError{ArchivePath: "T1.zip", Entry: "a.xml", Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "extraction of T1.zip failed at entry a.xml: unexpected EOF", err.Error())
	assert.True(t, errors.Is(err, ErrExtractionFailed))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestRecordParseError(t *testing.T) {
	withField := &RecordParseError{FilePath: "[2024-01-01]ABC1.xml", Field: "MontoPago"}
	assert.Equal(t, "confirmation [2024-01-01]ABC1.xml: missing or invalid MontoPago", withField.Error())
	assert.True(t, errors.Is(withField, ErrRecordParse))

	wrapped := &RecordParseError{FilePath: "x.xml", Err: io.EOF}
	assert.True(t, errors.Is(wrapped, ErrRecordParse))
	assert.True(t, errors.Is(wrapped, io.EOF))
}

func TestWorkflowError(t *testing.T) {
	err := &WorkflowError{State: "Downloading", Err: ErrDownloadCanceled}
	assert.Equal(t, "portal workflow failed in state Downloading: download canceled", err.Error())
	assert.True(t, errors.Is(err, ErrDownloadCanceled))

	var wf *WorkflowError
	assert.True(t, errors.As(error(err), &wf))
	assert.Equal(t, "Downloading", wf.State)
}
