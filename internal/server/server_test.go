package server

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/verifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchCSV = "Fecha,ClaveRastreo,Emisora,Receptora,Cuenta,Cargos\n" +
	"2024-01-01,ABC1,BBVA MEXICO,SANTANDER,001,50.00\n" +
	"2024-01-02,DEF2,BANORTE,HSBC,002,10\n"

type stubVerifier struct {
	result  *verifier.Result
	err     error
	records []models.TransactionRecord
	ctx     context.Context
}

func (s *stubVerifier) Verify(ctx context.Context, records []models.TransactionRecord) (*verifier.Result, error) {
	s.ctx = ctx
	s.records = records
	return s.result, s.err
}

func uploadRequest(t *testing.T, field, filename, contentType, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleVerify_Success(t *testing.T) {
	stub := &stubVerifier{result: &verifier.Result{Verdicts: models.VerdictList{
		{TrackingKey: "ABC1", Matched: true},
		{TrackingKey: "DEF2", Matched: false},
	}}}
	s := New(stub, 1<<20, logging.Discard())

	rec := serve(s, uploadRequest(t, "file", "batch.csv", "text/csv", batchCSV))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABC1,true;DEF2,false;", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Len(t, stub.records, 2)
	assert.Equal(t, "DEF2", stub.records[1].TrackingKey)
	assert.NotNil(t, stub.ctx)
}

func TestHandleVerify_AcceptsCSVByExtension(t *testing.T) {
	stub := &stubVerifier{result: &verifier.Result{}}
	s := New(stub, 0, logging.Discard())

	rec := serve(s, uploadRequest(t, "file", "BATCH.CSV", "application/octet-stream", batchCSV))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleVerify_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		request  func(t *testing.T) *http.Request
		wantBody string
	}{
		{
			name: "not multipart",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("x"))
			},
			wantBody: msgNoFile,
		},
		{
			name: "wrong field",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "upload", "batch.csv", "text/csv", batchCSV)
			},
			wantBody: msgNoFile,
		},
		{
			name: "not a csv",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "batch.xlsx", "application/vnd.ms-excel", batchCSV)
			},
			wantBody: msgNotCSV,
		},
		{
			name: "missing column",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "batch.csv", "text/csv", "Fecha,ClaveRastreo\n2024-01-01,A\n")
			},
			wantBody: "invalid input: missing column(s) Emisora, Receptora, Cuenta, Cargos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubVerifier{}
			s := New(stub, 1<<20, logging.Discard())

			rec := serve(s, tt.request(t))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Nil(t, stub.records, "workflow is not started")
		})
	}
}

func TestHandleVerify_WorkflowFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantBody string
	}{
		{
			name:     "token not obtained",
			err:      &apperrors.WorkflowError{State: "TokenWait", Err: &apperrors.TokenNotObtainedError{Attempts: 3}},
			wantBody: msgTokenNotObtained,
		},
		{name: "download canceled", err: &apperrors.WorkflowError{State: "Downloading", Err: apperrors.ErrDownloadCanceled}, wantBody: msgDownloadCanceled},
		{name: "extraction", err: &apperrors.ExtractionError{ArchivePath: "x.zip", Err: errors.New("bad")}, wantBody: msgExtraction},
		{name: "timeout", err: &apperrors.WorkflowError{State: "Polling", Err: apperrors.ErrTimeout}, wantBody: msgTimeout},
		{name: "anything else", err: errors.New("chrome crashed"), wantBody: msgAutomation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&stubVerifier{err: tt.err}, 1<<20, logging.Discard())

			rec := serve(s, uploadRequest(t, "file", "batch.csv", "text/csv", batchCSV))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHealthz(t *testing.T) {
	s := New(&stubVerifier{}, 0, logging.Discard())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestLogging(t *testing.T) {
	logger := logging.NewMockLogger()
	s := New(&stubVerifier{}, 0, logger)

	serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logger.GetEntriesByLevel("INFO")
	require.NotEmpty(t, entries)
	status, ok := entries[len(entries)-1].FieldValue(logging.FieldStatus)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
}
