package server

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/batch"
	"fjacquet/cep-verify/internal/logging"
)

// Response texts kept from the portal automation's original HTTP surface.
const (
	msgNoFile           = "No file uploaded. Please upload a file."
	msgNotCSV           = "Invalid file format. Please upload a CSV file."
	msgTokenNotObtained = "Failed to retrieve token after maximum attempts, check the status of banxico."
	msgDownloadCanceled = "Error while downloading file"
	msgExtraction       = "Error while unzipping file"
	msgTimeout          = "Timed out waiting for banxico, please try again later."
	msgAutomation       = "Error during portal automation"
	msgUpload           = "Error during file upload and processing"
)

const multipartMemory = 1 << 20

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, msgUpload)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) && !errors.Is(err, http.ErrMissingBoundary) {
			s.logger.WithError(err).Warn("Failed to parse upload")
		}
		writeText(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.WithError(err).Warn("Failed to remove multipart temp files")
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeText(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	if !isCSV(header.Header.Get("Content-Type"), header.Filename) {
		writeText(w, http.StatusBadRequest, msgNotCSV)
		return
	}

	records, err := batch.ReadCSV(file)
	if err != nil {
		var inputErr *apperrors.InvalidInputError
		if errors.As(err, &inputErr) {
			writeText(w, http.StatusBadRequest, inputErr.Error())
			return
		}
		s.logger.WithError(err).Error("Failed to read upload")
		writeText(w, http.StatusInternalServerError, msgUpload)
		return
	}

	logger := s.logger.WithFields(
		logging.F(logging.FieldFile, header.Filename),
		logging.F(logging.FieldCount, len(records)))
	logger.Info("Batch received")

	result, err := s.verifier.Verify(r.Context(), records)
	if err != nil {
		status, message := classify(err)
		logger.WithError(err).Error("Verification failed", logging.F(logging.FieldStatus, status))
		writeText(w, status, message)
		return
	}

	writeText(w, http.StatusOK, result.Verdicts.String())
}

// classify maps a workflow failure to the response sent to the caller.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrTokenNotObtained):
		return http.StatusInternalServerError, msgTokenNotObtained
	case errors.Is(err, apperrors.ErrDownloadCanceled):
		return http.StatusInternalServerError, msgDownloadCanceled
	case errors.Is(err, apperrors.ErrExtractionFailed):
		return http.StatusInternalServerError, msgExtraction
	case errors.Is(err, apperrors.ErrTimeout):
		return http.StatusInternalServerError, msgTimeout
	default:
		return http.StatusInternalServerError, msgAutomation
	}
}

func isCSV(contentType, filename string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/csv" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}
