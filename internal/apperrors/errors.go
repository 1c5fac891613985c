// Package apperrors defines the error taxonomy of the verification workflow.
//
// Batch-fatal conditions (token, download, extraction, timeout) abort a
// request; per-record conditions never leave the reconciliation engine and
// degrade to a false verdict instead.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTokenNotObtained = errors.New("token not obtained")
	ErrDownloadCanceled = errors.New("download canceled")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrTimeout          = errors.New("workflow timed out")
	ErrRecordParse      = errors.New("confirmation document unparsable")
)

// InvalidInputError reports an upload that cannot become a batch.
// Row is 1-based and counts data rows only; zero means the whole file.
type InvalidInputError struct {
	Row    int
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input at row %d, field %s: %s", e.Row, e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// TokenNotObtainedError is returned once every submission attempt failed.
type TokenNotObtainedError struct {
	Attempts int
	// LastMessage is the portal's error text from the final attempt, if any.
	LastMessage string
}

func (e *TokenNotObtainedError) Error() string {
	if e.LastMessage != "" {
		return fmt.Sprintf("token not obtained after %d attempts: %s", e.Attempts, e.LastMessage)
	}
	return fmt.Sprintf("token not obtained after %d attempts", e.Attempts)
}

func (e *TokenNotObtainedError) Unwrap() error {
	return ErrTokenNotObtained
}

// ExtractionError reports a corrupt or unreadable archive.
type ExtractionError struct {
	ArchivePath string
	Entry       string
	Err         error
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extraction of %s failed at entry %s: %v", e.ArchivePath, e.Entry, e.Err)
	}
	return fmt.Sprintf("extraction of %s failed: %v", e.ArchivePath, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailed, e.Err}
}

// RecordParseError reports a confirmation document that is present but
// malformed.
type RecordParseError struct {
	FilePath string
	Field    string
	Err      error
}

func (e *RecordParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("confirmation %s: missing or invalid %s", e.FilePath, e.Field)
	}
	return fmt.Sprintf("confirmation %s: %v", e.FilePath, e.Err)
}

func (e *RecordParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRecordParse}
	}
	return []error{ErrRecordParse, e.Err}
}

// WorkflowError ties a terminal failure to the driver state it happened in.
type WorkflowError struct {
	State string
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("portal workflow failed in state %s: %v", e.State, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
