// Package portal drives the Banxico CEP portal through a browser session:
// it submits an encoded batch, waits for the token, polls until the result
// is ready and downloads the confirmation archive.
package portal

import (
	"context"

	"fjacquet/cep-verify/internal/apperrors"
)

// ErrDownloadCanceled is returned by Session.Download when the browser
// reports the download as canceled.
var ErrDownloadCanceled = apperrors.ErrDownloadCanceled

// Session is one isolated browser tab. Calls are issued one at a time; a
// Session is never shared between submissions. All calls are bound to the
// context the session was opened with.
type Session interface {
	Navigate(url string) error
	Back() error
	SetUploadFile(selector, path string) error
	SetValue(selector, value string) error
	Click(selector string) error
	// WaitAny blocks until one of the selectors matches and returns its index.
	WaitAny(selectors ...string) (int, error)
	OuterHTML(selector string) (string, error)
	Text(selector string) (string, error)
	// Download clicks clickSelector and waits for the resulting download to
	// complete. The file is stored as fileName in the session's download
	// directory and its path is returned.
	Download(clickSelector, fileName string) (string, error)
	Close() error
}

// Opener acquires a fresh Session whose downloads land in downloadDir.
type Opener interface {
	Open(ctx context.Context, downloadDir string) (Session, error)
}
