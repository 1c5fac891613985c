package portal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// submitOutcome scripts one answer of the submission page.
type submitOutcome struct {
	form    string // result form markup; empty means the error message shows
	message string
}

const resultFormWithToken = `<form action="descarga.do"><strong>Token:</strong><strong> T123 </strong></form>`

// fakeSession replays a scripted portal. Unscripted polls keep answering
// "still processing".
type fakeSession struct {
	mu sync.Mutex

	ctx         context.Context
	downloadDir string

	submits     []submitOutcome
	polls       []bool // true means the download button is shown
	downloadErr error
	archive     []byte

	calls  []string
	values map[string]string
	closed bool
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeSession) Navigate(url string) error {
	f.record("navigate " + url)
	return f.ctx.Err()
}

func (f *fakeSession) Back() error {
	f.record("back")
	return nil
}

func (f *fakeSession) SetUploadFile(selector, path string) error {
	f.record("upload " + selector)
	return nil
}

func (f *fakeSession) SetValue(selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[selector] = value
	return nil
}

func (f *fakeSession) Click(selector string) error {
	f.record("click " + selector)
	return nil
}

func (f *fakeSession) WaitAny(selectors ...string) (int, error) {
	if err := f.ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch selectors[0] {
	case SelectorResultForm:
		if len(f.submits) == 0 {
			return 1, nil
		}
		if f.submits[0].form != "" {
			return 0, nil
		}
		return 1, nil
	case SelectorProcessingForm:
		if len(f.polls) == 0 {
			return 0, nil
		}
		ready := f.polls[0]
		f.polls = f.polls[1:]
		if ready {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.New("unexpected wait")
}

func (f *fakeSession) OuterHTML(selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	outcome := f.submits[0]
	f.submits = f.submits[1:]
	return outcome.form, nil
}

func (f *fakeSession) Text(selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submits) == 0 {
		return "", nil
	}
	outcome := f.submits[0]
	f.submits = f.submits[1:]
	return outcome.message, nil
}

func (f *fakeSession) Download(clickSelector, fileName string) (string, error) {
	f.record("click " + clickSelector)
	target := filepath.Join(f.downloadDir, fileName)
	if f.downloadErr != nil {
		_ = os.WriteFile(target+".crdownload", []byte("partial"), 0o600)
		return "", f.downloadErr
	}
	if err := os.WriteFile(target, f.archive, 0o600); err != nil {
		return "", err
	}
	return target, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeOpener hands out a prepared session bound to the run context.
type fakeOpener struct {
	session *fakeSession
	err     error
	opened  int
}

func (o *fakeOpener) Open(ctx context.Context, downloadDir string) (Session, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	o.session.ctx = ctx
	o.session.downloadDir = downloadDir
	return o.session, nil
}
