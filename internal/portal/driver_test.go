package portal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Email = "ops@example.com"
	opts.PollInterval = time.Millisecond
	opts.Timeout = 5 * time.Second
	return opts
}

func newTestDriver(t *testing.T, session *fakeSession, opts Options) (*Driver, *fakeOpener, *logging.MockLogger) {
	t.Helper()
	opener := &fakeOpener{session: session}
	logger := logging.NewMockLogger()
	driver, err := NewDriver(opener, opts, logger)
	require.NoError(t, err)
	return driver, opener, logger
}

func writePayload(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "batch.txt")
	require.NoError(t, os.WriteFile(path, []byte("2024-01-01,ABC1,40012,40014,001,50.00\n"), 0o600))
	return path
}

func TestNewDriver_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{name: "missing email", mutate: func(o *Options) { o.Email = " " }},
		{name: "no attempts", mutate: func(o *Options) { o.MaxSubmitAttempts = 0 }},
		{name: "zero poll interval", mutate: func(o *Options) { o.PollInterval = 0 }},
		{name: "zero timeout", mutate: func(o *Options) { o.Timeout = 0 }},
		{name: "missing url", mutate: func(o *Options) { o.RetrieveURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			_, err := NewDriver(&fakeOpener{}, opts, nil)
			assert.Error(t, err)
		})
	}

	_, err := NewDriver(nil, testOptions(), nil)
	assert.Error(t, err)
}

func TestRun_HappyPath(t *testing.T) {
	dir := t.TempDir()
	payload := writePayload(t, dir)
	session := &fakeSession{
		submits: []submitOutcome{{form: resultFormWithToken}},
		polls:   []bool{true},
		archive: []byte("zip"),
	}
	driver, _, _ := newTestDriver(t, session, testOptions())

	sub, err := driver.Run(context.Background(), payload, dir)
	require.NoError(t, err)

	assert.Equal(t, "T123", sub.Token)
	assert.Equal(t, filepath.Join(dir, "T123.zip"), sub.ArchivePath)
	assert.Equal(t, 1, sub.Attempts)
	assert.Equal(t, 1, sub.Polls)
	assert.Equal(t, StateDone, sub.State)
	assert.Equal(t, FailureNone, sub.Failure)
	assert.Equal(t, []State{
		StateIdle, StateSubmitting, StateTokenWait, StatePollSubmit, StatePolling, StateDownloading, StateDone,
	}, sub.History)

	assert.True(t, session.closed)
	assert.Equal(t, "ops@example.com", session.values[SelectorEmail])
	assert.Equal(t, FormatXML, session.values[SelectorFormat])
	assert.Equal(t, "T123", session.values[SelectorToken])
	assert.Equal(t, 1, session.count("navigate "+DefaultSubmitURL))
	assert.Equal(t, 1, session.count("navigate "+DefaultRetrieveURL))

	_, statErr := os.Stat(payload)
	assert.True(t, os.IsNotExist(statErr), "payload is removed after a successful run")
}

func TestRun_RetriesSubmissionUntilToken(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{
		submits: []submitOutcome{
			{message: "Servicio no disponible"},
			{form: `<form action="descarga.do"><strong>T999</strong></form>`},
			{form: resultFormWithToken},
		},
		polls: []bool{true},
	}
	driver, _, _ := newTestDriver(t, session, testOptions())

	sub, err := driver.Run(context.Background(), writePayload(t, dir), dir)
	require.NoError(t, err)

	assert.Equal(t, "T123", sub.Token, "a form with a single strong element carries no token")
	assert.Equal(t, 3, sub.Attempts)
	assert.Equal(t, 3, session.count("click "+SelectorSubmitButton))
	assert.Equal(t, 3, session.count("upload "+SelectorFileInput))
	assert.Equal(t, 2, session.count("back"))
}

func TestRun_MalformedTokenCountsAsFailedAttempt(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{
		submits: []submitOutcome{
			{form: `<form action="descarga.do"><strong>Token:</strong><strong>../../victim</strong></form>`},
			{form: resultFormWithToken},
		},
		polls: []bool{true},
	}
	driver, _, logger := newTestDriver(t, session, testOptions())

	sub, err := driver.Run(context.Background(), writePayload(t, dir), dir)
	require.NoError(t, err)

	assert.Equal(t, "T123", sub.Token)
	assert.Equal(t, 2, sub.Attempts)
	assert.Equal(t, 1, session.count("back"))
	assert.Equal(t, filepath.Join(dir, "T123.zip"), sub.ArchivePath)
	assert.True(t, logger.HasEntry("WARN", "Ignoring malformed token"))
}

func TestRun_TokenNotObtained(t *testing.T) {
	dir := t.TempDir()
	payload := writePayload(t, dir)
	session := &fakeSession{
		submits: []submitOutcome{{message: "a"}, {message: "b"}, {message: "Archivo invalido"}, {form: resultFormWithToken}},
	}
	driver, _, logger := newTestDriver(t, session, testOptions())

	sub, err := driver.Run(context.Background(), payload, dir)
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperrors.ErrTokenNotObtained))
	var tokenErr *apperrors.TokenNotObtainedError
	require.True(t, errors.As(err, &tokenErr))
	assert.Equal(t, 3, tokenErr.Attempts)
	assert.Equal(t, "Archivo invalido", tokenErr.LastMessage)

	var workflowErr *apperrors.WorkflowError
	require.True(t, errors.As(err, &workflowErr))
	assert.Equal(t, StateTokenWait.String(), workflowErr.State)

	assert.Equal(t, 3, session.count("click "+SelectorSubmitButton), "exactly three submissions")
	assert.Zero(t, session.count("navigate "+DefaultRetrieveURL))
	assert.Equal(t, StateFailed, sub.State)
	assert.Equal(t, FailureTokenNotObtained, sub.Failure)
	assert.Empty(t, sub.Token)
	assert.True(t, session.closed)
	assert.True(t, logger.HasEntry("ERROR", "Portal workflow failed"))
}

func TestRun_PollsUntilReady(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{
		submits: []submitOutcome{{form: resultFormWithToken}},
		polls:   []bool{false, false, true},
	}
	driver, _, _ := newTestDriver(t, session, testOptions())

	sub, err := driver.Run(context.Background(), writePayload(t, dir), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, sub.Polls)
	assert.Equal(t, 3, session.count("click "+SelectorCheckStatus))
	assert.Equal(t, 2, session.count("back"))
	assert.Equal(t, []State{
		StateIdle, StateSubmitting, StateTokenWait,
		StatePollSubmit, StatePolling,
		StatePollSubmit, StatePolling,
		StatePollSubmit, StatePolling,
		StateDownloading, StateDone,
	}, sub.History)
}

func TestRun_DownloadCanceled(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{
		submits:     []submitOutcome{{form: resultFormWithToken}},
		polls:       []bool{true},
		downloadErr: ErrDownloadCanceled,
	}
	driver, _, _ := newTestDriver(t, session, testOptions())

	sub, err := driver.Run(context.Background(), writePayload(t, dir), dir)
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperrors.ErrDownloadCanceled))
	assert.Equal(t, FailureDownloadCanceled, sub.Failure)
	assert.Equal(t, StateFailed, sub.State)
	assert.Empty(t, sub.ArchivePath)
	assert.True(t, session.closed)

	_, statErr := os.Stat(filepath.Join(dir, "T123.zip.crdownload"))
	assert.True(t, os.IsNotExist(statErr), "partial download is removed")
}

func TestRun_Timeout(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{submits: []submitOutcome{{form: resultFormWithToken}}}
	opts := testOptions()
	opts.PollInterval = 5 * time.Millisecond
	opts.Timeout = 60 * time.Millisecond
	driver, _, _ := newTestDriver(t, session, opts)

	sub, err := driver.Run(context.Background(), writePayload(t, dir), dir)
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperrors.ErrTimeout))
	assert.Equal(t, FailureTimeout, sub.Failure)
	assert.Equal(t, StateFailed, sub.State)
	assert.Greater(t, sub.Polls, 1)
	assert.True(t, session.closed)
}

func TestRun_CallerCanceled(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{}
	driver, _, _ := newTestDriver(t, session, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub, err := driver.Run(ctx, writePayload(t, dir), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, apperrors.ErrTimeout))
	assert.Equal(t, FailureSessionError, sub.Failure)
	assert.True(t, session.closed)
}

func TestRun_OpenFailure(t *testing.T) {
	dir := t.TempDir()
	opener := &fakeOpener{err: errors.New("chrome not found")}
	driver, err := NewDriver(opener, testOptions(), logging.Discard())
	require.NoError(t, err)

	sub, err := driver.Run(context.Background(), writePayload(t, dir), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, FailureSessionError, sub.Failure)
	assert.Equal(t, []State{StateIdle, StateFailed}, sub.History)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "PollSubmit", StatePollSubmit.String())
	assert.Equal(t, "Unknown", State(42).String())
	assert.True(t, StateDone.Terminal())
	assert.False(t, StatePolling.Terminal())
	assert.Equal(t, "DownloadCanceled", FailureDownloadCanceled.String())
}

func TestRun_TerminalStateIsFinal(t *testing.T) {
	logger := logging.NewMockLogger()
	r := &run{
		sub:    &Submission{State: StateDone, History: []State{StateIdle, StateDone}},
		logger: logger,
	}

	r.transition(StateFailed)

	assert.Equal(t, StateDone, r.sub.State)
	assert.Equal(t, []State{StateIdle, StateDone}, r.sub.History)
	assert.True(t, logger.HasEntry("WARN", "Ignoring transition from terminal state"))
}
