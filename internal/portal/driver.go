package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fjacquet/cep-verify/internal/apperrors"
	"fjacquet/cep-verify/internal/logging"
)

// Options configures a Driver.
type Options struct {
	SubmitURL   string
	RetrieveURL string
	// Email is the operator contact address required by both portal forms.
	Email  string
	Format string

	MaxSubmitAttempts int
	PollInterval      time.Duration
	// Timeout bounds a whole run, polling included.
	Timeout time.Duration
}

// DefaultOptions returns the portal's production endpoints and retry policy.
// Email has no default.
func DefaultOptions() Options {
	return Options{
		SubmitURL:         DefaultSubmitURL,
		RetrieveURL:       DefaultRetrieveURL,
		Format:            FormatXML,
		MaxSubmitAttempts: 3,
		PollInterval:      3 * time.Second,
		Timeout:           10 * time.Minute,
	}
}

// Submission is the outcome of one run.
type Submission struct {
	Token       string
	ArchivePath string
	Attempts    int
	Polls       int
	State       State
	Failure     FailureKind
	History     []State
}

// Driver runs the portal workflow. A Driver holds no per-run state and may
// serve concurrent runs, each on its own Session.
type Driver struct {
	opener Opener
	opts   Options
	logger logging.Logger
}

// NewDriver validates opts and creates a Driver.
func NewDriver(opener Opener, opts Options, logger logging.Logger) (*Driver, error) {
	if opener == nil {
		return nil, errors.New("portal: opener is required")
	}
	if strings.TrimSpace(opts.Email) == "" {
		return nil, errors.New("portal: contact email is required")
	}
	if opts.SubmitURL == "" || opts.RetrieveURL == "" {
		return nil, errors.New("portal: submit and retrieve URLs are required")
	}
	if opts.MaxSubmitAttempts < 1 {
		return nil, fmt.Errorf("portal: max submit attempts must be at least 1, got %d", opts.MaxSubmitAttempts)
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("portal: poll interval must be positive, got %s", opts.PollInterval)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("portal: timeout must be positive, got %s", opts.Timeout)
	}
	if opts.Format == "" {
		opts.Format = FormatXML
	}

	return &Driver{
		opener: opener,
		opts:   opts,
		logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "portal"),
	}, nil
}

// Options returns the driver's effective options.
func (d *Driver) Options() Options {
	return d.opts
}

// Run submits the payload at payloadPath and downloads the resulting archive
// into downloadDir. The returned Submission is never nil and records the
// states visited. On success the payload file is removed and
// Submission.ArchivePath points at "<downloadDir>/<token>.zip".
//
// Failures are reported as *apperrors.WorkflowError wrapping
// ErrTokenNotObtained, ErrDownloadCanceled, ErrTimeout or the session error.
// The session is closed and partial downloads are removed on every path.
func (d *Driver) Run(ctx context.Context, payloadPath, downloadDir string) (*Submission, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	r := &run{
		driver:  d,
		sub:     &Submission{State: StateIdle, History: []State{StateIdle}},
		logger:  d.logger.WithField(logging.FieldFile, payloadPath),
		payload: payloadPath,
	}
	started := time.Now()

	session, err := d.opener.Open(runCtx, downloadDir)
	if err != nil {
		return r.sub, r.fail(ctx, runCtx, downloadDir, fmt.Errorf("error opening browser session: %w", err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.WithError(cerr).Warn("Failed to close browser session")
		}
	}()
	r.session = session

	if err := r.execute(runCtx); err != nil {
		return r.sub, r.fail(ctx, runCtx, downloadDir, err)
	}

	r.transition(StateDone)
	if err := os.Remove(payloadPath); err != nil && !os.IsNotExist(err) {
		r.logger.WithError(err).Warn("Failed to remove upload payload")
	}
	r.logger.Info("Portal workflow completed",
		logging.F(logging.FieldToken, r.sub.Token),
		logging.F(logging.FieldAttempt, r.sub.Attempts),
		logging.F(logging.FieldPoll, r.sub.Polls),
		logging.F(logging.FieldDuration, time.Since(started).Milliseconds()))
	return r.sub, nil
}

type run struct {
	driver  *Driver
	session Session
	sub     *Submission
	logger  logging.Logger
	payload string
}

func (r *run) transition(state State) {
	if r.sub.State.Terminal() {
		r.logger.Warn("Ignoring transition from terminal state",
			logging.F(logging.FieldState, r.sub.State.String()),
			logging.F(logging.FieldStatus, state.String()))
		return
	}
	r.sub.State = state
	r.sub.History = append(r.sub.History, state)
	r.logger.Debug("Portal state changed", logging.F(logging.FieldState, state.String()))
}

func (r *run) execute(ctx context.Context) error {
	token, err := r.submit(ctx)
	if err != nil {
		return err
	}
	r.sub.Token = token
	r.logger = r.logger.WithField(logging.FieldToken, token)

	if err := r.poll(ctx); err != nil {
		return err
	}
	return r.download()
}

// submit uploads the payload until the result form yields a token.
func (r *run) submit(ctx context.Context) (string, error) {
	opts := r.driver.opts
	r.transition(StateSubmitting)
	if err := r.session.Navigate(opts.SubmitURL); err != nil {
		return "", fmt.Errorf("error opening submission page: %w", err)
	}

	var lastMessage string
	for attempt := 1; attempt <= opts.MaxSubmitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r.sub.Attempts = attempt

		if err := r.fillSubmission(); err != nil {
			return "", err
		}
		if err := r.session.Click(SelectorSubmitButton); err != nil {
			return "", fmt.Errorf("error submitting batch: %w", err)
		}

		r.transition(StateTokenWait)
		token, message, err := r.awaitToken()
		if err != nil {
			return "", err
		}
		if token != "" {
			r.logger.Info("Token obtained", logging.F(logging.FieldAttempt, attempt))
			return token, nil
		}
		lastMessage = message
		r.logger.Warn("Submission attempt did not return a token",
			logging.F(logging.FieldAttempt, attempt),
			logging.F(logging.FieldStatus, message))

		if attempt < opts.MaxSubmitAttempts {
			if err := r.session.Back(); err != nil {
				return "", fmt.Errorf("error returning to submission page: %w", err)
			}
			r.transition(StateSubmitting)
		}
	}

	return "", &apperrors.TokenNotObtainedError{Attempts: opts.MaxSubmitAttempts, LastMessage: lastMessage}
}

func (r *run) fillSubmission() error {
	opts := r.driver.opts
	if err := r.session.SetUploadFile(SelectorFileInput, r.payload); err != nil {
		return fmt.Errorf("error attaching payload: %w", err)
	}
	if err := r.session.SetValue(SelectorEmail, opts.Email); err != nil {
		return fmt.Errorf("error filling contact address: %w", err)
	}
	if err := r.session.SetValue(SelectorFormat, opts.Format); err != nil {
		return fmt.Errorf("error selecting output format: %w", err)
	}
	return nil
}

// awaitToken waits for either the result form or the portal's error message.
// A missing token is not an error; session failures are.
func (r *run) awaitToken() (token, message string, err error) {
	idx, err := r.session.WaitAny(SelectorResultForm, SelectorErrorMessage)
	if err != nil {
		return "", "", fmt.Errorf("error waiting for submission result: %w", err)
	}

	if idx == 0 {
		form, err := r.session.OuterHTML(SelectorResultForm)
		if err != nil {
			return "", "", fmt.Errorf("error reading result form: %w", err)
		}
		token := ExtractToken(form)
		if token != "" && !ValidToken(token) {
			r.logger.Warn("Ignoring malformed token", logging.F(logging.FieldToken, token))
			return "", "result form with malformed token", nil
		}
		return token, "result form without token", nil
	}

	text, err := r.session.Text(SelectorErrorMessage)
	if err != nil {
		return "", "", fmt.Errorf("error reading portal message: %w", err)
	}
	return "", strings.TrimSpace(text), nil
}

// poll checks the token's status until the archive is ready. Only the run
// deadline bounds it.
func (r *run) poll(ctx context.Context) error {
	opts := r.driver.opts
	r.transition(StatePollSubmit)
	if err := r.session.Navigate(opts.RetrieveURL); err != nil {
		return fmt.Errorf("error opening retrieval page: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.sub.Polls++

		if err := r.session.SetValue(SelectorEmail, opts.Email); err != nil {
			return fmt.Errorf("error filling contact address: %w", err)
		}
		if err := r.session.SetValue(SelectorToken, r.sub.Token); err != nil {
			return fmt.Errorf("error filling token: %w", err)
		}
		if err := r.session.Click(SelectorCheckStatus); err != nil {
			return fmt.Errorf("error requesting status: %w", err)
		}

		r.transition(StatePolling)
		idx, err := r.session.WaitAny(SelectorProcessingForm, SelectorDownload)
		if err != nil {
			return fmt.Errorf("error waiting for status: %w", err)
		}
		if idx == 1 {
			r.logger.Info("Archive ready", logging.F(logging.FieldPoll, r.sub.Polls))
			return nil
		}

		r.logger.Debug("Portal still processing", logging.F(logging.FieldPoll, r.sub.Polls))
		if err := r.session.Back(); err != nil {
			return fmt.Errorf("error returning to retrieval page: %w", err)
		}
		if err := sleep(ctx, opts.PollInterval); err != nil {
			return err
		}
		r.transition(StatePollSubmit)
	}
}

func (r *run) download() error {
	r.transition(StateDownloading)
	path, err := r.session.Download(SelectorDownload, ArchiveName(r.sub.Token))
	if err != nil {
		return fmt.Errorf("error downloading archive: %w", err)
	}
	r.sub.ArchivePath = path
	return nil
}

// fail moves the run to Failed, classifies err and removes partial
// downloads. parent is the caller's context and runCtx carries the deadline.
func (r *run) fail(parent, runCtx context.Context, downloadDir string, err error) error {
	failedIn := r.sub.State
	kind := FailureSessionError

	switch {
	case errors.Is(err, apperrors.ErrTokenNotObtained):
		kind = FailureTokenNotObtained
	case errors.Is(err, apperrors.ErrDownloadCanceled):
		kind = FailureDownloadCanceled
	case parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		kind = FailureTimeout
		err = fmt.Errorf("%w after %s: %w", apperrors.ErrTimeout, r.driver.opts.Timeout, err)
	case parent.Err() != nil:
		err = fmt.Errorf("%w: %w", parent.Err(), err)
	}

	r.sub.Failure = kind
	r.transition(StateFailed)
	r.removePartial(downloadDir)

	r.logger.WithError(err).Error("Portal workflow failed",
		logging.F(logging.FieldState, failedIn.String()),
		logging.F(logging.FieldStatus, kind.String()),
		logging.F(logging.FieldAttempt, r.sub.Attempts),
		logging.F(logging.FieldPoll, r.sub.Polls))

	return &apperrors.WorkflowError{State: failedIn.String(), Err: err}
}

func (r *run) removePartial(downloadDir string) {
	if r.sub.Token == "" || downloadDir == "" {
		return
	}
	archive := filepath.Join(downloadDir, ArchiveName(r.sub.Token))
	for _, path := range []string{archive, archive + ".crdownload"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.WithError(err).Warn("Failed to remove partial download", logging.F(logging.FieldFile, path))
		}
	}
	r.sub.ArchivePath = ""
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
