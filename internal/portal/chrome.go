package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fjacquet/cep-verify/internal/logging"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const waitPollInterval = 250 * time.Millisecond

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	// ExecPath overrides the Chrome binary lookup when set.
	ExecPath string
	Headless bool
}

// ChromeOpener opens one Chrome process per session.
type ChromeOpener struct {
	opts   ChromeOptions
	logger logging.Logger
}

// NewChromeOpener creates an Opener backed by chromedp.
func NewChromeOpener(opts ChromeOptions, logger logging.Logger) *ChromeOpener {
	return &ChromeOpener{
		opts:   opts,
		logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "chrome"),
	}
}

// Open starts a browser bound to ctx with downloads routed to downloadDir.
func (o *ChromeOpener) Open(ctx context.Context, downloadDir string) (Session, error) {
	absDir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, fmt.Errorf("error resolving download directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o750); err != nil {
		return nil, fmt.Errorf("error creating download directory: %w", err)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", o.opts.Headless))
	if o.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:         tabCtx,
		downloadDir: absDir,
		logger:      o.logger,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		events: make(chan downloadEvent, 16),
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	if err := chromedp.Run(tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(absDir).
			WithEventsEnabled(true),
	); err != nil {
		s.cancel()
		return nil, fmt.Errorf("error starting browser: %w", err)
	}
	return s, nil
}

type downloadEvent struct {
	guid  string
	state browser.DownloadProgressState
}

type chromeSession struct {
	ctx         context.Context
	cancel      func()
	downloadDir string
	logger      logging.Logger
	events      chan downloadEvent
	closeOnce   sync.Once

	// pending is the GUID Chrome is writing the current download under.
	mu      sync.Mutex
	pending string
}

func (s *chromeSession) onEvent(ev interface{}) {
	var progress *browser.EventDownloadProgress
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		s.setPending(e.GUID)
		return
	case *browser.EventDownloadProgress:
		progress = e
	default:
		return
	}
	if progress.State == browser.DownloadProgressStateInProgress {
		return
	}
	s.setPending("")
	select {
	case s.events <- downloadEvent{guid: progress.GUID, state: progress.State}:
	default:
		s.logger.Warn("Dropped download event", logging.F(logging.FieldStatus, progress.State.String()))
	}
}

func (s *chromeSession) Navigate(url string) error {
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

func (s *chromeSession) Back() error {
	return chromedp.Run(s.ctx, chromedp.NavigateBack())
}

func (s *chromeSession) SetUploadFile(selector, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.SetUploadFiles(selector, []string{absPath}, chromedp.ByQuery))
}

func (s *chromeSession) SetValue(selector, value string) error {
	return chromedp.Run(s.ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (s *chromeSession) Click(selector string) error {
	return chromedp.Run(s.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// WaitAny polls the selectors in order so only one query is in flight.
func (s *chromeSession) WaitAny(selectors ...string) (int, error) {
	if len(selectors) == 0 {
		return 0, errors.New("no selectors to wait for")
	}
	for {
		for i, sel := range selectors {
			var nodes []*cdp.Node
			if err := chromedp.Run(s.ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
				return 0, err
			}
			if len(nodes) > 0 {
				return i, nil
			}
		}
		if err := sleep(s.ctx, waitPollInterval); err != nil {
			return 0, err
		}
	}
}

func (s *chromeSession) OuterHTML(selector string) (string, error) {
	var html string
	err := chromedp.Run(s.ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	return html, err
}

// Text reads textContent so a hidden message element still resolves.
func (s *chromeSession) Text(selector string) (string, error) {
	var text string
	err := chromedp.Run(s.ctx, chromedp.TextContent(selector, &text, chromedp.ByQuery, chromedp.NodeReady))
	return text, err
}

// Download clicks and waits for the browser's completion event. Chrome saves
// the file under its GUID; it is renamed to fileName once complete.
func (s *chromeSession) Download(clickSelector, fileName string) (string, error) {
	s.drainEvents()
	if err := chromedp.Run(s.ctx, chromedp.Click(clickSelector, chromedp.ByQuery)); err != nil {
		return "", err
	}

	for {
		select {
		case <-s.ctx.Done():
			s.discardPending()
			return "", s.ctx.Err()
		case ev := <-s.events:
			guidPath := filepath.Join(s.downloadDir, ev.guid)
			if ev.state == browser.DownloadProgressStateCanceled {
				_ = os.Remove(guidPath)
				return "", ErrDownloadCanceled
			}

			target := filepath.Join(s.downloadDir, fileName)
			if err := os.Rename(guidPath, target); err != nil {
				return "", fmt.Errorf("error naming downloaded archive: %w", err)
			}
			s.logger.Debug("Download completed", logging.F(logging.FieldFile, target))
			return target, nil
		}
	}
}

func (s *chromeSession) setPending(guid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = guid
}

// discardPending removes the file of a download that never finished.
func (s *chromeSession) discardPending() {
	s.mu.Lock()
	guid := s.pending
	s.pending = ""
	s.mu.Unlock()
	if guid == "" {
		return
	}

	path := filepath.Join(s.downloadDir, guid)
	for _, p := range []string{path, path + ".crdownload"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("Failed to remove partial download", logging.F(logging.FieldFile, p))
		}
	}
}

func (s *chromeSession) drainEvents() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		_ = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return nil
}
