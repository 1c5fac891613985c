// Package container provides dependency injection for the cep-verify application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"errors"
	"fmt"

	"fjacquet/cep-verify/internal/batch"
	"fjacquet/cep-verify/internal/config"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/normalizer"
	"fjacquet/cep-verify/internal/portal"
	"fjacquet/cep-verify/internal/reconcile"
	"fjacquet/cep-verify/internal/verifier"
)

// ErrPortalNotConfigured is returned by Driver when no contact email is set.
var ErrPortalNotConfigured = errors.New("portal.email is not configured (set CEP_PORTAL_EMAIL)")

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation; dependencies are reached through
// getter methods only.
type Container struct {
	logger   logging.Logger
	config   *config.Config
	table    *normalizer.Table
	encoder  *batch.Encoder
	engine   *reconcile.Engine
	driver   *portal.Driver
	verifier *verifier.Service
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	logger logging.Logger
	opener portal.Opener
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOpener replaces the Chrome session opener.
func WithOpener(opener portal.Opener) Option {
	return func(o *options) { o.opener = opener }
}

// NewContainer creates and wires all application dependencies.
// The portal driver is only built when a contact email is configured; the
// offline commands work without it.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}

	table := normalizer.DefaultTable()
	if cfg.Institutions.File != "" {
		loaded, err := normalizer.LoadTable(cfg.Institutions.File)
		if err != nil {
			return nil, fmt.Errorf("error loading institution table: %w", err)
		}
		table = loaded
	}

	encoder := batch.NewEncoder(table, logger)
	engine := reconcile.NewEngine(logger)

	var driver *portal.Driver
	var runner verifier.Runner
	if cfg.Portal.Email != "" {
		opener := o.opener
		if opener == nil {
			opener = portal.NewChromeOpener(portal.ChromeOptions{
				ExecPath: cfg.Browser.ExecPath,
				Headless: cfg.Browser.Headless,
			}, logger)
		}

		var err error
		driver, err = portal.NewDriver(opener, portalOptions(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("error creating portal driver: %w", err)
		}
		runner = driver
	}

	svc, err := verifier.NewService(runner, encoder, engine, cfg.Work.Directory, cfg.Sessions.MaxConcurrent, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating verifier: %w", err)
	}

	logger.Debug("Container initialized",
		logging.F(logging.FieldCount, table.Len()),
		logging.F("portal_enabled", driver != nil))

	return &Container{
		logger:   logger,
		config:   cfg,
		table:    table,
		encoder:  encoder,
		engine:   engine,
		driver:   driver,
		verifier: svc,
	}, nil
}

func portalOptions(cfg *config.Config) portal.Options {
	opts := portal.DefaultOptions()
	if cfg.Portal.SubmitURL != "" {
		opts.SubmitURL = cfg.Portal.SubmitURL
	}
	if cfg.Portal.RetrieveURL != "" {
		opts.RetrieveURL = cfg.Portal.RetrieveURL
	}
	if cfg.Portal.Format != "" {
		opts.Format = cfg.Portal.Format
	}
	opts.Email = cfg.Portal.Email
	opts.MaxSubmitAttempts = cfg.Portal.MaxSubmitAttempts
	opts.PollInterval = cfg.PollInterval()
	opts.Timeout = cfg.Timeout()
	return opts
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetInstitutionTable returns the effective institution code table.
func (c *Container) GetInstitutionTable() *normalizer.Table {
	return c.table
}

// GetEncoder returns the batch encoder.
func (c *Container) GetEncoder() *batch.Encoder {
	return c.encoder
}

// GetEngine returns the reconciliation engine.
func (c *Container) GetEngine() *reconcile.Engine {
	return c.engine
}

// GetDriver returns the portal driver, or ErrPortalNotConfigured.
func (c *Container) GetDriver() (*portal.Driver, error) {
	if c.driver == nil {
		return nil, ErrPortalNotConfigured
	}
	return c.driver, nil
}

// GetVerifier returns the orchestration service.
func (c *Container) GetVerifier() *verifier.Service {
	return c.verifier
}

// Close performs cleanup of container resources.
// Browser sessions are owned and closed by each run.
func (c *Container) Close() error {
	c.logger.Debug("Container closed")
	return nil
}
