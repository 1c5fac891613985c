// Package verifier runs a whole batch verification: encode, submit through
// the portal, extract the archive and reconcile, inside a private workspace.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fjacquet/cep-verify/internal/archive"
	"fjacquet/cep-verify/internal/batch"
	"fjacquet/cep-verify/internal/fileutils"
	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/portal"
	"fjacquet/cep-verify/internal/reconcile"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const payloadFileName = "batch.txt"

// Runner executes the portal workflow. *portal.Driver implements it.
type Runner interface {
	Run(ctx context.Context, payloadPath, downloadDir string) (*portal.Submission, error)
}

// Result is the outcome of one verification.
type Result struct {
	SubmissionID string
	Token        string
	Verdicts     models.VerdictList
}

// Service orchestrates verifications. It is safe for concurrent use; the
// number of simultaneous portal sessions is bounded.
type Service struct {
	runner   Runner
	encoder  *batch.Encoder
	engine   *reconcile.Engine
	sessions *semaphore.Weighted
	workDir  string
	logger   logging.Logger
}

// NewService creates a Service. Workspaces are created under workDir and at
// most maxSessions portal runs proceed at once.
func NewService(runner Runner, encoder *batch.Encoder, engine *reconcile.Engine, workDir string, maxSessions int, logger logging.Logger) (*Service, error) {
	if encoder == nil || engine == nil {
		return nil, errors.New("verifier: encoder and engine are required")
	}
	if maxSessions < 1 {
		return nil, fmt.Errorf("verifier: max sessions must be at least 1, got %d", maxSessions)
	}
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "cep-verify")
	}
	return &Service{
		runner:   runner,
		encoder:  encoder,
		engine:   engine,
		sessions: semaphore.NewWeighted(int64(maxSessions)),
		workDir:  workDir,
		logger:   logging.OrDefault(logger).WithField(logging.FieldComponent, "verifier"),
	}, nil
}

// Verify runs the full workflow for records. The workspace is removed on
// every path. An empty batch is answered without contacting the portal.
func (s *Service) Verify(ctx context.Context, records []models.TransactionRecord) (*Result, error) {
	if len(records) == 0 {
		return &Result{Verdicts: models.VerdictList{}}, nil
	}
	if s.runner == nil {
		return nil, errors.New("verifier: portal workflow is not configured")
	}

	if err := s.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("error waiting for a browser session: %w", err)
	}
	defer s.sessions.Release(1)

	ws, err := s.newWorkspace()
	if err != nil {
		return nil, err
	}
	defer ws.cleanup()

	logger := ws.logger
	started := time.Now()
	logger.Info("Starting verification", logging.F(logging.FieldCount, len(records)))

	payload := filepath.Join(ws.dir, payloadFileName)
	if err := s.encoder.WritePayload(payload, records); err != nil {
		return nil, err
	}

	sub, err := s.runner.Run(ctx, payload, ws.dir)
	if err != nil {
		return nil, err
	}

	if !portal.ValidToken(sub.Token) {
		return nil, fmt.Errorf("verifier: refusing unsafe token %q", sub.Token)
	}
	dest := filepath.Join(ws.dir, sub.Token)
	count, err := archive.Extract(ctx, sub.ArchivePath, dest)
	if err != nil {
		return nil, err
	}
	logger.Debug("Archive extracted", logging.F(logging.FieldCount, count), logging.F(logging.FieldDirectory, dest))
	if err := os.Remove(sub.ArchivePath); err != nil {
		logger.WithError(err).Warn("Failed to remove downloaded archive", logging.F(logging.FieldFile, sub.ArchivePath))
	}

	verdicts, err := s.engine.Reconcile(ctx, records, dest)
	if err != nil {
		return nil, err
	}

	logger.Info("Verification finished",
		logging.F(logging.FieldToken, sub.Token),
		logging.F(logging.FieldMatched, verdicts.MatchedCount()),
		logging.F(logging.FieldCount, len(verdicts)),
		logging.F(logging.FieldDuration, time.Since(started).Milliseconds()))
	return &Result{SubmissionID: ws.id, Token: sub.Token, Verdicts: verdicts}, nil
}

// ReconcileArchive reconciles records against an archive already on disk.
// The archive is extracted into a fresh workspace and left untouched.
func (s *Service) ReconcileArchive(ctx context.Context, records []models.TransactionRecord, archivePath string) (*Result, error) {
	if !fileutils.FileExists(archivePath) {
		return nil, fmt.Errorf("archive does not exist: %s", archivePath)
	}
	ws, err := s.newWorkspace()
	if err != nil {
		return nil, err
	}
	defer ws.cleanup()

	dest := filepath.Join(ws.dir, "confirmations")
	if _, err := archive.Extract(ctx, archivePath, dest); err != nil {
		return nil, err
	}

	verdicts, err := s.engine.Reconcile(ctx, records, dest)
	if err != nil {
		return nil, err
	}
	return &Result{SubmissionID: ws.id, Verdicts: verdicts}, nil
}

// ReconcileDirectory reconciles records against an extracted directory.
// The directory is consumed: it is removed once reconciliation ends.
func (s *Service) ReconcileDirectory(ctx context.Context, records []models.TransactionRecord, dir string) (*Result, error) {
	if !fileutils.DirectoryExists(dir) {
		return nil, fmt.Errorf("confirmation directory does not exist: %s", dir)
	}
	verdicts, err := s.engine.Reconcile(ctx, records, dir)
	if err != nil {
		return nil, err
	}
	return &Result{Verdicts: verdicts}, nil
}

type workspace struct {
	id     string
	dir    string
	logger logging.Logger
}

func (s *Service) newWorkspace() (*workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.workDir, id)
	if err := fileutils.EnsureDirectoryExists(dir); err != nil {
		return nil, fmt.Errorf("error creating workspace: %w", err)
	}
	return &workspace{
		id:     id,
		dir:    dir,
		logger: s.logger.WithField(logging.FieldSubmission, id),
	}, nil
}

func (w *workspace) cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.WithError(err).Warn("Failed to remove workspace", logging.F(logging.FieldDirectory, w.dir))
	}
}
