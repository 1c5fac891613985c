// Package server exposes batch verification over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fjacquet/cep-verify/internal/logging"
	"fjacquet/cep-verify/internal/models"
	"fjacquet/cep-verify/internal/verifier"

	"github.com/gorilla/mux"
)

const (
	uploadField     = "file"
	shutdownTimeout = 30 * time.Second
)

// Verifier runs a batch verification. *verifier.Service implements it.
type Verifier interface {
	Verify(ctx context.Context, records []models.TransactionRecord) (*verifier.Result, error)
}

// Server is the HTTP front end of the verification workflow.
type Server struct {
	router         *mux.Router
	verifier       Verifier
	maxUploadBytes int64
	logger         logging.Logger
}

// New creates a Server. Uploads larger than maxUploadBytes are rejected.
func New(v Verifier, maxUploadBytes int64, logger logging.Logger) *Server {
	s := &Server{
		router:         mux.NewRouter().StrictSlash(true),
		verifier:       v,
		maxUploadBytes: maxUploadBytes,
		logger:         logging.OrDefault(logger).WithField(logging.FieldComponent, "server"),
	}
	s.initializeRoutes()
	return s
}

func (s *Server) initializeRoutes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/", s.handleVerify).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", logging.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("Request handled",
			logging.F(logging.FieldOperation, r.Method+" "+r.URL.Path),
			logging.F(logging.FieldStatus, rec.status),
			logging.F(logging.FieldRemoteAddr, r.RemoteAddr),
			logging.F(logging.FieldDuration, time.Since(started).Milliseconds()))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
