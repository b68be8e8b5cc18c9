// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     server
// Description: Local HTTP/WebSocket feed for overlay front ends
// Author:      Mike Stoffels with Claude
// Created:     2026-09-18
// License:     MIT
// ============================================================================

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/msto63/overlay/internal/overlay/pipeline"
	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/health"
	"github.com/msto63/overlay/pkg/core/logging"
)

// Controller is the pipeline surface the server exposes
type Controller interface {
	Snapshot() pipeline.Snapshot
	Start(ctx context.Context) error
	Stop() error
	Capture(ctx context.Context) (qna.QnA, bool, error)
	ClearTranscript()
	SetLanguage(ctx context.Context, language string) error
	Subscribe() (<-chan pipeline.Event, func())
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the loopback-only defaults
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8765,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves pipeline state and events
type Server struct {
	httpServer *http.Server
	ctrl       Controller
	health     *health.Registry
	logger     *logging.Logger
	config     Config

	// baseCtx bounds requests that outlive their HTTP call (start)
	baseCtx context.Context
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CaptureResponse is returned by POST /api/capture
type CaptureResponse struct {
	Found bool     `json:"found"`
	Item  *qna.QnA `json:"item,omitempty"`
}

// New creates a server. registry may be nil.
func New(cfg Config, ctrl Controller, registry *health.Registry) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultConfig().Host
	}
	s := &Server{
		ctrl:    ctrl,
		health:  registry,
		logger:  logging.New("server"),
		config:  cfg,
		baseCtx: context.Background(),
	}
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/qna", s.handleQnA)
	mux.HandleFunc("POST /api/capture", jsonOnly(s.handleCapture))
	mux.HandleFunc("POST /api/clear", jsonOnly(s.handleClear))
	mux.HandleFunc("POST /api/start", jsonOnly(s.handleStart))
	mux.HandleFunc("POST /api/stop", jsonOnly(s.handleStop))
	mux.HandleFunc("POST /api/language", jsonOnly(s.handleLanguage))
	mux.Handle("GET /ws", newFeed(s.ctrl))
	if s.health != nil {
		mux.Handle("GET /health", s.health.Handler())
	}
	return loggingMiddleware(s.logger, originGuard(mux))
}

// isLocalOrigin accepts an empty origin and loopback hosts
func isLocalOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// originGuard rejects browser requests coming from foreign pages
func originGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLocalOrigin(r.Header.Get("Origin")) {
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "origin not allowed", Code: "FORBIDDEN"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// jsonOnly requires a JSON content type. Browsers cannot send it cross-site
// without a preflight, which this server never answers.
func jsonOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType,
				ErrorResponse{Error: "content type must be application/json", Code: "UNSUPPORTED_MEDIA_TYPE"})
			return
		}
		next(w, r)
	}
}

// Start listens in the background until ctx ends or Stop is called
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen").
			WithCode(errors.CodeServiceUnavailable).
			WithOp("server.Start")
	}
	s.baseCtx = ctx
	s.logger.Info("Event feed listening", "address", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(shutdownCtx)
	}()
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping event feed")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the listen address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleQnA(w http.ResponseWriter, r *http.Request) {
	items := s.ctrl.Snapshot().Items
	if items == nil {
		items = []qna.QnA{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	item, found, err := s.ctrl.Capture(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := CaptureResponse{Found: found}
	if found {
		resp.Item = &item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ClearTranscript()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// the request context ends with the response
	if err := s.ctrl.Start(s.baseCtx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, "invalid request body").WithCode(errors.CodeInvalidInput))
		return
	}
	if err := s.ctrl.SetLanguage(s.baseCtx, req.Language); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	writeJSON(w, statusFor(code), ErrorResponse{Error: err.Error(), Code: string(code)})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidState, errors.CodeNotConfigured:
		return http.StatusConflict
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeServiceUnavailable, errors.CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		if strings.HasPrefix(r.URL.Path, "/ws") {
			return
		}
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade take over the connection
func (w *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
