package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	apiHandlers "github.com/holdr-fi/quest-n-script/internal/api/handlers"
	"github.com/holdr-fi/quest-n-script/internal/messaging"
	"github.com/holdr-fi/quest-n-script/internal/metrics"
	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/logger"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	// Dependencies
	publisher messaging.Publisher
	metrics   *metrics.Metrics

	// API handlers
	eligibilityHandler *apiHandlers.EligibilityHandler
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	evaluator apiHandlers.Evaluator,
	publisher messaging.Publisher,
	m *metrics.Metrics,
) *Server {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if m == nil {
		m = metrics.New(cfg.Monitoring.MetricsNamespace)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		metrics:   m,
	}

	s.eligibilityHandler = apiHandlers.NewEligibilityHandler(evaluator, publisher, m, logger)

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Request id first so every later middleware can log it
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	if s.cfg.Monitoring.HealthCheckEnabled {
		apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	}

	s.eligibilityHandler.RegisterRoutes(s.router)

	if s.cfg.Monitoring.MetricsEnabled {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use, use a different port: --port %d", s.cfg.Server.Port, s.cfg.Server.Port+1)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(logger.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(logger.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &recoveryWriter{ResponseWriter: w}
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error":            err,
					"path":             r.URL.Path,
					"request_id":       w.Header().Get(logger.RequestIDHeader),
					"response_started": rw.started,
				}).Error("Panic recovered")

				// A second envelope would corrupt a response already on the wire
				if !rw.started {
					apiHandlers.WriteEnvelope(w, models.FailureEnvelope(fmt.Errorf("internal error: %v", err)))
				}
			}
		}()

		next.ServeHTTP(rw, r)
	})
}

// recoveryWriter records whether the handler began its response
type recoveryWriter struct {
	http.ResponseWriter
	started bool
}

func (rw *recoveryWriter) WriteHeader(code int) {
	rw.started = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recoveryWriter) Write(b []byte) (int, error) {
	rw.started = true
	return rw.ResponseWriter.Write(b)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
		handlers.ExposedHeaders([]string{logger.RequestIDHeader}),
	)(next)
}

// Handler functions

// handleHealth reports the status of optional components
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	natsStatus := "disabled"
	if nc, ok := s.publisher.(*messaging.NATSClient); ok {
		natsStatus = "disconnected"
		if nc.IsConnected() {
			natsStatus = "connected"
		}
	}

	health := map[string]interface{}{
		"status": "healthy",
		"services": map[string]string{
			"nats": natsStatus,
		},
		"metrics":   s.cfg.Monitoring.MetricsEnabled,
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
