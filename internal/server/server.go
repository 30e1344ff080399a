// Package server exposes the discharge coordination API over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/config"
	"github.com/discharge-coordinator/internal/nursematch"
	"github.com/discharge-coordinator/internal/patient"
	"github.com/discharge-coordinator/internal/routing"
)

const serviceVersion = "2.0.0"

// Reloader refreshes a data source from disk.
type Reloader func() error

// Deps are the wired components the handlers delegate to.
type Deps struct {
	Patients     *patient.Store
	Roster       *nursematch.Roster
	Router       *routing.Router
	Processor    *agents.Processor
	Matcher      *nursematch.Matcher
	Provider     string
	ReloadData   Reloader
	ReloadRoster Reloader
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	logger *zap.Logger
	http   *http.Server
}

// New builds the server with routes, CORS, request-ID, logging, and panic
// recovery middleware installed.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger.Named("http")}

	router := mux.NewRouter()
	s.routes(router)
	router.Use(s.requestID, s.accessLog)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	chain := cors(handlers.RecoveryHandler(handlers.RecoveryLogger(&recoveryLogger{logger: s.logger}))(router))

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/patients", s.handleListPatients).Methods(http.MethodGet)
	api.HandleFunc("/refresh-data", s.handleRefreshData).Methods(http.MethodPost)
	api.HandleFunc("/refresh-roster", s.handleRefreshRoster).Methods(http.MethodPost)
	api.HandleFunc("/route-patient", s.handleRoutePatient).Methods(http.MethodPost)
	api.HandleFunc("/process-nursing-agent", s.handleAgent(agents.Nursing)).Methods(http.MethodPost)
	api.HandleFunc("/process-dme-agent", s.handleAgent(agents.DME)).Methods(http.MethodPost)
	api.HandleFunc("/process-pharmacy-agent", s.handleAgent(agents.Pharmacy)).Methods(http.MethodPost)
	api.HandleFunc("/process-state-agent", s.handleAgent(agents.State)).Methods(http.MethodPost)
	api.HandleFunc("/process-complete-case", s.handleCompleteCase).Methods(http.MethodPost)
	api.HandleFunc("/recommend-nurses", s.handleRecommendNurses).Methods(http.MethodPost)
}

// Handler exposes the middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (r *recoveryLogger) Println(v ...interface{}) {
	r.logger.Error("handler panic recovered", zap.Any("detail", v))
}
