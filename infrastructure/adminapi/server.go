package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	requestTimeout = 60 * time.Second
	healthTimeout  = 500 * time.Millisecond
)

// PartyDirectory is the view of the watch party registry the admin API needs
type PartyDirectory interface {
	Summaries() []entities.WatchPartySummary
	Get(name string) (*services.WatchParty, error)
	Ledger() *services.Ledger
	ForceUpdateReport(ctx context.Context) (string, error)
}

// HealthFunc reports whether a dependency is usable
type HealthFunc func(ctx context.Context) error

// Response is the JSON body of every debug endpoint
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Server is the internal admin and debug HTTP API
type Server struct {
	parties  PartyDirectory
	gatherer prometheus.Gatherer
	checks   map[string]HealthFunc
	server   *http.Server
}

// NewServer creates the admin API. gatherer defaults to the Prometheus default registry.
func NewServer(addr string, parties PartyDirectory, gatherer prometheus.Gatherer, checks map[string]HealthFunc) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		parties:  parties,
		gatherer: gatherer,
		checks:   checks,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
	}
	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/debug", func(r chi.Router) {
		r.Get("/watchparties", s.handleListParties)
		r.Get("/watchparties/{name}", s.handleGetParty)
		r.Get("/ledger/{discordID}", s.handleLedgerEntry)
		r.Post("/force-update", s.handleForceUpdate)
	})
	return r
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.server.Addr).Info("Admin API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Admin API server error")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down admin API: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	failures := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "unhealthy",
			Data:    failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "OK"})
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.parties.Summaries(),
	})
}

func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	party, err := s.parties.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    party.Snapshot(),
	})
}

func (s *Server) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	discordID, err := strconv.ParseInt(chi.URLParam(r, "discordID"), 10, 64)
	if err != nil {
		respondWithError(w, "discordID must be an integer", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.parties.Ledger().Snapshot(discordID),
	})
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	report, err := s.parties.ForceUpdateReport(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: report,
	})
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch entities.ErrorKindOf(err) {
	case entities.ErrorKindNotFound:
		status = http.StatusNotFound
	case entities.ErrorKindValidation:
		status = http.StatusBadRequest
	case entities.ErrorKindStateConflict:
		status = http.StatusConflict
	case entities.ErrorKindUnauthorized:
		status = http.StatusForbidden
	}
	respondWithError(w, err.Error(), status)
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, Response{
		Success: false,
		Error:   message,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to write admin API response")
	}
}

// requestLogger logs every request through logrus
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start),
			"requestID": chimiddleware.GetReqID(r.Context()),
		}).Debug("Admin API request")
	})
}
