// Package web serves the REST API, the websocket event stream and the
// Prometheus metrics endpoint.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"tuya-air/internal/automation"
	"tuya-air/internal/gateway"
	"tuya-air/internal/metrics"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed origin patterns for mutating requests and WebSocket.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation sets the automation engine and script manager.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the application version string.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP server.
type Server struct {
	gw             *gateway.Gateway
	wsHub          *WSHub
	logger         *slog.Logger
	router         chi.Router
	apiKey         string
	allowedOrigins []string
	scriptMgr      *automation.Manager
	autoEngine     *automation.Engine
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates a new web server.
func NewServer(gw *gateway.Gateway, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		gw:     gw,
		logger: logger.With("component", "web"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	// Broadcast every gateway event over WebSocket
	s.unsubEvents = gw.Events().OnAll(func(event gateway.Event) {
		s.wsHub.Broadcast(event)
	})

	s.routes()
	return s
}

// Stop gracefully shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(metrics.HTTPMiddleware)
	r.Use(s.checkOrigin)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Get("/version", s.handleAPIVersion)
		r.Get("/clusters", s.handleAPIListClusters)
		r.Get("/profiles", s.handleAPIListProfiles)
		r.Get("/profiles/{name}", s.handleAPIGetProfile)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleAPIListDevices)
			r.Post("/", s.handleAPIAddDevice)
			r.Route("/{ieee}", func(r chi.Router) {
				r.Get("/", s.handleAPIGetDevice)
				r.Patch("/", s.handleAPIRenameDevice)
				r.Delete("/", s.handleAPIDeleteDevice)
				r.Get("/measurements", s.handleAPIMeasurements)
				r.Post("/datapoints", s.handleAPIDataPoint)
				r.Post("/frames", s.handleAPIFrame)
			})
		})

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleAPIListAutomations)
			r.Post("/", s.handleAPICreateAutomation)
			r.Get("/{id}", s.handleAPIGetAutomation)
			r.Put("/{id}", s.handleAPIUpdateAutomation)
			r.Delete("/{id}", s.handleAPIDeleteAutomation)
			r.Post("/{id}/toggle", s.handleAPIToggleAutomation)
			r.Post("/{id}/run", s.handleAPIRunAutomation)
		})
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// checkOrigin rejects cross-origin mutating requests from unlisted origins
// and answers CORS preflights.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(s.allowedOrigins) == 0 || origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			if !s.isOriginAllowed(origin) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodGet {
			if !s.isOriginAllowed(origin) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey guards /api/. WebSocket and metrics stay open because
// browsers cannot send custom headers on a WS upgrade.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a request body of at most 1 MB.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
