// Package server hosts a GraphQL schema over HTTP (queries and mutations)
// and websockets (subscriptions), alongside a /healthz endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/dyluth/postboard/internal/transport/ws"
)

// Pinger is a dependency whose availability /healthz reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names a dependency for the health endpoint.
type Check struct {
	Name   string
	Pinger Pinger
}

// Server serves one GraphQL service.
type Server struct {
	name     string
	relay    *relay.Handler
	ws       *ws.Handler
	checks   []Check
	server   *http.Server
	listener net.Listener
}

// New creates a Server for schema. name is used in logs.
func New(name string, schema *graphql.Schema, checks ...Check) *Server {
	return &Server{
		name:   name,
		relay:  &relay.Handler{Schema: schema},
		ws:     ws.NewHandler(schema),
		checks: checks,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", s.graphqlHandler)
	mux.HandleFunc("/healthz", s.healthCheckHandler)
	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	// No WriteTimeout: websocket sessions are long-lived.
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[%s] Server error: %v", s.name, err)
		}
	}()

	log.Printf("[%s] Listening on %s", s.name, ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown closes websocket sessions, then gracefully stops HTTP serving.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ws.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) graphqlHandler(w http.ResponseWriter, r *http.Request) {
	if ws.IsUpgrade(r) {
		s.ws.ServeHTTP(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.relay.ServeHTTP(w, r)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if every dependency answers a ping, 503 otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "healthy",
		Service: s.name,
		Checks:  make(map[string]string, len(s.checks)),
	}
	status := http.StatusOK

	for _, c := range s.checks {
		if err := c.Pinger.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[c.Name] = "disconnected"
			if response.Error == "" {
				response.Error = fmt.Sprintf("%s: %v", c.Name, err)
			}
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[c.Name] = "connected"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
	Error   string            `json:"error,omitempty"`
}
