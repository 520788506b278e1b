package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/miradorstack/instana-sre/internal/config"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/services"
)

// Version is reported by the service info endpoint.
const Version = "1.0.0"

// Operations is what the HTTP surface needs from the service facade.
type Operations interface {
	PRCDetails(ctx context.Context) (map[string]models.EnrichedIncident, error)
	Recommend(ctx context.Context) ([]models.ActionResult, error)
	Remediate(ctx context.Context) (models.RemediationReport, error)
}

// Endpoint describes one route in the service info document.
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Info is the body of GET /.
type Info struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Endpoints []Endpoint `json:"endpoints"`
}

// RecommendResponse is the body of GET /recommend.
type RecommendResponse struct {
	TotalIncidents     int                   `json:"total_incidents"`
	PRCIncidents       int                   `json:"prc_incidents"`
	ProcessedIncidents int                   `json:"processed_incidents"`
	Results            []models.ActionResult `json:"results"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: http.MethodGet, Description: "This information"},
	{Path: "/health", Method: http.MethodGet, Description: "Health check endpoint"},
	{Path: "/prc-details", Method: http.MethodGet, Description: "Fetch and enrich PRC incidents"},
	{Path: "/trigger", Method: http.MethodGet, Description: "Trigger remediation for all PRC incidents"},
	{Path: "/recommend", Method: http.MethodGet, Description: "Trigger recommended actions for all PRC incidents"},
}

type handler struct {
	logger *slog.Logger
	ops    Operations
}

// NewHandler returns the HTTP routes of the toolkit.
func NewHandler(logger *slog.Logger, ops Operations) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{logger: logger, ops: ops}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.info)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /prc-details", h.prcDetails)
	mux.HandleFunc("GET /trigger", h.trigger)
	mux.HandleFunc("GET /recommend", h.recommend)
	return mux
}

func (h *handler) info(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, Info{Name: "Instana SRE API", Version: Version, Endpoints: endpoints})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) prcDetails(w http.ResponseWriter, r *http.Request) {
	out, err := h.ops.PRCDetails(r.Context())
	if err != nil {
		h.writeError(w, "failed to fetch PRC details", err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handler) trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.ops.Remediate(r.Context())
	if err != nil {
		h.writeError(w, "failed to trigger remediation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	results, err := h.ops.Recommend(r.Context())
	if err != nil {
		h.writeError(w, "failed to recommend actions", err)
		return
	}
	if results == nil {
		results = []models.ActionResult{}
	}
	n := len(results)
	h.writeJSON(w, http.StatusOK, RecommendResponse{
		TotalIncidents:     n,
		PRCIncidents:       n,
		ProcessedIncidents: n,
		Results:            results,
	})
}

func (h *handler) writeError(w http.ResponseWriter, msg string, err error) {
	status := services.HTTPStatus(err)
	h.logger.Error(msg, slog.Int("status", status), slog.Any("error", err))
	h.writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%s: %v", msg, err)})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", slog.Any("error", err))
	}
}

// HTTPServer serves the HTTP routes on cfg.Address.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer binds cfg.Address and prepares handler for serving.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	return &HTTPServer{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *HTTPServer) Start() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	return s.listener.Addr().String()
}
