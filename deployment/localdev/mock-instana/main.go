package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type alertConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Severity    int    `json:"severity"`
}

type alertStore struct {
	mu      sync.Mutex
	configs map[string]*alertConfig
	order   []string
}

func newAlertStore() *alertStore {
	s := &alertStore{configs: make(map[string]*alertConfig)}
	for _, cfg := range []alertConfig{
		{ID: "alert-latency", Name: "Latency above SLO", Description: "p99 latency above 800ms", Enabled: true, Severity: 5},
		{ID: "alert-errors", Name: "Erroneous calls", Description: "error rate above 5%", Enabled: true, Severity: 10},
		{ID: "spec-checkout", Name: "Alert on all services", Description: "Higher than expected error rate", Enabled: false, Severity: 10},
	} {
		cfg := cfg
		s.configs[cfg.ID] = &cfg
		s.order = append(s.order, cfg.ID)
	}
	return s
}

func (s *alertStore) list() []alertConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]alertConfig, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.configs[id])
	}
	return out
}

func (s *alertStore) get(id string) (alertConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok {
		return alertConfig{}, false
	}
	return *cfg, true
}

func (s *alertStore) update(id string, fn func(*alertConfig)) (alertConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok {
		return alertConfig{}, false
	}
	fn(cfg)
	return *cfg, true
}

func incidents(now time.Time) []map[string]any {
	ts := now.Add(-2 * time.Minute).UnixMilli()
	return []map[string]any{
		{
			"eventId":              "evt-checkout-1",
			"eventSpecificationId": "spec-checkout",
			"entityLabel":          "otel-demo-checkout",
			"entityType":           "APPLICATION",
			"problem":              "Alert on all services: erroneous calls",
			"detail":               "Error rate 12% on POST /api/checkout",
			"state":                "open",
			"type":                 "incident",
			"probableCause": map[string]any{
				"found": true,
				"currentRootCause": []map[string]any{
					{
						"entityID":  map[string]any{"pluginId": "com.instana.forge.application.Endpoint", "steadyId": "ep-checkout"},
						"timestamp": ts,
					},
					{
						"entityID":  map[string]any{"pluginId": "com.instana.forge.application.Service", "steadyId": "svc-payments"},
						"timestamp": ts,
					},
					{
						"entityID":       map[string]any{"pluginId": "com.instana.forge.infrastructure.host"},
						"timestamp":      ts,
						"explainability": []map[string]any{{"relevantSnapshotID": "snap-host-1"}},
					},
				},
			},
		},
		{
			"eventId":     "evt-frontend-1",
			"entityLabel": "otel-demo-frontend",
			"entityType":  "INFRASTRUCTURE",
			"problem":     "Alert on all services: slow calls",
			"state":       "open",
			"type":        "incident",
			"probableCause": map[string]any{
				"found":            true,
				"currentRootCause": []map[string]any{},
			},
		},
	}
}

func main() {
	addr := ":8080"
	if v := os.Getenv("MOCK_INSTANA_ADDRESS"); v != "" {
		addr = v
	}
	alerts := newAlertStore()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, incidents(time.Now()))
	})

	mux.HandleFunc("POST /api/application-monitoring/metrics/endpoints", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EndpointID string `json:"endpointId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.EndpointID != "ep-checkout" {
			writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"endpoint": map[string]any{"label": "POST /api/checkout", "serviceId": "svc-checkout"}},
			},
		})
	})

	mux.HandleFunc("POST /api/application-monitoring/metrics/services", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ServiceID string `json:"serviceId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		labels := map[string]string{"svc-checkout": "checkoutservice", "svc-payments": "paymentservice"}
		label, ok := labels[req.ServiceID]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{"service": map[string]any{"label": label}}},
		})
	})

	mux.HandleFunc("POST /api/infrastructure-monitoring/analyze/entities", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TagFilterExpression struct {
				Value string `json:"value"`
			} `json:"tagFilterExpression"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		snapshot := req.TagFilterExpression.Value
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{
					"snapshotId": snapshot,
					"label":      "ip-10-0-1-17.ec2.internal",
					"plugin":     "host",
					"time":       time.Now().UnixMilli(),
					"metrics":    map[string]any{"cpu.used": 0.93},
					"tags":       map[string]any{"zone": "us-east-1a"},
				},
				{
					"snapshotId": snapshot + "-proc",
					"label":      "java (checkout)",
					"plugin":     "process",
					"metrics":    map[string]any{},
					"tags":       map[string]any{},
				},
			},
		})
	})

	mux.HandleFunc("GET /api/events/settings/application-alert-configs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, alerts.list())
	})

	mux.HandleFunc("GET /api/events/settings/application-alert-configs/{id}", func(w http.ResponseWriter, r *http.Request) {
		cfg, ok := alerts.get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})

	mux.HandleFunc("POST /api/events/settings/application-alert-configs/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in alertConfig
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		cfg, ok := alerts.update(r.PathValue("id"), func(c *alertConfig) { c.Name = in.Name })
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})

	mux.HandleFunc("PUT /api/events/settings/application-alert-configs/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		action := r.PathValue("action")
		if action != "enable" && action != "disable" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if _, ok := alerts.update(r.PathValue("id"), func(c *alertConfig) { c.Enabled = action == "enable" }); !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/automation/ai/action/match", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"name": "Restart pod", "score": 0.82},
			{"name": "Scale deployment", "score": 0.64},
		})
	})

	mux.HandleFunc("POST /api/automation/ai/action/generate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		subject, _ := req["eventDiagnosis"].(string)
		if subject == "" {
			subject, _ = req["eventName"].(string)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"actions": []string{"Inspect recent deploys for " + strings.TrimSpace(subject)},
		})
	})

	logger := log.New(log.Writer(), "instana-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, requireToken(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !strings.HasPrefix(r.Header.Get("Authorization"), "apiToken ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing api token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
