package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/miradorstack/instana-sre/internal/models"
)

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		data = encoded
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func newClientWith(t *testing.T, rt roundTripFunc) *InstanaClient {
	t.Helper()
	client := NewInstanaClient(ClientOptions{
		BaseURL:  "https://tenant.instana.example/",
		APIToken: "secret",
		Timeout:  time.Second,
	})
	client.httpClient = newTestClient(rt)
	return client
}

func TestFetchIncidentsSendsAuthAndQuery(t *testing.T) {
	client := newClientWith(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/events" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("eventTypeFilters"); got != "INCIDENT" {
			t.Fatalf("unexpected filter: %s", got)
		}
		if got := req.Header.Get("Authorization"); got != "apiToken secret" {
			t.Fatalf("unexpected authorization header: %s", got)
		}
		return jsonResponse(t, http.StatusOK, `[{"eventId":"e1","state":"open","type":"incident","probableCause":{"found":true,"currentRootCause":[]},"severity":10}]`), nil
	})

	incidents, err := client.FetchIncidents(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(incidents) != 1 || incidents[0].EventID != "e1" || !incidents[0].ProbableCause.Found {
		t.Fatalf("unexpected incidents: %+v", incidents)
	}
	if _, ok := incidents[0].Extra["severity"]; !ok {
		t.Fatalf("expected unknown field to be preserved")
	}
}

func TestFetchIncidentsRejectsNonArray(t *testing.T) {
	client := newClientWith(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, `{"message":"not a list"}`), nil
	})

	_, err := client.FetchIncidents(context.Background())
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Fatalf("expected ErrUnexpectedShape, got %v", err)
	}
}

func TestFetchIncidentsReturnsStatusError(t *testing.T) {
	client := newClientWith(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusUnauthorized, `{"error":"bad token"}`), nil
	})

	_, err := client.FetchIncidents(context.Background())
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.HTTPStatus() != http.StatusUnauthorized {
		t.Fatalf("expected StatusError, got %T", err)
	}
}

func TestEndpointMetricsPayloadAndCache(t *testing.T) {
	hits := 0
	stub := newStubCache()
	client := NewInstanaClient(ClientOptions{
		BaseURL:  "https://tenant.instana.example",
		APIToken: "secret",
		Cache:    stub,
		CacheTTL: time.Minute,
	})
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.Method != http.MethodPost || req.URL.Path != "/api/application-monitoring/metrics/endpoints" {
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		var body struct {
			EndpointID string        `json:"endpointId"`
			Metrics    []MetricQuery `json:"metrics"`
			TimeFrame  TimeFrame     `json:"timeFrame"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.EndpointID != "ep-1" || body.TimeFrame.To != 1_700_000_000_000 || body.TimeFrame.WindowSize != 3_600_000 {
			t.Fatalf("unexpected payload: %+v", body)
		}
		if len(body.Metrics) != 1 || body.Metrics[0].Metric != "latency" || body.Metrics[0].Aggregation != "MEAN" {
			t.Fatalf("unexpected metrics: %+v", body.Metrics)
		}
		return jsonResponse(t, http.StatusOK, `{"items":[{"endpoint":{"label":"GET /cart","serviceId":"svc-1"}}]}`), nil
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		resp, err := client.EndpointMetrics(ctx, "ep-1", 1_700_000_000_000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Items) != 1 || resp.Items[0].Endpoint.Label != "GET /cart" || resp.Items[0].Endpoint.ServiceID != "svc-1" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	}
	if hits != 1 {
		t.Fatalf("expected cached second lookup, got %d upstream hits", hits)
	}
	if stub.sets != 1 {
		t.Fatalf("expected one cache write, got %d", stub.sets)
	}
}

func TestInfrastructureEntitiesTagFilter(t *testing.T) {
	client := newClientWith(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/infrastructure-monitoring/analyze/entities" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		filter, _ := body["tagFilterExpression"].(map[string]any)
		if filter["name"] != "id.process" || filter["value"] != "snap-1" || filter["operator"] != "EQUALS" ||
			filter["type"] != "TAG_FILTER" || filter["entity"] != "NOT_APPLICABLE" {
			t.Fatalf("unexpected tag filter: %+v", filter)
		}
		pagination, _ := body["pagination"].(map[string]any)
		if pagination["retrievalSize"] != float64(200) {
			t.Fatalf("unexpected pagination: %+v", pagination)
		}
		return jsonResponse(t, http.StatusOK, `{"items":[{"snapshotId":"snap-1","label":"java","plugin":"process","time":5}]}`), nil
	})

	items, err := client.InfrastructureEntities(context.Background(), "id.process", "snap-1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Label != "java" || items[0].Time != 5 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestAlertConfigToggleAndUpdate(t *testing.T) {
	var calls []string
	client := newClientWith(t, func(req *http.Request) (*http.Response, error) {
		calls = append(calls, req.Method+" "+req.URL.Path)
		switch {
		case req.Method == http.MethodGet && req.URL.Path == "/api/events/settings/application-alert-configs":
			if req.URL.Query().Get("applicationId") != "app-1" {
				t.Fatalf("missing application id query")
			}
			return jsonResponse(t, http.StatusOK, `[{"id":"a1","name":"Latency","enabled":true,"threshold":{"value":3}}]`), nil
		case req.Method == http.MethodPut:
			return jsonResponse(t, http.StatusNoContent, ""), nil
		case req.Method == http.MethodPost:
			var body map[string]any
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if _, ok := body["threshold"]; !ok {
				t.Fatalf("expected preserved fields in update: %+v", body)
			}
			return jsonResponse(t, http.StatusOK, body), nil
		}
		t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		return nil, nil
	})

	ctx := context.Background()
	configs, err := client.ListAlertConfigs(ctx, "app-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(configs) != 1 || configs[0].ID != "a1" {
		t.Fatalf("unexpected configs: %+v", configs)
	}
	if err := client.DisableAlertConfig(ctx, "a1"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := client.EnableAlertConfig(ctx, "a1"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	cfg := configs[0]
	cfg.Name = "[INC-1] Latency"
	updated, err := client.UpdateAlertConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "[INC-1] Latency" {
		t.Fatalf("unexpected updated name: %s", updated.Name)
	}

	want := []string{
		"GET /api/events/settings/application-alert-configs",
		"PUT /api/events/settings/application-alert-configs/a1/disable",
		"PUT /api/events/settings/application-alert-configs/a1/enable",
		"POST /api/events/settings/application-alert-configs/a1",
	}
	if len(calls) != len(want) {
		t.Fatalf("unexpected calls: %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: want %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestGenerateActionsReturnsStatus(t *testing.T) {
	client := newClientWith(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/automation/ai/action/generate" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, `[{"name":"restart pod"}]`), nil
	})

	status, resp, err := client.GenerateActions(context.Background(), models.GenerateRequest{EventID: "e1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	list, ok := resp.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("unexpected response: %#v", resp)
	}
}
