package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/repo"
)

type fakeOps struct {
	prc     map[string]models.EnrichedIncident
	results []models.ActionResult
	report  models.RemediationReport
	err     error
}

func (f fakeOps) PRCDetails(context.Context) (map[string]models.EnrichedIncident, error) {
	return f.prc, f.err
}

func (f fakeOps) Recommend(context.Context) ([]models.ActionResult, error) {
	return f.results, f.err
}

func (f fakeOps) Remediate(context.Context) (models.RemediationReport, error) {
	return f.report, f.err
}

func serve(t *testing.T, ops Operations, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewHandler(nil, ops).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestInfoAndHealth(t *testing.T) {
	rec := serve(t, fakeOps{}, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var info Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Version != Version || len(info.Endpoints) != 5 {
		t.Fatalf("unexpected info: %+v", info)
	}

	rec = serve(t, fakeOps{}, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPRCDetailsReturnsMap(t *testing.T) {
	ops := fakeOps{prc: map[string]models.EnrichedIncident{
		"SERVICE - cart - Unknown": {EntityType: "SERVICE", Problem: "Slow calls"},
	}}
	rec := serve(t, ops, "/prc-details")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["SERVICE - cart - Unknown"]["problem"] != "Slow calls" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestErrorsMapToStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"upstream": {err: &repo.StatusError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}, want: http.StatusUnauthorized},
		"shape":    {err: repo.ErrUnexpectedShape, want: http.StatusUnprocessableEntity},
		"other":    {err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for name, tc := range cases {
		rec := serve(t, fakeOps{err: tc.err}, "/prc-details")
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", name, tc.want, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Fatalf("%s: expected error body, got %s", name, rec.Body.String())
		}
	}
}

func TestRecommendCountsResults(t *testing.T) {
	rec := serve(t, fakeOps{results: []models.ActionResult{{EntityLabel: "a"}, {EntityLabel: "b"}}}, "/recommend")
	var body RecommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.TotalIncidents != 2 || len(body.Results) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}

	rec = serve(t, fakeOps{report: models.RemediationReport{Status: models.StatusNoIncidentsFound}}, "/trigger")
	if !strings.Contains(rec.Body.String(), models.StatusNoIncidentsFound) {
		t.Fatalf("unexpected trigger body: %s", rec.Body.String())
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	if rec := serve(t, fakeOps{}, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
