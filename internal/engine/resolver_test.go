package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/repo"
)

type fakeLabelClient struct {
	mu sync.Mutex

	endpoints map[string]*repo.EndpointInfo
	services  map[string]string
	infra     []repo.InfraEntity
	err       error

	endpointCalls int
	serviceCalls  int
	infraCalls    int
	lastFilter    string
}

func (f *fakeLabelClient) EndpointMetrics(_ context.Context, endpointID string, _ int64) (repo.EndpointMetricsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpointCalls++
	var resp repo.EndpointMetricsResponse
	if f.err != nil {
		return resp, f.err
	}
	if info, ok := f.endpoints[endpointID]; ok {
		resp.Items = append(resp.Items, repo.EndpointItem{Endpoint: info})
	}
	return resp, nil
}

func (f *fakeLabelClient) ServiceMetrics(_ context.Context, serviceID string, _ int64) (repo.ServiceMetricsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serviceCalls++
	var resp repo.ServiceMetricsResponse
	if f.err != nil {
		return resp, f.err
	}
	if label, ok := f.services[serviceID]; ok {
		resp.Items = append(resp.Items, repo.ServiceItem{Service: &repo.ServiceInfo{Label: label}})
	}
	return resp, nil
}

func (f *fakeLabelClient) InfrastructureEntities(_ context.Context, filterName, _ string, _ int64, _ int) ([]repo.InfraEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infraCalls++
	f.lastFilter = filterName
	if f.err != nil {
		return nil, f.err
	}
	return f.infra, nil
}

func threeHosts() []repo.InfraEntity {
	return []repo.InfraEntity{
		{SnapshotID: "snap-a", Label: "host-a", Plugin: "host", Time: 100, Metrics: map[string]any{"cpu": 0.4}},
		{SnapshotID: "snap-b", Label: "host-b", Plugin: "host", Time: 200, Tags: map[string]any{"zone": "eu"}},
		{SnapshotID: "snap-c", Label: "host-c", Plugin: "host", Time: 300},
	}
}

func TestResolveInfrastructureExactMatch(t *testing.T) {
	client := &fakeLabelClient{infra: threeHosts()}
	resolver := NewLabelResolver(client, nil, 200)

	details := resolver.ResolveInfrastructure(context.Background(), "snap-b", 1_000, "infrastructure.process")
	if details.Label != "host-b" || details.Time != 200 || details.Tags["zone"] != "eu" {
		t.Fatalf("unexpected primary entity: %+v", details)
	}
	if client.lastFilter != "id.process" {
		t.Fatalf("unexpected tag filter: %s", client.lastFilter)
	}
	if len(details.RelatedEntities) != 2 {
		t.Fatalf("expected 2 related entities, got %d", len(details.RelatedEntities))
	}
	if details.RelatedEntities[0].SnapshotID != "snap-a" || details.RelatedEntities[1].SnapshotID != "snap-c" {
		t.Fatalf("unexpected related entities: %+v", details.RelatedEntities)
	}

	for _, related := range details.RelatedEntities {
		data, err := json.Marshal(related)
		if err != nil {
			t.Fatalf("marshal related: %v", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatalf("unmarshal related: %v", err)
		}
		if len(fields) != 6 {
			t.Fatalf("expected exactly 6 fields, got %v", fields)
		}
		for _, key := range []string{"snapshotId", "label", "plugin", "time", "metrics", "tags"} {
			if _, ok := fields[key]; !ok {
				t.Fatalf("missing field %s in %v", key, fields)
			}
		}
	}
}

func TestResolveInfrastructureFallsBackToFirst(t *testing.T) {
	client := &fakeLabelClient{infra: threeHosts()}
	resolver := NewLabelResolver(client, nil, 200)

	details := resolver.ResolveInfrastructure(context.Background(), "snap-z", 1_000, "infrastructure.host")
	if details.Label != "host-a" {
		t.Fatalf("expected first item label, got %s", details.Label)
	}
	if len(details.RelatedEntities) != 2 || details.RelatedEntities[0].Label != "host-b" {
		t.Fatalf("unexpected related entities: %+v", details.RelatedEntities)
	}
}

func TestResolverSentinelsOnError(t *testing.T) {
	client := &fakeLabelClient{err: &repo.StatusError{StatusCode: 502, Status: "502 Bad Gateway"}}
	resolver := NewLabelResolver(client, nil, 200)
	ctx := context.Background()

	endpoint := resolver.ResolveEndpoint(ctx, "ep-1", 1_000)
	if endpoint.EndpointLabel != models.UnknownEndpoint || endpoint.ServiceLabel != models.UnknownService {
		t.Fatalf("unexpected endpoint fallback: %+v", endpoint)
	}
	if label := resolver.ResolveService(ctx, "svc-1", 1_000); label != models.UnknownService {
		t.Fatalf("unexpected service fallback: %s", label)
	}
	infra := resolver.ResolveInfrastructure(ctx, "snap-1", 1_000, "infrastructure.host")
	if infra.Label != models.UnknownInfrastructure || infra.Plugin != models.UnknownPlugin || infra.Time != 1_000 {
		t.Fatalf("unexpected infrastructure fallback: %+v", infra)
	}
	if infra.RelatedEntities == nil || len(infra.RelatedEntities) != 0 {
		t.Fatalf("expected empty related entities, got %+v", infra.RelatedEntities)
	}

	client.err = errors.New("dial tcp: connection refused")
	if label := resolver.ResolveService(ctx, "svc-1", 1_000); label != models.UnknownService {
		t.Fatalf("unexpected service fallback on transport error: %s", label)
	}
}

func TestResolverEmptyIDSkipsNetwork(t *testing.T) {
	client := &fakeLabelClient{}
	resolver := NewLabelResolver(client, nil, 200)
	ctx := context.Background()

	resolver.ResolveEndpoint(ctx, "", 1)
	resolver.ResolveService(ctx, "", 1)
	resolver.ResolveInfrastructure(ctx, "", 1, "")
	if client.endpointCalls+client.serviceCalls+client.infraCalls != 0 {
		t.Fatalf("expected no upstream calls for empty ids")
	}
}

func TestResolveEndpointLooksUpService(t *testing.T) {
	client := &fakeLabelClient{
		endpoints: map[string]*repo.EndpointInfo{"ep-1": {Label: "GET /cart", ServiceID: "svc-1"}},
		services:  map[string]string{"svc-1": "cart"},
	}
	resolver := NewLabelResolver(client, nil, 200)

	label := resolver.ResolveEndpoint(context.Background(), "ep-1", 1_000)
	if label.EndpointLabel != "GET /cart" || label.ServiceID != "svc-1" || label.ServiceLabel != "cart" {
		t.Fatalf("unexpected endpoint label: %+v", label)
	}
	if client.serviceCalls != 1 {
		t.Fatalf("expected one service lookup, got %d", client.serviceCalls)
	}

	missing := resolver.ResolveEndpoint(context.Background(), "ep-2", 1_000)
	if missing.EndpointLabel != models.UnknownEndpoint {
		t.Fatalf("expected sentinel for empty result, got %+v", missing)
	}
}
