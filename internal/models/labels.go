package models

// Sentinel labels returned when a lookup cannot be resolved.
const (
	UnknownEndpoint       = "Unknown Endpoint"
	UnknownService        = "Unknown Service"
	UnknownInfrastructure = "Unknown Infrastructure"
	UnknownPlugin         = "Unknown"
)

// EndpointLabel is the resolved view of an endpoint steady id.
type EndpointLabel struct {
	EndpointLabel string
	ServiceID     string
	ServiceLabel  string
}

// InfrastructureDetails is the resolved view of an infrastructure snapshot id.
type InfrastructureDetails struct {
	Label           string
	Plugin          string
	Time            int64
	Metrics         map[string]any
	Tags            map[string]any
	RelatedEntities []RelatedEntity
}

// RelatedEntity is another entity matched by the same tag filter, trimmed for output.
type RelatedEntity struct {
	SnapshotID string         `json:"snapshotId"`
	Label      string         `json:"label"`
	Plugin     string         `json:"plugin"`
	Time       int64          `json:"time"`
	Metrics    map[string]any `json:"metrics"`
	Tags       map[string]any `json:"tags"`
}

// RelatedEntities wraps related entities the way the artifact nests them.
type RelatedEntities struct {
	Items []RelatedEntity `json:"items"`
}

// UnknownEndpointLabel is the endpoint sentinel.
func UnknownEndpointLabel() EndpointLabel {
	return EndpointLabel{EndpointLabel: UnknownEndpoint, ServiceLabel: UnknownService}
}

// UnknownInfrastructureDetails is the infrastructure sentinel for a lookup at ts.
func UnknownInfrastructureDetails(ts int64) InfrastructureDetails {
	return InfrastructureDetails{
		Label:           UnknownInfrastructure,
		Plugin:          UnknownPlugin,
		Time:            ts,
		RelatedEntities: []RelatedEntity{},
	}
}
