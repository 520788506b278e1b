package models

import "encoding/json"

// PluginType classifies the monitored entity a root-cause entry points at.
type PluginType string

const (
	PluginUnknown        PluginType = "unknown"
	PluginEndpoint       PluginType = "endpoint"
	PluginService        PluginType = "service"
	PluginInfrastructure PluginType = "infrastructure"
)

// DedupKey identifies one label lookup within an incident pass.
type DedupKey struct {
	ID        string
	Timestamp int64
}

// RootCauseEntry is one element of probableCause.currentRootCause.
type RootCauseEntry struct {
	EntityID       EntityID         `json:"entityID"`
	Timestamp      int64            `json:"timestamp,omitempty"`
	Explainability []Explainability `json:"explainability,omitempty"`
	SnapshotID     string           `json:"snapshotId,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type rootCauseFields RootCauseEntry

// UnmarshalJSON keeps unmodelled keys in Extra.
func (r *RootCauseEntry) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields rootCauseFields
	extra, err := decodeWithExtra(data, &fields, "entityID", "timestamp", "explainability", "snapshotId")
	if err != nil {
		return err
	}
	*r = RootCauseEntry(fields)
	r.Extra = extra
	return nil
}

// MarshalJSON re-emits unmodelled keys alongside the modelled ones.
func (r RootCauseEntry) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(rootCauseFields(r), r.Extra)
}

// Explainability is auxiliary evidence; it may carry the snapshot id of an infrastructure entity.
type Explainability struct {
	RelevantSnapshotID string `json:"relevantSnapshotID,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type explainabilityFields Explainability

// UnmarshalJSON keeps unmodelled keys in Extra.
func (e *Explainability) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields explainabilityFields
	extra, err := decodeWithExtra(data, &fields, "relevantSnapshotID")
	if err != nil {
		return err
	}
	*e = Explainability(fields)
	e.Extra = extra
	return nil
}

// MarshalJSON re-emits unmodelled keys alongside the modelled ones.
func (e Explainability) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(explainabilityFields(e), e.Extra)
}

// EntityID addresses the root-cause entity. The label fields are only set by enrichment.
type EntityID struct {
	PluginID string `json:"pluginId,omitempty"`
	SteadyID string `json:"steadyId,omitempty"`

	EndpointLabel string `json:"endpointLabel,omitempty"`
	ServiceID     string `json:"serviceId,omitempty"`
	ServiceLabel  string `json:"serviceLabel,omitempty"`

	InfrastructureLabel  string           `json:"infrastructureLabel,omitempty"`
	InfrastructurePlugin string           `json:"infrastructurePlugin,omitempty"`
	InfrastructureTime   int64            `json:"infrastructureTime,omitempty"`
	Metrics              map[string]any   `json:"metrics,omitempty"`
	Tags                 map[string]any   `json:"tags,omitempty"`
	RelatedEntities      *RelatedEntities `json:"relatedEntities,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type entityIDFields EntityID

var entityIDKeys = []string{
	"pluginId", "steadyId", "endpointLabel", "serviceId", "serviceLabel",
	"infrastructureLabel", "infrastructurePlugin", "infrastructureTime",
	"metrics", "tags", "relatedEntities",
}

// UnmarshalJSON keeps unmodelled keys in Extra.
func (e *EntityID) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields entityIDFields
	extra, err := decodeWithExtra(data, &fields, entityIDKeys...)
	if err != nil {
		return err
	}
	*e = EntityID(fields)
	e.Extra = extra
	return nil
}

// MarshalJSON re-emits unmodelled keys alongside the modelled ones.
func (e EntityID) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(entityIDFields(e), e.Extra)
}
