package models

import (
	"encoding/json"
	"fmt"
)

// Incident is an event returned by GET /api/events?eventTypeFilters=INCIDENT.
type Incident struct {
	EventID              string        `json:"eventId"`
	EventSpecificationID string        `json:"eventSpecificationId,omitempty"`
	EntityLabel          string        `json:"entityLabel"`
	EntityType           string        `json:"entityType"`
	EventEntityType      string        `json:"eventEntityType,omitempty"`
	Problem              string        `json:"problem"`
	Detail               string        `json:"detail"`
	State                string        `json:"state"`
	Type                 string        `json:"type"`
	ProbableCause        ProbableCause `json:"probableCause"`

	Extra map[string]json.RawMessage `json:"-"`
}

type incidentFields Incident

var incidentKeys = []string{
	"eventId", "eventSpecificationId", "entityLabel", "entityType", "eventEntityType",
	"problem", "detail", "state", "type", "probableCause",
}

// UnmarshalJSON keeps unmodelled keys in Extra.
func (i *Incident) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields incidentFields
	extra, err := decodeWithExtra(data, &fields, incidentKeys...)
	if err != nil {
		return err
	}
	*i = Incident(fields)
	i.Extra = extra
	return nil
}

// MarshalJSON re-emits unmodelled keys alongside the modelled ones.
func (i Incident) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(incidentFields(i), i.Extra)
}

// ProbableCause is the upstream PRC analysis attached to an incident.
type ProbableCause struct {
	Found            bool             `json:"found"`
	CurrentRootCause []RootCauseEntry `json:"currentRootCause"`

	Extra map[string]json.RawMessage `json:"-"`
}

type probableCauseFields ProbableCause

// UnmarshalJSON keeps unmodelled keys in Extra.
func (p *ProbableCause) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields probableCauseFields
	extra, err := decodeWithExtra(data, &fields, "found", "currentRootCause")
	if err != nil {
		return err
	}
	*p = ProbableCause(fields)
	p.Extra = extra
	return nil
}

// MarshalJSON re-emits unmodelled keys alongside the modelled ones.
func (p ProbableCause) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(probableCauseFields(p), p.Extra)
}

// Clone copies the root-cause slice so callers can rewrite entries without aliasing the source.
func (p ProbableCause) Clone() ProbableCause {
	out := p
	if p.CurrentRootCause != nil {
		out.CurrentRootCause = make([]RootCauseEntry, len(p.CurrentRootCause))
		copy(out.CurrentRootCause, p.CurrentRootCause)
	}
	return out
}

// EnrichedIncident is one value of the persisted PRC artifact.
type EnrichedIncident struct {
	EntityType    string        `json:"entityType"`
	Problem       string        `json:"problem"`
	Detail        string        `json:"detail"`
	ProbableCause ProbableCause `json:"probableCause"`
}

// OutputKey builds the artifact key for an incident.
func OutputKey(incident Incident) string {
	label := incident.EntityLabel
	if label == "" {
		label = "Unknown"
	}
	return fmt.Sprintf("Triggering Event ID: %s | Triggering Entity Label: %s", incident.EventID, label)
}
