package models

// MatchRequest is the body posted to the recommended-action match endpoint.
type MatchRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	EventID     string `json:"eventId"`
}

// GenerateRequest is the body posted to the action generation endpoint.
type GenerateRequest struct {
	EventID          string `json:"eventId"`
	EventEntityType  string `json:"eventEntityType,omitempty"`
	EventName        string `json:"eventName,omitempty"`
	EventDescription string `json:"eventDescription,omitempty"`
	EventDiagnosis   string `json:"eventDiagnosis,omitempty"`
}

// ActionResult is one recommended-actions record.
type ActionResult struct {
	RequestBody  MatchRequest `json:"request_body"`
	IncidentID   *int         `json:"incident_id"`
	EntityLabel  string       `json:"entityLabel"`
	Response     any          `json:"response,omitempty"`
	TotalEntries int          `json:"total_entries"`
	Error        string       `json:"error,omitempty"`
	ErrorStatus  int          `json:"error_status,omitempty"`
	ErrorType    string       `json:"error_type,omitempty"`
}

// RemediationResult holds the triggering-event response and one response per root cause.
type RemediationResult struct {
	IncidentID          *int                 `json:"incident_id"`
	EventID             string               `json:"event_id"`
	EntityLabel         string               `json:"entity_label"`
	RequestBody         GenerateRequest      `json:"request_body"`
	StatusCode          int                  `json:"status_code"`
	Response            any                  `json:"response,omitempty"`
	Error               string               `json:"error,omitempty"`
	AdditionalResponses []AdditionalResponse `json:"additional_responses"`
}

// AdditionalResponse is the generation result for one root-cause entity.
type AdditionalResponse struct {
	PluginType  PluginType       `json:"plugin_type,omitempty"`
	EntityID    string           `json:"entity_id,omitempty"`
	Label       string           `json:"label,omitempty"`
	StatusCode  int              `json:"status_code"`
	RequestBody *GenerateRequest `json:"request_body,omitempty"`
	Response    any              `json:"response,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Report statuses.
const (
	StatusSuccess          = "success"
	StatusNoIncidentsFound = "no_incidents_found"
)

// RemediationReport is the persisted remediation artifact.
type RemediationReport struct {
	Results []RemediationResult `json:"results"`
	Status  string              `json:"status"`
}
