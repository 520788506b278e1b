package models

import "encoding/json"

// AlertConfig is an application alert configuration. The full upstream document is kept
// so an update can post it back unchanged apart from the fields we edit.
type AlertConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`

	Extra map[string]json.RawMessage `json:"-"`
}

type alertConfigFields AlertConfig

// UnmarshalJSON keeps unmodelled keys in Extra.
func (a *AlertConfig) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields alertConfigFields
	extra, err := decodeWithExtra(data, &fields, "id", "name", "description", "enabled")
	if err != nil {
		return err
	}
	*a = AlertConfig(fields)
	a.Extra = extra
	return nil
}

// MarshalJSON re-emits unmodelled keys alongside the modelled ones.
func (a AlertConfig) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(alertConfigFields(a), a.Extra)
}

// AlertToggle reports the state of one alert after a toggle.
type AlertToggle struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Renamed bool   `json:"renamed,omitempty"`
}
