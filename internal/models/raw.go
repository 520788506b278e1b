package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// decodeWithExtra unmarshals data into dst and returns every top-level key that is not
// listed in known, so upstream fields we do not model survive a re-encode. Known keys
// match case-insensitively, as encoding/json does when filling dst.
func decodeWithExtra(data []byte, dst any, known ...string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for key := range all {
		if isKnown(key, known) {
			delete(all, key)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// encodeWithExtra marshals src and folds extra keys back in. Modelled fields win.
func encodeWithExtra(src any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(src)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	merged := make(map[string]json.RawMessage, len(extra)+8)
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

func isKnown(key string, known []string) bool {
	for _, k := range known {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
