package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExplainabilityFoldsCaseVariantKeys(t *testing.T) {
	var e Explainability
	if err := json.Unmarshal([]byte(`{"relevantSnapshotId":"snap-1","score":0.9}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.RelevantSnapshotID != "snap-1" {
		t.Fatalf("unexpected snapshot id %q", e.RelevantSnapshotID)
	}
	if _, ok := e.Extra["relevantSnapshotId"]; ok {
		t.Fatalf("case variant of a modelled key kept in extra: %v", e.Extra)
	}
	if _, ok := e.Extra["score"]; !ok {
		t.Fatalf("unmodelled key dropped: %v", e.Extra)
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"relevantSnapshotId"`) {
		t.Fatalf("duplicate snapshot key in %s", data)
	}
	if !strings.Contains(string(data), `"relevantSnapshotID":"snap-1"`) {
		t.Fatalf("snapshot id missing from %s", data)
	}
}
