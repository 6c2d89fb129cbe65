package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEvent_MarshalJSON(t *testing.T) {
	ev := Event{
		ID:         "abc",
		Kind:       ComponentStatusChanged,
		Provider:   "OpenAI API",
		EntityID:   "c1",
		EntityName: "Chat Completions",
		OldStatus:  "operational",
		NewStatus:  "degraded_performance",
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Text:       "degraded performance",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	want := map[string]string{
		"id":          "abc",
		"kind":        "component_status_changed",
		"provider":    "OpenAI API",
		"entity_id":   "c1",
		"entity_name": "Chat Completions",
		"old_status":  "operational",
		"new_status":  "degraded_performance",
		"timestamp":   "2024-05-01T12:00:00Z",
		"text":        "degraded performance",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestEvent_MarshalJSON_OmitsEmptyOldStatus(t *testing.T) {
	ev := Event{Kind: IncidentCreated, NewStatus: "investigating"}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "old_status") {
		t.Errorf("json = %s, want no old_status field", data)
	}
}
