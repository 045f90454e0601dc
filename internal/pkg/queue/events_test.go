package queue

import (
	"encoding/json"
	"testing"
)

func TestSeriesMaterializedEventCarriesPlaceholders(t *testing.T) {
	ev := SeriesMaterializedEvent{
		SeriesID:     "b0a9f7c2-0000-0000-0000-000000000001",
		OwnerID:      "b0a9f7c2-0000-0000-0000-000000000002",
		Created:      12,
		Placeholders: 1,
		Skipped:      0,
		Dates:        []string{"2025-06-03"},
		OccurredAt:   "2025-06-01T12:00:00Z",
	}

	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// Consumers reconcile created + placeholders against the dates list, so
	// the placeholder count must ride along with the rest of the run summary.
	if got, ok := payload["placeholders"]; !ok || got != float64(1) {
		t.Errorf("placeholders = %v (present=%v), want 1", got, ok)
	}
	if payload["created"] != float64(12) {
		t.Errorf("created = %v, want 12", payload["created"])
	}
}
