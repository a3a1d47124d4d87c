package wiki

import (
	"context"
	"net/http"
	"testing"
)

func TestGetLogEntries(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("letype"); got != "delete" {
			t.Errorf("letype = %q", got)
		}
		if r.Form.Has("leaction") {
			t.Error("leaction sent alongside letype")
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"logevents": []any{
				map[string]any{
					"logid":     float64(9001),
					"type":      "delete",
					"action":    "delete",
					"title":     "Spam page",
					"user":      "AdminUser",
					"timestamp": "2024-05-02T08:30:00Z",
					"comment":   "G11",
					"params":    map[string]any{"count": float64(3)},
				},
				map[string]any{
					"logid":        float64(9002),
					"type":         "delete",
					"action":       "restore",
					"title":        "",
					"timestamp":    "2024-05-02T09:00:00Z",
					"actionhidden": true,
					"userhidden":   true,
				},
			}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	entries, err := client.GetLogEntries(context.Background(), "delete", "", NewRequestHelper())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	e0 := entries[0]
	if e0.LogID != 9001 || e0.Type != "delete" || e0.Action != "delete" || e0.Title != "Spam page" {
		t.Errorf("entries[0] = %+v", e0)
	}
	if e0.Details == nil || getInt(e0.Details["count"]) != 3 {
		t.Errorf("entries[0].Details = %v", e0.Details)
	}
	e1 := entries[1]
	if !e1.TargetHidden || !e1.UserHidden {
		t.Errorf("entries[1] hidden flags not set: %+v", e1)
	}
}

func TestGetLogEntriesActionWins(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		// A qualified action implies its type; only leaction goes out.
		if got := r.FormValue("leaction"); got != "delete/restore" {
			t.Errorf("leaction = %q", got)
		}
		if r.Form.Has("letype") {
			t.Error("letype sent alongside leaction")
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"logevents": []any{}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	if _, err := client.GetLogEntries(context.Background(), "delete", "delete/restore", NewRequestHelper()); err != nil {
		t.Fatal(err)
	}
}

func TestGetLogEntriesContinuation(t *testing.T) {
	page := 0
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			writeJSON(w, map[string]any{
				"continue": map[string]any{"lecontinue": "20240502083000|9001"},
				"query": map[string]any{"logevents": []any{
					map[string]any{"logid": float64(9001), "type": "move", "timestamp": "2024-05-02T08:30:00Z"},
				}},
			})
			return
		}
		if got := r.FormValue("lecontinue"); got != "20240502083000|9001" {
			t.Errorf("lecontinue = %q", got)
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"logevents": []any{
				map[string]any{"logid": float64(9000), "type": "move", "timestamp": "2024-05-02T08:00:00Z"},
			}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	entries, err := client.GetLogEntries(context.Background(), "move", "", NewRequestHelper())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].LogID != 9001 || entries[1].LogID != 9000 {
		t.Errorf("entries = %+v", entries)
	}
}
