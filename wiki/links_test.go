package wiki

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestGetExternalLinks(t *testing.T) {
	page := 0
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("prop"); got != "extlinks" {
			t.Errorf("prop = %q", got)
		}
		page++
		if page == 1 {
			writeJSON(w, map[string]any{
				"continue": map[string]any{"elcontinue": "1|20"},
				"query": map[string]any{"pages": []any{map[string]any{
					"title": "Squirrel",
					"extlinks": []any{
						map[string]any{"url": "https://example.org/squirrels"},
						map[string]any{"url": "http://archive.example.net/1"},
					},
				}}},
			})
			return
		}
		if got := r.FormValue("elcontinue"); got != "1|20" {
			t.Errorf("elcontinue = %q", got)
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"pages": []any{map[string]any{
				"title": "Squirrel",
				"extlinks": []any{
					map[string]any{"url": "ftp://old.example.com/data"},
				},
			}}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	links, err := client.GetExternalLinks(context.Background(), "Squirrel")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3", len(links))
	}
	if links[0].URL != "https://example.org/squirrels" || links[0].Protocol != "https" {
		t.Errorf("links[0] = %+v", links[0])
	}
	if links[2].Protocol != "ftp" {
		t.Errorf("links[2].Protocol = %q", links[2].Protocol)
	}
}

func TestGetExternalLinksMissingPage(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"query": map[string]any{"pages": []any{map[string]any{
				"title":   "Ghost",
				"missing": true,
			}}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	_, err := client.GetExternalLinks(context.Background(), "Ghost")
	var notFound *PageNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want PageNotFoundError", err)
	}
}

func TestGetExternalLinksBatch(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		title := r.FormValue("titles")
		if title == "Ghost" {
			writeJSON(w, map[string]any{
				"query": map[string]any{"pages": []any{map[string]any{
					"title": "Ghost", "missing": true,
				}}},
			})
			return
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"pages": []any{map[string]any{
				"title": title,
				"extlinks": []any{
					map[string]any{"url": "https://example.org/" + title},
				},
			}}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	results := client.GetExternalLinksBatch(context.Background(), []string{"Alpha", "Ghost", "Beta"})
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Title != "Alpha" || results[0].Err != nil || len(results[0].Links) != 1 {
		t.Errorf("results[0] = %+v", results[0])
	}
	var notFound *PageNotFoundError
	if !errors.As(results[1].Err, &notFound) {
		t.Errorf("results[1].Err = %v, want PageNotFoundError", results[1].Err)
	}
	if results[2].Title != "Beta" || results[2].Err != nil {
		t.Errorf("results[2] = %+v", results[2])
	}
}

func TestGetBacklinks(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("bltitle"); got != "Squirrel" {
			t.Errorf("bltitle = %q", got)
		}
		if got := r.FormValue("blnamespace"); got != "0|14" {
			t.Errorf("blnamespace = %q", got)
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"backlinks": []any{
				map[string]any{"title": "Rodent", "pageid": float64(3), "ns": float64(0)},
				map[string]any{"title": "Sciuridae", "pageid": float64(4), "ns": float64(0), "redirect": true},
			}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	helper := NewRequestHelper().WithNamespaces(MainNamespace, CategoryNamespace)
	backlinks, err := client.GetBacklinks(context.Background(), "Squirrel", helper)
	if err != nil {
		t.Fatal(err)
	}
	if len(backlinks) != 2 {
		t.Fatalf("got %d backlinks", len(backlinks))
	}
	if backlinks[0].Title != "Rodent" || backlinks[0].Redirect {
		t.Errorf("backlinks[0] = %+v", backlinks[0])
	}
	if !backlinks[1].Redirect {
		t.Errorf("backlinks[1] should be a redirect: %+v", backlinks[1])
	}
}

func TestCheckLinksRejectsBadTargets(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid/w/api.php")
	defer client.Close()

	results := client.CheckLinks(context.Background(), []string{
		"not a url at all",
		"ftp://example.org/file",
		"http://127.0.0.1:8080/admin",
		"http://169.254.169.254/latest/meta-data/",
	}, 2*time.Second)

	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	for i, want := range []string{"invalid_url", "invalid_url", "blocked", "blocked"} {
		if results[i].Status != want {
			t.Errorf("results[%d].Status = %q, want %q", i, results[i].Status, want)
		}
		if !results[i].Broken {
			t.Errorf("results[%d] not marked broken", i)
		}
		if results[i].Err == nil {
			t.Errorf("results[%d] carries no error", i)
		}
	}

	var ssrfErr *SSRFError
	if !errors.As(results[2].Err, &ssrfErr) {
		t.Errorf("loopback target err = %v, want SSRFError", results[2].Err)
	}
}
