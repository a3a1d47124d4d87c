package wiki

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func TestGetPageTextMissing(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"query": map[string]any{"pages": []any{map[string]any{
				"title":   "No such page",
				"missing": true,
			}}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	_, err := client.GetPageText(context.Background(), "No such page")
	var notFound *PageNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want PageNotFoundError", err)
	}
	if notFound.Title != "No such page" {
		t.Errorf("Title = %q", notFound.Title)
	}
}

func TestGetPageTextVirtualNamespace(t *testing.T) {
	var pageRequests int
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		pageRequests++
		http.Error(w, "unexpected request", http.StatusBadRequest)
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	_, err := client.GetPageText(context.Background(), "Special:RecentChanges")
	var unsup *UnsupportedError
	if !errors.As(err, &unsup) {
		t.Fatalf("err = %v, want UnsupportedError", err)
	}
	if pageRequests != 0 {
		t.Errorf("content request was sent for a virtual namespace")
	}
}

func TestGetPageTexts(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"normalized": []any{
					map[string]any{"from": "second page", "to": "Second page"},
				},
				"pages": []any{
					map[string]any{
						"title": "First page",
						"revisions": []any{map[string]any{
							"slots": map[string]any{"main": map[string]any{"content": "one"}},
						}},
					},
					map[string]any{
						"title": "Second page",
						"revisions": []any{map[string]any{
							"slots": map[string]any{"main": map[string]any{"content": "two"}},
						}},
					},
					map[string]any{
						"title":   "Ghost",
						"missing": true,
					},
				},
			},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	texts, err := client.GetPageTexts(context.Background(), []string{"First page", "second page", "Ghost", "First page"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "", "one"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("texts = %q, want %q", texts, want)
	}
}

func TestExists(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"query": map[string]any{"pages": []any{
				map[string]any{"title": "Real page", "pageid": float64(12)},
				map[string]any{"title": "Ghost", "missing": true},
			}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	exists, err := client.Exists(context.Background(), []string{"Real page", "Ghost"})
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false}
	if !reflect.DeepEqual(exists, want) {
		t.Errorf("exists = %v, want %v", exists, want)
	}
}

func TestResolveRedirects(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("redirects") != "1" {
			t.Errorf("redirects = %q, want 1", r.FormValue("redirects"))
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"normalized": []any{
					map[string]any{"from": "uk", "to": "Uk"},
				},
				"redirects": []any{
					map[string]any{"from": "Uk", "to": "United Kingdom"},
					map[string]any{"from": "United Kingdom", "to": "United Kingdom of Great Britain and Northern Ireland"},
				},
				"pages": []any{
					map[string]any{"title": "United Kingdom of Great Britain and Northern Ireland"},
					map[string]any{"title": "Plain page"},
				},
			},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	resolved, err := client.ResolveRedirects(context.Background(), []string{"uk", "Plain page"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"United Kingdom of Great Britain and Northern Ireland", "Plain page"}
	if !reflect.DeepEqual(resolved, want) {
		t.Errorf("resolved = %q, want %q", resolved, want)
	}
}

func TestGetSectionText(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("action") != "parse" {
			t.Errorf("action = %q", r.FormValue("action"))
		}
		if r.FormValue("section") != "2" {
			t.Errorf("section = %q", r.FormValue("section"))
		}
		writeJSON(w, map[string]any{"parse": map[string]any{
			"title":    "Main Page",
			"wikitext": "== History ==\nOld text.",
		}})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	text, err := client.GetSectionText(context.Background(), "Main Page", 2)
	if err != nil {
		t.Fatal(err)
	}
	if text != "== History ==\nOld text." {
		t.Errorf("text = %q", text)
	}

	var argErr *ArgumentError
	if _, err := client.GetSectionText(context.Background(), "Main Page", -1); !errors.As(err, &argErr) {
		t.Errorf("negative section err = %v, want ArgumentError", err)
	}
}

func TestSearch(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("srsearch"); got != "squirrel" {
			t.Errorf("srsearch = %q", got)
		}
		if got := r.FormValue("sroffset"); got != "10" {
			t.Errorf("sroffset = %q", got)
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"searchinfo": map[string]any{"totalhits": float64(14)},
				"search": []any{
					map[string]any{"pageid": float64(1), "title": "Squirrel", "snippet": "a <b>squirrel</b>", "size": float64(900), "wordcount": float64(120)},
					map[string]any{"pageid": float64(2), "title": "Red squirrel", "size": float64(700), "wordcount": float64(80)},
				},
			},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	result, err := client.Search(context.Background(), "squirrel", 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalHits != 14 {
		t.Errorf("TotalHits = %d", result.TotalHits)
	}
	if len(result.Hits) != 2 || result.Hits[0].Title != "Squirrel" {
		t.Errorf("Hits = %+v", result.Hits)
	}
	if !result.HasMore || result.NextOffset != 12 {
		t.Errorf("HasMore = %v, NextOffset = %d", result.HasMore, result.NextOffset)
	}
}

func TestGetCategoryMembers(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("cmtitle"); got != "Category:Stubs" {
			t.Errorf("cmtitle = %q, want Category:Stubs", got)
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"categorymembers": []any{
				map[string]any{"title": "Alpha"},
				map[string]any{"title": "Beta"},
			}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	// Both the bare and the prefixed form address the same category.
	for _, input := range []string{"stubs", "Category:Stubs"} {
		members, err := client.GetCategoryMembers(context.Background(), input, NewRequestHelper())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(members, []string{"Alpha", "Beta"}) {
			t.Errorf("members(%q) = %v", input, members)
		}
	}
}

func TestListPages(t *testing.T) {
	page := 0
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("apnamespace"); got != "10" {
			t.Errorf("apnamespace = %q", got)
		}
		if got := r.FormValue("apprefix"); got != "Cite" {
			t.Errorf("apprefix = %q", got)
		}
		page++
		if page == 1 {
			writeJSON(w, map[string]any{
				"continue": map[string]any{"apcontinue": "Cite_web"},
				"query": map[string]any{"allpages": []any{
					map[string]any{"title": "Template:Cite book"},
					map[string]any{"title": "Template:Cite journal"},
				}},
			})
			return
		}
		if got := r.FormValue("apcontinue"); got != "Cite_web" {
			t.Errorf("apcontinue = %q", got)
		}
		writeJSON(w, map[string]any{
			"query": map[string]any{"allpages": []any{
				map[string]any{"title": "Template:Cite web"},
			}},
		})
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	titles, err := client.ListPages(context.Background(), "Cite", TemplateNamespace, NewRequestHelper())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Template:Cite book", "Template:Cite journal", "Template:Cite web"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}
