package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase first letter", "main page", "Main page"},
		{"underscores to spaces", "Main_Page", "Main Page"},
		{"collapse spaces", "Main   Page", "Main Page"},
		{"trim", "  Main Page  ", "Main Page"},
		{"namespace prefix capitalized", "category:stubs", "Category:Stubs"},
		{"user page", "user:alice", "User:Alice"},
		{"already normalized", "Talk:Main Page", "Talk:Main Page"},
		{"empty", "", ""},
		{"colon first", ":weird", ":weird"},
		{"multibyte first rune", "édition critique", "Édition critique"},
		{"multibyte after prefix", "category:österreich", "Category:Österreich"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeTitle(tt.input); got != tt.want {
				t.Errorf("normalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNamespaceResolution(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unexpected request", http.StatusBadRequest)
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()
	ctx := context.Background()

	tests := []struct {
		title string
		want  int
	}{
		{"Main Page", MainNamespace},
		{"Category:Stubs", CategoryNamespace},
		{"category:stubs", CategoryNamespace},
		{"Image:Example.png", FileNamespace}, // alias
		{"File:Example.png", FileNamespace},
		{"Special:Export", SpecialNamespace},
		{"Template:Infobox", TemplateNamespace},
		{"1:1 scale", MainNamespace},  // colon in a main-space title
		{"Nosuchns:Page", MainNamespace},
	}
	for _, tt := range tests {
		got, err := client.Namespace(ctx, tt.title)
		if err != nil {
			t.Fatalf("Namespace(%q): %v", tt.title, err)
		}
		if got != tt.want {
			t.Errorf("Namespace(%q) = %d, want %d", tt.title, got, tt.want)
		}
	}
}

func TestNamespaceName(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unexpected request", http.StatusBadRequest)
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()
	ctx := context.Background()

	name, err := client.NamespaceName(ctx, CategoryNamespace)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Category" {
		t.Errorf("NamespaceName(14) = %q, want Category", name)
	}

	if _, err := client.NamespaceName(ctx, 9999); err == nil {
		t.Error("undefined namespace should be an error")
	}
}

func TestGetSiteInfo(t *testing.T) {
	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.FormValue("meta") != "siteinfo" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		fetches++
		writeJSON(w, siteinfoResponse())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()
	ctx := context.Background()

	info, err := client.GetSiteInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.SiteName != "Testwiki" {
		t.Errorf("SiteName = %q", info.SiteName)
	}
	if info.Generator != "MediaWiki 1.42.0" {
		t.Errorf("Generator = %q", info.Generator)
	}

	// The table is cached; repeated lookups must not refetch.
	if _, err := client.GetSiteInfo(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Namespace(ctx, "Main Page"); err != nil {
		t.Fatal(err)
	}
	if fetches != 1 {
		t.Errorf("siteinfo fetched %d times, want 1", fetches)
	}
}
