package wiki

import (
	"fmt"
	"strings"
	"testing"
)

func TestConstructTitleStringCountLimit(t *testing.T) {
	titles := make([]string, 120)
	for i := range titles {
		titles[i] = fmt.Sprintf("Page %d", i)
	}

	batches := constructTitleString(titles, 50, urlLengthMax)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	sizes := []int{50, 50, 20}
	total := 0
	for i, batch := range batches {
		n := len(strings.Split(batch, titleListSep))
		if n != sizes[i] {
			t.Errorf("batch %d has %d titles, want %d", i, n, sizes[i])
		}
		if n > 50 {
			t.Errorf("batch %d exceeds the count limit", i)
		}
		total += n
	}
	if total != 120 {
		t.Errorf("batches cover %d titles, want 120", total)
	}
}

func TestConstructTitleStringLengthLimit(t *testing.T) {
	long := strings.Repeat("x", 30)
	titles := make([]string, 40)
	for i := range titles {
		titles[i] = fmt.Sprintf("%s %d", long, i)
	}

	const lengthLimit = 200
	batches := constructTitleString(titles, 500, lengthLimit)
	if len(batches) < 2 {
		t.Fatalf("expected multiple batches under a %d byte budget, got %d", lengthLimit, len(batches))
	}
	for i, batch := range batches {
		if len(batch) > lengthLimit {
			t.Errorf("batch %d is %d bytes, over the %d limit", i, len(batch), lengthLimit)
		}
	}
}

func TestConstructTitleStringOversizedSingleTitle(t *testing.T) {
	// A single title longer than the budget still gets a batch of its
	// own rather than being dropped.
	huge := strings.Repeat("y", 300)
	batches := constructTitleString([]string{huge, "Small"}, 50, 200)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0] != huge {
		t.Error("oversized title should occupy its own batch")
	}
}

func TestConstructTitleStringDedupes(t *testing.T) {
	batches := constructTitleString([]string{"A", "B", "A", "C", "B"}, 50, urlLengthMax)
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if batches[0] != "A|B|C" {
		t.Errorf("got %q, want %q", batches[0], "A|B|C")
	}
}

func TestConstructTitleStringEmpty(t *testing.T) {
	if batches := constructTitleString(nil, 50, urlLengthMax); batches != nil {
		t.Errorf("expected no batches, got %v", batches)
	}
}

func TestExpandResults(t *testing.T) {
	byTitle := map[string]string{
		"Main Page": "welcome",
		"Sandbox":   "play here",
	}
	normalized := map[string]string{"main page": "Main Page"}

	// Duplicates and normalized forms both map back to input positions.
	got := expandResults([]string{"main page", "Sandbox", "main page", "Gone"}, normalized, byTitle)
	want := []string{"welcome", "play here", "welcome", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalizedMap(t *testing.T) {
	resp := map[string]any{
		"query": map[string]any{
			"normalized": []any{
				map[string]any{"from": "main page", "to": "Main Page"},
				map[string]any{"from": "foo_bar", "to": "Foo bar"},
			},
		},
	}
	m := normalizedMap(resp)
	if m["main page"] != "Main Page" || m["foo_bar"] != "Foo bar" {
		t.Errorf("unexpected map: %v", m)
	}
	if len(normalizedMap(map[string]any{})) != 0 {
		t.Error("missing query should yield an empty map")
	}
}
