package wiki

import (
	"strings"
)

// Batching limits. Title lists are split so that no single request
// exceeds either the API's list limit for the session or a conservative
// URL length budget (servers commonly cap request lines around 8 KiB).
const (
	slowQueryMax = 50  // list limit for anonymous sessions
	fastQueryMax = 500 // list limit with apihighlimits
	urlLengthMax = 8000
	titleListSep = "|"
)

// constructTitleString joins titles into pipe-separated batch strings,
// each within both the given count limit and the URL length budget.
// Duplicates are collapsed (first occurrence wins) so a title is never
// requested twice; callers re-expand results to the original input.
func constructTitleString(titles []string, countLimit, lengthLimit int) []string {
	if countLimit <= 0 {
		countLimit = slowQueryMax
	}
	if lengthLimit <= 0 {
		lengthLimit = urlLengthMax
	}

	deduped := dedupeTitles(titles)

	var batches []string
	var current []string
	currentLen := 0

	for _, title := range deduped {
		// Joining adds one separator per extra title.
		nextLen := currentLen + len(title)
		if len(current) > 0 {
			nextLen += len(titleListSep)
		}
		if len(current) > 0 && (len(current) >= countLimit || nextLen > lengthLimit) {
			batches = append(batches, strings.Join(current, titleListSep))
			current = current[:0]
			nextLen = len(title)
		}
		current = append(current, title)
		currentLen = nextLen
	}
	if len(current) > 0 {
		batches = append(batches, strings.Join(current, titleListSep))
	}
	return batches
}

// dedupeTitles removes duplicates preserving first-seen order.
func dedupeTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// expandResults maps per-title results gathered from deduplicated
// batches back onto the caller's original title list, so output order
// and multiplicity match input. normalized maps requested titles to
// the canonical form the server reported them under.
func expandResults[T any](titles []string, normalized map[string]string, byTitle map[string]T) []T {
	out := make([]T, len(titles))
	for i, title := range titles {
		key := title
		if canon, ok := normalized[title]; ok {
			key = canon
		}
		out[i] = byTitle[key]
	}
	return out
}

// normalizedMap extracts the query.normalized mapping ("from" title as
// requested to "to" canonical title) from a query response.
func normalizedMap(resp map[string]any) map[string]string {
	out := make(map[string]string)
	query, ok := resp["query"].(map[string]any)
	if !ok {
		return out
	}
	entries, ok := query["normalized"].([]any)
	if !ok {
		return out
	}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out[getString(m["from"])] = getString(m["to"])
	}
	return out
}
