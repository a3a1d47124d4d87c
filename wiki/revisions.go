package wiki

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

const revisionProps = "ids|timestamp|user|comment|sha1|size|flags"

// GetRevisions retrieves the revision history of a page, newest first
// unless the helper asks for oldest-first order. Continuation is
// followed until the helper's limit is reached or history is
// exhausted.
func (c *Client) GetRevisions(ctx context.Context, title string, helper RequestHelper) ([]Revision, error) {
	if title == "" {
		return nil, &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.checkContentNamespace(ctx, "revision history", title); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	title = normalizeTitle(title)

	var revisions []Revision
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", title)
		params.Set("prop", "revisions")
		params.Set("rvprop", revisionProps)
		params.Set("rvlimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(revisions))))
		helper.apply("rv", params)
		if cont != "" {
			params.Set("rvcontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		pages, err := queryPages(resp)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			page, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if getBool(page["missing"]) {
				return nil, &PageNotFoundError{Title: title}
			}
			pageTitle := getString(page["title"])
			if revs, ok := page["revisions"].([]any); ok {
				for _, r := range revs {
					if rev, ok := r.(map[string]any); ok {
						revisions = append(revisions, parseRevision(pageTitle, rev))
					}
				}
			}
		}

		if helper.limit >= 0 && len(revisions) >= helper.limit {
			return revisions[:helper.limit], nil
		}
		next, ok := continueToken(resp, "rvcontinue")
		if !ok {
			return revisions, nil
		}
		cont = next
	}
}

// GetTopRevision retrieves the newest revision of a page.
func (c *Client) GetTopRevision(ctx context.Context, title string) (Revision, error) {
	revs, err := c.GetRevisions(ctx, title, NewRequestHelper().WithLimit(1))
	if err != nil {
		return Revision{}, err
	}
	if len(revs) == 0 {
		return Revision{}, &PageNotFoundError{Title: title}
	}
	return revs[0], nil
}

// GetRevision retrieves a single revision by ID.
func (c *Client) GetRevision(ctx context.Context, revID int64) (Revision, error) {
	if revID <= 0 {
		return Revision{}, &ArgumentError{Field: "revID", Value: strconv.FormatInt(revID, 10), Message: "revision ID must be positive"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return Revision{}, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("revids", strconv.FormatInt(revID, 10))
	params.Set("prop", "revisions")
	params.Set("rvprop", revisionProps)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return Revision{}, err
	}

	pages, err := queryPages(resp)
	if err != nil {
		return Revision{}, err
	}
	for _, p := range pages {
		page, ok := p.(map[string]any)
		if !ok {
			continue
		}
		pageTitle := getString(page["title"])
		if revs, ok := page["revisions"].([]any); ok && len(revs) > 0 {
			if rev, ok := revs[0].(map[string]any); ok {
				return parseRevision(pageTitle, rev), nil
			}
		}
	}
	return Revision{}, &PageNotFoundError{Title: fmt.Sprintf("revision %d", revID)}
}

// GetRevisionContent retrieves the wikitext of a specific revision.
// Content hidden through RevisionDelete yields a PermissionError.
func (c *Client) GetRevisionContent(ctx context.Context, revID int64) (string, error) {
	if revID <= 0 {
		return "", &ArgumentError{Field: "revID", Value: strconv.FormatInt(revID, 10), Message: "revision ID must be positive"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("revids", strconv.FormatInt(revID, 10))
	params.Set("prop", "revisions")
	params.Set("rvprop", "ids|content")
	params.Set("rvslots", "main")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return "", err
	}

	pages, err := queryPages(resp)
	if err != nil {
		return "", err
	}
	for _, p := range pages {
		page, ok := p.(map[string]any)
		if !ok {
			continue
		}
		revs, ok := page["revisions"].([]any)
		if !ok || len(revs) == 0 {
			continue
		}
		rev, ok := revs[0].(map[string]any)
		if !ok {
			continue
		}
		if getBool(rev["texthidden"]) {
			return "", &PermissionError{
				Operation: "revision content",
				Reason:    fmt.Sprintf("content of revision %d is hidden", revID),
			}
		}
		return pageContent(page), nil
	}
	return "", &PageNotFoundError{Title: fmt.Sprintf("revision %d", revID)}
}

// CompareRevisions fetches the diff between two revisions.
func (c *Client) CompareRevisions(ctx context.Context, fromRev, toRev int64) (Diff, error) {
	if fromRev <= 0 || toRev <= 0 {
		return Diff{}, &ArgumentError{Field: "revision IDs", Message: "both revision IDs must be positive"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return Diff{}, err
	}

	params := url.Values{}
	params.Set("action", "compare")
	params.Set("fromrev", strconv.FormatInt(fromRev, 10))
	params.Set("torev", strconv.FormatInt(toRev, 10))

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return Diff{}, err
	}

	compare, ok := resp["compare"].(map[string]any)
	if !ok {
		return Diff{}, fmt.Errorf("unexpected compare response")
	}
	return Diff{
		FromTitle:     getString(compare["fromtitle"]),
		FromRevID:     getInt64(compare["fromrevid"]),
		FromUser:      getString(compare["fromuser"]),
		FromTimestamp: getTime(compare["fromtimestamp"]),
		ToTitle:       getString(compare["totitle"]),
		ToRevID:       getInt64(compare["torevid"]),
		ToUser:        getString(compare["touser"]),
		ToTimestamp:   getTime(compare["totimestamp"]),
		Body:          getString(compare["body"]),
	}, nil
}

func parseRevision(title string, rev map[string]any) Revision {
	return Revision{
		Title:         title,
		RevID:         getInt64(rev["revid"]),
		ParentID:      getInt64(rev["parentid"]),
		Timestamp:     getTime(rev["timestamp"]),
		User:          getString(rev["user"]),
		Comment:       getString(rev["comment"]),
		SHA1:          getString(rev["sha1"]),
		Size:          getInt(rev["size"]),
		Minor:         getBool(rev["minor"]),
		Bot:           getBool(rev["bot"]),
		New:           getBool(rev["new"]),
		UserHidden:    getBool(rev["userhidden"]),
		CommentHidden: getBool(rev["commenthidden"]),
		ContentHidden: getBool(rev["texthidden"]) || getBool(rev["sha1hidden"]),
	}
}

// RemoveReverts filters reverts out of a revision list. A revert is a
// revision whose resulting content hash matches the hash of a strictly
// earlier revision of the same page: the revert and everything between
// it and the state it restores are discarded edits, while the restored
// revision itself is retained. An identical hash on a different page
// never counts as a revert. The retained revisions are returned oldest
// first, pages grouped in order of first appearance in the input.
func RemoveReverts(revs []Revision) []Revision {
	// Partition by page, keeping the order pages first appear in.
	var pageOrder []string
	byPage := make(map[string][]Revision)
	for _, r := range revs {
		if _, ok := byPage[r.Title]; !ok {
			pageOrder = append(pageOrder, r.Title)
		}
		byPage[r.Title] = append(byPage[r.Title], r)
	}

	var out []Revision
	for _, title := range pageOrder {
		out = append(out, removePageReverts(byPage[title])...)
	}
	return out
}

func removePageReverts(revs []Revision) []Revision {
	// Work oldest first so "seen strictly before" is a forward scan.
	ordered := append([]Revision(nil), revs...)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].RevID < ordered[j].RevID
	})

	removed := make([]bool, len(ordered))
	lastSeen := make(map[string]int) // sha1 -> latest index seen before current

	for i, rev := range ordered {
		if rev.SHA1 == "" {
			continue
		}
		if j, ok := lastSeen[rev.SHA1]; ok {
			// Revisions after the restored state up to and including
			// the revert are discarded edits.
			for k := j + 1; k <= i; k++ {
				removed[k] = true
			}
		}
		lastSeen[rev.SHA1] = i
	}

	out := make([]Revision, 0, len(ordered))
	for i, rev := range ordered {
		if !removed[i] {
			out = append(out, rev)
		}
	}
	return out
}
