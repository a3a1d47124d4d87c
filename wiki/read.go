package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetPageText retrieves the current wikitext of a page. A missing page
// yields a PageNotFoundError.
func (c *Client) GetPageText(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := c.checkContentNamespace(ctx, "page text", title); err != nil {
		return "", err
	}
	title = normalizeTitle(title)

	data, err := c.cachedQuery(ctx, "page:"+title, pageContentTTL, func() (any, error) {
		return c.fetchPageText(ctx, title)
	})
	if err != nil {
		return "", err
	}
	return data.(string), nil
}

func (c *Client) fetchPageText(ctx context.Context, title string) (string, error) {
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "revisions")
	params.Set("rvprop", "content")
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
		if getBool(page["missing"]) {
			return "", &PageNotFoundError{Title: title}
		}
		return pageContent(page), nil
	}
	return "", &PageNotFoundError{Title: title}
}

// pageContent extracts the main-slot wikitext from a page object.
func pageContent(page map[string]any) string {
	revisions, ok := page["revisions"].([]any)
	if !ok || len(revisions) == 0 {
		return ""
	}
	rev, ok := revisions[0].(map[string]any)
	if !ok {
		return ""
	}
	slots, ok := rev["slots"].(map[string]any)
	if !ok {
		return getString(rev["content"])
	}
	main, ok := slots["main"].(map[string]any)
	if !ok {
		return ""
	}
	return getString(main["content"])
}

// GetPageTexts retrieves the wikitext of many pages in as few requests
// as batching allows. The result has one entry per input title, in
// input order, duplicates included; missing pages yield empty strings.
func (c *Client) GetPageTexts(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	byTitle := make(map[string]string)
	normalized := make(map[string]string)

	for _, batch := range constructTitleString(titles, c.queryLimit(), urlLengthMax) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", batch)
		params.Set("prop", "revisions")
		params.Set("rvprop", "content")
		params.Set("rvslots", "main")

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		for from, to := range normalizedMap(resp) {
			normalized[from] = to
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
			title := getString(page["title"])
			if getBool(page["missing"]) {
				byTitle[title] = ""
				continue
			}
			byTitle[title] = pageContent(page)
		}
	}

	return expandResults(titles, normalized, byTitle), nil
}

// Exists reports, for each input title in order, whether the page
// exists.
func (c *Client) Exists(ctx context.Context, titles []string) ([]bool, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	byTitle := make(map[string]bool)
	normalized := make(map[string]string)

	for _, batch := range constructTitleString(titles, c.queryLimit(), urlLengthMax) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", batch)
		params.Set("prop", "info")

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		for from, to := range normalizedMap(resp) {
			normalized[from] = to
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
			byTitle[getString(page["title"])] = !getBool(page["missing"])
		}
	}

	return expandResults(titles, normalized, byTitle), nil
}

// ResolveRedirects maps each input title to its redirect target, or to
// itself (normalized) when the page is not a redirect.
func (c *Client) ResolveRedirects(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	resolved := make(map[string]string)
	normalized := make(map[string]string)

	for _, batch := range constructTitleString(titles, c.queryLimit(), urlLengthMax) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", batch)
		params.Set("redirects", "1")

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		for from, to := range normalizedMap(resp) {
			normalized[from] = to
		}

		query, ok := resp["query"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected response format: no query")
		}
		if redirects, ok := query["redirects"].([]any); ok {
			for _, r := range redirects {
				m, ok := r.(map[string]any)
				if !ok {
					continue
				}
				resolved[getString(m["from"])] = getString(m["to"])
			}
		}
	}

	out := make([]string, len(titles))
	for i, title := range titles {
		canon := title
		if to, ok := normalized[title]; ok {
			canon = to
		}
		// Follow redirect chains the server collapsed into hops.
		for hops := 0; hops < len(resolved)+1; hops++ {
			to, ok := resolved[canon]
			if !ok {
				break
			}
			canon = to
		}
		out[i] = canon
	}
	return out, nil
}

// GetPageInfo retrieves metadata for a page.
func (c *Client) GetPageInfo(ctx context.Context, title string) (PageInfo, error) {
	if title == "" {
		return PageInfo{}, &ArgumentError{Field: "title", Message: "title is required"}
	}
	title = normalizeTitle(title)

	data, err := c.cachedQuery(ctx, "pageinfo:"+title, pageInfoTTL, func() (any, error) {
		return c.fetchPageInfo(ctx, title)
	})
	if err != nil {
		return PageInfo{}, err
	}
	return data.(PageInfo), nil
}

func (c *Client) fetchPageInfo(ctx context.Context, title string) (PageInfo, error) {
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return PageInfo{}, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "info")
	params.Set("inprop", "protection")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return PageInfo{}, err
	}

	pages, err := queryPages(resp)
	if err != nil {
		return PageInfo{}, err
	}
	for _, p := range pages {
		page, ok := p.(map[string]any)
		if !ok {
			continue
		}
		info := PageInfo{
			Title:        getString(page["title"]),
			PageID:       getInt64(page["pageid"]),
			Namespace:    getInt(page["ns"]),
			ContentModel: getString(page["contentmodel"]),
			Language:     getString(page["pagelanguage"]),
			Length:       getInt(page["length"]),
			Touched:      getTime(page["touched"]),
			LastRevID:    getInt64(page["lastrevid"]),
			Exists:       !getBool(page["missing"]),
			Redirect:     getBool(page["redirect"]),
		}
		if protection, ok := page["protection"].([]any); ok {
			for _, pr := range protection {
				rule, ok := pr.(map[string]any)
				if !ok {
					continue
				}
				info.Protection = append(info.Protection, ProtectionEntry{
					Type:   getString(rule["type"]),
					Level:  getString(rule["level"]),
					Expiry: getString(rule["expiry"]),
				})
			}
		}
		return info, nil
	}
	return PageInfo{}, &PageNotFoundError{Title: title}
}

// GetSectionText retrieves one section of a page by its zero-based
// index (section 0 is the lead).
func (c *Client) GetSectionText(ctx context.Context, title string, section int) (string, error) {
	if title == "" {
		return "", &ArgumentError{Field: "title", Message: "title is required"}
	}
	if section < 0 {
		return "", &ArgumentError{Field: "section", Value: strconv.Itoa(section), Message: "section index cannot be negative"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", normalizeTitle(title))
	params.Set("prop", "wikitext")
	params.Set("section", strconv.Itoa(section))

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return "", err
	}

	parse, ok := resp["parse"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected parse response")
	}
	return getString(parse["wikitext"]), nil
}

// Search runs a full-text search.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) (SearchResult, error) {
	if query == "" {
		return SearchResult{}, &ArgumentError{Field: "query", Message: "query is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return SearchResult{}, err
	}
	if limit <= 0 || limit > c.queryLimit() {
		limit = c.queryLimit()
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "snippet|size|wordcount")
	if offset > 0 {
		params.Set("sroffset", strconv.Itoa(offset))
	}

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Query: query}
	if q, ok := resp["query"].(map[string]any); ok {
		if si, ok := q["searchinfo"].(map[string]any); ok {
			result.TotalHits = getInt(si["totalhits"])
		}
	}

	hits, err := queryList(resp, "search")
	if err != nil {
		return SearchResult{}, err
	}
	for _, h := range hits {
		item, ok := h.(map[string]any)
		if !ok {
			continue
		}
		result.Hits = append(result.Hits, SearchHit{
			PageID:  getInt64(item["pageid"]),
			Title:   getString(item["title"]),
			Snippet: getString(item["snippet"]),
			Size:    getInt(item["size"]),
			WordCnt: getInt(item["wordcount"]),
		})
	}

	result.HasMore = offset+len(result.Hits) < result.TotalHits
	if result.HasMore {
		result.NextOffset = offset + len(result.Hits)
	}
	return result, nil
}

// ListPages lists pages in a namespace, optionally filtered by title
// prefix, following continuation until the helper's limit is reached.
func (c *Client) ListPages(ctx context.Context, prefix string, namespace int, helper RequestHelper) ([]string, error) {
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var titles []string
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "allpages")
		params.Set("apnamespace", strconv.Itoa(namespace))
		params.Set("aplimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(titles))))
		if prefix != "" {
			params.Set("apprefix", prefix)
		}
		if cont != "" {
			params.Set("apcontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		pages, err := queryList(resp, "allpages")
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			if page, ok := p.(map[string]any); ok {
				titles = append(titles, getString(page["title"]))
			}
		}

		if helper.limit >= 0 && len(titles) >= helper.limit {
			return titles[:helper.limit], nil
		}
		next, ok := continueToken(resp, "apcontinue")
		if !ok {
			return titles, nil
		}
		cont = next
	}
}

// GetCategoryMembers lists the members of a category. The name may be
// given with or without the "Category:" prefix.
func (c *Client) GetCategoryMembers(ctx context.Context, category string, helper RequestHelper) ([]string, error) {
	if category == "" {
		return nil, &ArgumentError{Field: "category", Message: "category is required"}
	}
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	category = normalizeCategoryName(category)

	var titles []string
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "categorymembers")
		params.Set("cmtitle", category)
		params.Set("cmlimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(titles))))
		helper.apply("cm", params)
		if cont != "" {
			params.Set("cmcontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		members, err := queryList(resp, "categorymembers")
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if member, ok := m.(map[string]any); ok {
				titles = append(titles, getString(member["title"]))
			}
		}

		if helper.limit >= 0 && len(titles) >= helper.limit {
			return titles[:helper.limit], nil
		}
		next, ok := continueToken(resp, "cmcontinue")
		if !ok {
			return titles, nil
		}
		cont = next
	}
}

// GetRecentChanges retrieves the recent-changes feed.
func (c *Client) GetRecentChanges(ctx context.Context, helper RequestHelper) ([]RecentChange, error) {
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var changes []RecentChange
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "recentchanges")
		params.Set("rclimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(changes))))
		params.Set("rcprop", "title|ids|sizes|flags|user|timestamp|comment")
		helper.apply("rc", params)
		if cont != "" {
			params.Set("rccontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		list, err := queryList(resp, "recentchanges")
		if err != nil {
			return nil, err
		}
		for _, rc := range list {
			change, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			changes = append(changes, RecentChange{
				Type:      getString(change["type"]),
				Title:     getString(change["title"]),
				PageID:    getInt64(change["pageid"]),
				RevID:     getInt64(change["revid"]),
				OldRevID:  getInt64(change["old_revid"]),
				User:      getString(change["user"]),
				Timestamp: getTime(change["timestamp"]),
				Comment:   getString(change["comment"]),
				SizeDiff:  getInt(change["newlen"]) - getInt(change["oldlen"]),
				Minor:     getBool(change["minor"]),
				Bot:       getBool(change["bot"]),
			})
		}

		if helper.limit >= 0 && len(changes) >= helper.limit {
			return changes[:helper.limit], nil
		}
		next, ok := continueToken(resp, "rccontinue")
		if !ok {
			return changes, nil
		}
		cont = next
	}
}

// checkContentNamespace rejects content operations against virtual
// namespaces, which have no page content to operate on.
func (c *Client) checkContentNamespace(ctx context.Context, operation, title string) error {
	ns, err := c.Namespace(ctx, title)
	if err != nil {
		return err
	}
	if ns == SpecialNamespace || ns == MediaNamespace {
		return &UnsupportedError{
			Operation: operation,
			Target:    title,
			Reason:    "virtual namespaces have no page content",
		}
	}
	return nil
}

// normalizeCategoryName ensures a category name carries its prefix.
func normalizeCategoryName(name string) string {
	name = normalizeTitle(name)
	if len(name) < len("Category:") || name[:len("Category:")] != "Category:" {
		name = "Category:" + name
	}
	return name
}
