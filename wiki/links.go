package wiki

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PageLinks is the per-page result of a batch link fetch. Failures are
// reported per page rather than aborting the batch.
type PageLinks struct {
	Title string
	Links []ExternalLink
	Err   error
}

// Backlink is one entry from "What links here".
type Backlink struct {
	Title     string
	PageID    int64
	Namespace int
	Redirect  bool
}

// LinkCheckResult is the outcome of probing one external URL.
type LinkCheckResult struct {
	URL        string
	StatusCode int
	Status     string
	Broken     bool
	Err        error
}

// GetExternalLinks retrieves all external URLs referenced by a page.
func (c *Client) GetExternalLinks(ctx context.Context, title string) ([]ExternalLink, error) {
	if title == "" {
		return nil, &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	title = normalizeTitle(title)

	var links []ExternalLink
	cont := ""
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", title)
		params.Set("prop", "extlinks")
		params.Set("ellimit", strconv.Itoa(c.queryLimit()))
		if cont != "" {
			params.Set("elcontinue", cont)
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
			extlinks, ok := page["extlinks"].([]any)
			if !ok {
				continue
			}
			for _, el := range extlinks {
				entry, ok := el.(map[string]any)
				if !ok {
					continue
				}
				linkURL := getString(entry["url"])
				if linkURL == "" {
					continue
				}
				protocol := ""
				if u, err := url.Parse(linkURL); err == nil {
					protocol = u.Scheme
				}
				links = append(links, ExternalLink{URL: linkURL, Protocol: protocol})
			}
		}

		next, ok := continueToken(resp, "elcontinue")
		if !ok {
			return links, nil
		}
		cont = next
	}
}

// GetExternalLinksBatch fetches external links for many pages
// concurrently, with a bounded number of requests in flight. Results
// keep the input order; each page carries its own error.
func (c *Client) GetExternalLinksBatch(ctx context.Context, titles []string) []PageLinks {
	titles = dedupeTitles(titles)
	results := make([]PageLinks, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, title := range titles {
		g.Go(func() error {
			links, err := c.GetExternalLinks(gctx, title)
			results[i] = PageLinks{Title: title, Links: links, Err: err}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in the results
	return results
}

// GetBacklinks lists pages linking to the given page, following
// continuation up to the helper's limit.
func (c *Client) GetBacklinks(ctx context.Context, title string, helper RequestHelper) ([]Backlink, error) {
	if title == "" {
		return nil, &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var backlinks []Backlink
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "backlinks")
		params.Set("bltitle", normalizeTitle(title))
		params.Set("bllimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(backlinks))))
		// backlinks accepts only the namespace filter from the helper
		if len(helper.namespaces) > 0 {
			ns := make([]string, len(helper.namespaces))
			for i, n := range helper.namespaces {
				ns[i] = strconv.Itoa(n)
			}
			params.Set("blnamespace", strings.Join(ns, "|"))
		}
		if cont != "" {
			params.Set("blcontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		items, err := queryList(resp, "backlinks")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			bl, ok := item.(map[string]any)
			if !ok {
				continue
			}
			backlinks = append(backlinks, Backlink{
				Title:     getString(bl["title"]),
				PageID:    getInt64(bl["pageid"]),
				Namespace: getInt(bl["ns"]),
				Redirect:  getBool(bl["redirect"]),
			})
		}

		if helper.limit >= 0 && len(backlinks) >= helper.limit {
			return backlinks[:helper.limit], nil
		}
		next, ok := continueToken(resp, "blcontinue")
		if !ok {
			return backlinks, nil
		}
		cont = next
	}
}

// CheckLinks probes external URLs for broken-link detection. Private
// and internal targets are blocked rather than probed. At most five
// checks run concurrently; results keep the input order.
func (c *Client) CheckLinks(ctx context.Context, urls []string, timeout time.Duration) []LinkCheckResult {
	if timeout <= 0 || timeout > 30*time.Second {
		timeout = 10 * time.Second
	}

	results := make([]LinkCheckResult, len(urls))
	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup
	for i, checkURL := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = checkOneLink(ctx, checkURL, timeout, c.config.UserAgent)
		}()
	}
	wg.Wait()
	return results
}

func checkOneLink(ctx context.Context, checkURL string, timeout time.Duration, userAgent string) LinkCheckResult {
	result := LinkCheckResult{URL: checkURL}

	parsed, err := url.Parse(checkURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		result.Status = "invalid_url"
		result.Err = &ArgumentError{Field: "url", Value: checkURL, Message: "not an absolute http(s) URL"}
		result.Broken = true
		return result
	}

	if hostname := parsed.Hostname(); hostname != "" {
		private, ssrfErr := isPrivateHost(hostname)
		if private {
			result.Status = "blocked"
			if ssrfErr != nil {
				result.Err = ssrfErr
			} else {
				result.Err = &SSRFError{URL: checkURL, Reason: "private network target"}
			}
			result.Broken = true
			return result
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// HEAD first; some servers only answer GET.
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodHead, checkURL, nil)
	req.Header.Set("User-Agent", userAgent)
	resp, err := linkCheckClient.Do(req)
	if err != nil {
		req, _ = http.NewRequestWithContext(reqCtx, http.MethodGet, checkURL, nil)
		req.Header.Set("User-Agent", userAgent)
		resp, err = linkCheckClient.Do(req)
	}
	if err != nil {
		result.Status = "error"
		result.Err = err
		result.Broken = true
		return result
	}
	_ = resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Status = resp.Status
	result.Broken = resp.StatusCode >= 400
	return result
}
