package wiki

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olgasafonova/wikikit/metrics"
)

// EditOptions modifies Edit behavior. The zero value replaces the full
// page text with no special flags.
type EditOptions struct {
	Minor bool
	Bot   bool

	// Section targets a single section: "0" for the lead, a section
	// index, or "new" to append a section titled SectionTitle. Empty
	// means the whole page.
	Section      string
	SectionTitle string

	// BaseTimestamp enables conflict detection: if the page was edited
	// after this time, the save fails with an EditConflictError instead
	// of silently overwriting the newer revision.
	BaseTimestamp time.Time

	CreateOnly bool // fail if the page already exists
	NoCreate   bool // fail if the page does not exist
}

// EditOutcome is the per-page result of a bulk write. Failures are
// reported individually rather than aborting the batch.
type EditOutcome struct {
	Title string
	Err   error
}

// Edit replaces the text of a page, or of one section of it.
func (c *Client) Edit(ctx context.Context, title, text, summary string, opts EditOptions) error {
	if title == "" {
		return &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := c.checkContentNamespace(ctx, "edit", title); err != nil {
		return err
	}
	if opts.Section == "new" && opts.SectionTitle == "" {
		return &ArgumentError{Field: "SectionTitle", Message: "required when Section is \"new\""}
	}
	title = normalizeTitle(title)

	params := url.Values{}
	params.Set("action", "edit")
	params.Set("title", title)
	params.Set("text", text)
	params.Set("summary", summary)
	if opts.Minor {
		params.Set("minor", "1")
	}
	if opts.Bot {
		params.Set("bot", "1")
	}
	if opts.Section != "" {
		params.Set("section", opts.Section)
		if opts.Section == "new" {
			params.Set("sectiontitle", opts.SectionTitle)
		}
	}
	if !opts.BaseTimestamp.IsZero() {
		params.Set("basetimestamp", opts.BaseTimestamp.UTC().Format(apiTimestamp))
		params.Set("starttimestamp", time.Now().UTC().Format(apiTimestamp))
	}
	if opts.CreateOnly {
		params.Set("createonly", "1")
	}
	if opts.NoCreate {
		params.Set("nocreate", "1")
	}

	err := c.postWithToken(ctx, title, params)
	recordEdit("edit", err)
	if err != nil {
		var conflict *EditConflictError
		if errors.As(err, &conflict) && conflict.Title == "" {
			conflict.Title = title
		}
		return err
	}
	c.invalidatePage(title)
	return nil
}

// AppendText appends text to the end of a page, creating it if needed.
func (c *Client) AppendText(ctx context.Context, title, text, summary string) error {
	if title == "" {
		return &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := c.checkContentNamespace(ctx, "edit", title); err != nil {
		return err
	}
	title = normalizeTitle(title)

	params := url.Values{}
	params.Set("action", "edit")
	params.Set("title", title)
	params.Set("appendtext", text)
	params.Set("summary", summary)

	err := c.postWithToken(ctx, title, params)
	recordEdit("append", err)
	if err != nil {
		return err
	}
	c.invalidatePage(title)
	return nil
}

// BulkEdit applies the same edit function to many pages, reporting a
// result per page instead of stopping at the first failure. editFn
// receives the current page text and returns the replacement; a nil
// error with unchanged text skips the save.
func (c *Client) BulkEdit(ctx context.Context, titles []string, summary string, editFn func(title, text string) (string, error)) []EditOutcome {
	outcomes := make([]EditOutcome, 0, len(titles))
	for _, title := range dedupeTitles(titles) {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, EditOutcome{Title: title, Err: err})
			continue
		}
		outcomes = append(outcomes, EditOutcome{Title: title, Err: c.bulkEditOne(ctx, title, summary, editFn)})
	}
	return outcomes
}

func (c *Client) bulkEditOne(ctx context.Context, title, summary string, editFn func(title, text string) (string, error)) error {
	top, err := c.GetTopRevision(ctx, title)
	if err != nil {
		return err
	}
	text, err := c.GetPageText(ctx, title)
	if err != nil {
		return err
	}
	replacement, err := editFn(title, text)
	if err != nil {
		return err
	}
	if replacement == text {
		return nil
	}
	return c.Edit(ctx, title, replacement, summary, EditOptions{BaseTimestamp: top.Timestamp})
}

// Delete deletes a page. The session must hold the delete right.
func (c *Client) Delete(ctx context.Context, title, reason string) error {
	if title == "" {
		return &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	if !c.hasRight("delete") {
		return &PermissionError{Operation: "delete", Right: "delete"}
	}
	title = normalizeTitle(title)

	params := url.Values{}
	params.Set("action", "delete")
	params.Set("title", title)
	params.Set("reason", reason)

	err := c.postWithToken(ctx, title, params)
	recordEdit("delete", err)
	if err != nil {
		return err
	}
	c.invalidatePage(title)
	return nil
}

// Undelete restores a deleted page and its revisions.
func (c *Client) Undelete(ctx context.Context, title, reason string) error {
	if title == "" {
		return &ArgumentError{Field: "title", Message: "title is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	if !c.hasRight("undelete") {
		return &PermissionError{Operation: "undelete", Right: "undelete"}
	}
	title = normalizeTitle(title)

	params := url.Values{}
	params.Set("action", "undelete")
	params.Set("title", title)
	params.Set("reason", reason)

	err := c.postWithToken(ctx, title, params)
	recordEdit("undelete", err)
	if err != nil {
		return err
	}
	c.invalidatePage(title)
	return nil
}

// Move renames a page, leaving a redirect behind unless suppressed.
func (c *Client) Move(ctx context.Context, from, to, reason string, noRedirect bool) error {
	if from == "" || to == "" {
		return &ArgumentError{Field: "title", Message: "both source and destination are required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	from, to = normalizeTitle(from), normalizeTitle(to)
	if from == to {
		return &ArgumentError{Field: "to", Value: to, Message: "source and destination are the same page"}
	}

	params := url.Values{}
	params.Set("action", "move")
	params.Set("from", from)
	params.Set("to", to)
	params.Set("reason", reason)
	params.Set("movetalk", "1")
	if noRedirect {
		params.Set("noredirect", "1")
	}

	err := c.postWithToken(ctx, from, params)
	recordEdit("move", err)
	if err != nil {
		return err
	}
	c.invalidatePage(from)
	c.invalidatePage(to)
	return nil
}

// Protect sets edit and move protection on a page. An empty level
// clears protection; expiry may be zero for indefinite.
func (c *Client) Protect(ctx context.Context, title, level, reason string, expiry time.Time) error {
	if title == "" {
		return &ArgumentError{Field: "title", Message: "title is required"}
	}
	if !expiry.IsZero() && expiry.Before(time.Now()) {
		return &ArgumentError{Field: "expiry", Value: expiry.Format(apiTimestamp), Message: "expiry is in the past"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	if !c.hasRight("protect") {
		return &PermissionError{Operation: "protect", Right: "protect"}
	}
	title = normalizeTitle(title)

	if level == "" {
		level = "all"
	}
	params := url.Values{}
	params.Set("action", "protect")
	params.Set("title", title)
	params.Set("protections", fmt.Sprintf("edit=%s|move=%s", level, level))
	params.Set("reason", reason)
	if expiry.IsZero() {
		params.Set("expiry", "infinite")
	} else {
		params.Set("expiry", expiry.UTC().Format(apiTimestamp))
	}

	err := c.postWithToken(ctx, title, params)
	recordEdit("protect", err)
	if err != nil {
		return err
	}
	c.invalidatePage(title)
	return nil
}

// Rollback reverts the newest run of consecutive edits by a single
// user on a page, using the dedicated rollback token.
func (c *Client) Rollback(ctx context.Context, title, user, summary string) error {
	if title == "" {
		return &ArgumentError{Field: "title", Message: "title is required"}
	}
	if user == "" {
		return &ArgumentError{Field: "user", Message: "user is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	if !c.hasRight("rollback") {
		return &PermissionError{Operation: "rollback", Right: "rollback"}
	}
	title = normalizeTitle(title)

	token, err := c.fetchToken(ctx, "rollback")
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("action", "rollback")
	params.Set("title", title)
	params.Set("user", user)
	params.Set("summary", summary)
	params.Set("token", token)

	_, err = c.apiRequest(ctx, params)
	recordEdit("rollback", err)
	if err != nil {
		return err
	}
	c.invalidatePage(title)
	return nil
}

// Purge invalidates the server-side rendered cache of the given pages.
func (c *Client) Purge(ctx context.Context, titles []string) error {
	if len(titles) == 0 {
		return nil
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	for _, chunk := range constructTitleString(titles, c.queryLimit(), urlLengthMax) {
		params := url.Values{}
		params.Set("action", "purge")
		params.Set("titles", chunk)
		if _, err := c.apiRequest(ctx, params); err != nil {
			return err
		}
	}
	return nil
}

// Upload uploads a file under the given name on the file namespace.
// The upload is a single multipart POST; the server-reported SHA-1 is
// checked against the local content to catch transfer corruption.
func (c *Client) Upload(ctx context.Context, filename, summary string, content io.Reader) error {
	if filename == "" {
		return &ArgumentError{Field: "filename", Message: "filename is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}
	if !c.hasRight("upload") {
		return &PermissionError{Operation: "upload", Right: "upload"}
	}
	filename = strings.TrimPrefix(normalizeTitle(filename), "File:")

	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read upload content: %w", err)
	}
	sum := sha1.Sum(data)
	localSHA1 := hex.EncodeToString(sum[:])

	token, err := c.getCSRFToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.multipartUpload(ctx, filename, summary, token, data)
	recordEdit("upload", err)
	if err != nil {
		return err
	}

	upload, ok := resp["upload"].(map[string]any)
	if !ok || getString(upload["result"]) != "Success" {
		return fmt.Errorf("upload of %q did not succeed: %v", filename, resp)
	}
	if info, ok := upload["imageinfo"].(map[string]any); ok {
		if remote := getString(info["sha1"]); remote != "" && remote != localSHA1 {
			return fmt.Errorf("upload of %q corrupted in transit: sha1 %s != %s", filename, remote, localSHA1)
		}
	}
	c.invalidatePage("File:" + filename)
	return nil
}

func (c *Client) multipartUpload(ctx context.Context, filename, summary, token string, data []byte) (map[string]any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"action":         "upload",
		"format":         "json",
		"formatversion":  "2",
		"filename":       filename,
		"comment":        summary,
		"ignorewarnings": "1",
		"token":          token,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if errObj, ok := result["error"].(map[string]any); ok {
		return nil, apiErrorFrom(getString(errObj["code"]), getString(errObj["info"]))
	}
	return result, nil
}

// postWithToken runs a token-bearing write action, retrying once with
// a fresh token when the server rejects a stale one.
func (c *Client) postWithToken(ctx context.Context, title string, params url.Values) error {
	token, err := c.getCSRFToken(ctx)
	if err != nil {
		return err
	}
	params.Set("token", token)

	_, err = c.apiRequest(ctx, params)
	var authErr *AuthenticationError
	if errors.As(err, &authErr) && strings.Contains(authErr.Reason, "badtoken") {
		c.mu.Lock()
		c.csrfToken = ""
		c.mu.Unlock()
		token, err = c.getCSRFToken(ctx)
		if err != nil {
			return err
		}
		params.Set("token", token)
		_, err = c.apiRequest(ctx, params)
	}
	if err != nil {
		c.logger.Warn("write failed",
			"action", params.Get("action"),
			"title", title,
			"error", err)
	}
	return err
}

func recordEdit(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.EditsTotal.WithLabelValues(kind, outcome).Inc()
}
