package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Well-known namespace IDs, stable across all MediaWiki installations.
const (
	MediaNamespace    = -2
	SpecialNamespace  = -1
	MainNamespace     = 0
	TalkNamespace     = 1
	UserNamespace     = 2
	UserTalkNamespace = 3
	ProjectNamespace  = 4
	FileNamespace     = 6
	TemplateNamespace = 10
	CategoryNamespace = 14
)

// SiteInfo describes the wiki behind a session.
type SiteInfo struct {
	SiteName    string
	MainPage    string
	Generator   string
	Language    string
	Server      string
	ArticlePath string
	ScriptPath  string
	Timezone    string
	CaseModel   string
}

// namespaceTable caches the wiki's namespace names and aliases.
type namespaceTable struct {
	byName map[string]int // lowercased name or alias -> id
	byID   map[int]string // id -> canonical name
	site   SiteInfo
}

// loadNamespaces fetches the namespace table and site info through the
// response cache. The table almost never changes; failures are not
// cached, so a transient error does not poison the session.
func (c *Client) loadNamespaces(ctx context.Context) (*namespaceTable, error) {
	data, err := c.cachedQuery(ctx, "siteinfo", siteInfoTTL, func() (any, error) {
		return c.fetchNamespaces(ctx)
	})
	if err != nil {
		return nil, err
	}
	return data.(*namespaceTable), nil
}

func (c *Client) fetchNamespaces(ctx context.Context) (*namespaceTable, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "siteinfo")
	params.Set("siprop", "general|namespaces|namespacealiases")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch siteinfo: %w", err)
	}

	query, ok := resp["query"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected siteinfo response")
	}

	table := &namespaceTable{
		byName: make(map[string]int),
		byID:   make(map[int]string),
	}

	if general, ok := query["general"].(map[string]any); ok {
		table.site = SiteInfo{
			SiteName:    getString(general["sitename"]),
			MainPage:    getString(general["mainpage"]),
			Generator:   getString(general["generator"]),
			Language:    getString(general["lang"]),
			Server:      getString(general["server"]),
			ArticlePath: getString(general["articlepath"]),
			ScriptPath:  getString(general["scriptpath"]),
			Timezone:    getString(general["timezone"]),
			CaseModel:   getString(general["case"]),
		}
	}

	if namespaces, ok := query["namespaces"].(map[string]any); ok {
		for _, v := range namespaces {
			ns, ok := v.(map[string]any)
			if !ok {
				continue
			}
			id := getInt(ns["id"])
			name := getString(ns["name"])
			table.byID[id] = name
			table.byName[strings.ToLower(name)] = id
			if canonical := getString(ns["canonical"]); canonical != "" {
				table.byName[strings.ToLower(canonical)] = id
			}
		}
	}

	if aliases, ok := query["namespacealiases"].([]any); ok {
		for _, v := range aliases {
			alias, ok := v.(map[string]any)
			if !ok {
				continue
			}
			table.byName[strings.ToLower(getString(alias["alias"]))] = getInt(alias["id"])
		}
	}

	return table, nil
}

// GetSiteInfo returns general information about the wiki.
func (c *Client) GetSiteInfo(ctx context.Context) (SiteInfo, error) {
	table, err := c.loadNamespaces(ctx)
	if err != nil {
		return SiteInfo{}, err
	}
	return table.site, nil
}

// Namespace resolves the namespace of a title from its prefix. Titles
// without a recognized prefix belong to the main namespace.
func (c *Client) Namespace(ctx context.Context, title string) (int, error) {
	table, err := c.loadNamespaces(ctx)
	if err != nil {
		return 0, err
	}
	return table.namespaceOf(title), nil
}

// NamespaceName returns the local name of a namespace ID, and whether
// the wiki defines that namespace.
func (c *Client) NamespaceName(ctx context.Context, id int) (string, error) {
	table, err := c.loadNamespaces(ctx)
	if err != nil {
		return "", err
	}
	name, ok := table.byID[id]
	if !ok {
		return "", &ArgumentError{Field: "namespace", Value: fmt.Sprint(id), Message: "not defined on this wiki"}
	}
	return name, nil
}

func (t *namespaceTable) namespaceOf(title string) int {
	title = strings.ReplaceAll(strings.TrimSpace(title), "_", " ")
	idx := strings.Index(title, ":")
	if idx <= 0 {
		return MainNamespace
	}
	prefix := strings.ToLower(strings.TrimSpace(title[:idx]))
	if id, ok := t.byName[prefix]; ok {
		return id
	}
	// A colon in the title itself, e.g. "1:1 scale".
	return MainNamespace
}

// normalizeTitle normalizes a page title to MediaWiki conventions:
// trims whitespace, folds underscores to spaces, collapses runs of
// spaces, and capitalizes the first letter of both the namespace
// prefix and the page name.
func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return title
	}

	title = strings.ReplaceAll(title, "_", " ")
	for strings.Contains(title, "  ") {
		title = strings.ReplaceAll(title, "  ", " ")
	}

	if colonIdx := strings.Index(title, ":"); colonIdx > 0 {
		prefix := upperFirst(title[:colonIdx])
		rest := upperFirst(title[colonIdx+1:])
		return prefix + ":" + rest
	}
	return upperFirst(title)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
