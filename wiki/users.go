package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GetUsers looks up account information for the given usernames.
// Nonexistent accounts come back with Missing set rather than an
// error. Results are ordered to match the input.
func (c *Client) GetUsers(ctx context.Context, names []string) ([]User, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	byName := make(map[string]User, len(names))
	for _, chunk := range constructTitleString(names, c.queryLimit(), urlLengthMax) {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "users")
		params.Set("ususers", chunk)
		params.Set("usprop", "groups|rights|editcount|registration|blockinfo")

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		items, err := queryList(resp, "users")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			u, ok := item.(map[string]any)
			if !ok {
				continue
			}
			user := parseUser(u)
			byName[user.Name] = user
		}
	}

	out := make([]User, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := normalizeTitle(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if user, ok := byName[key]; ok {
			out = append(out, user)
		} else {
			out = append(out, User{Name: key, Missing: true})
		}
	}
	return out, nil
}

// GetCurrentUser returns the account this session is authenticated as.
func (c *Client) GetCurrentUser(ctx context.Context) (User, error) {
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return User{}, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")
	params.Set("uiprop", "groups|rights|editcount|registrationdate")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return User{}, err
	}

	query, ok := resp["query"].(map[string]any)
	if !ok {
		return User{}, &AuthenticationError{Operation: "userinfo", Reason: "malformed response"}
	}
	info, ok := query["userinfo"].(map[string]any)
	if !ok {
		return User{}, &AuthenticationError{Operation: "userinfo", Reason: "malformed response"}
	}
	return User{
		Name:         getString(info["name"]),
		UserID:       getInt64(info["id"]),
		Registration: getTime(info["registrationdate"]),
		Groups:       stringSlice(info["groups"]),
		Rights:       stringSlice(info["rights"]),
		EditCount:    getInt(info["editcount"]),
	}, nil
}

// GetUserContributions lists edits made by a user, newest first. The
// helper narrows by time window and namespace.
func (c *Client) GetUserContributions(ctx context.Context, user string, helper RequestHelper) ([]Contribution, error) {
	if strings.TrimSpace(user) == "" {
		return nil, &ArgumentError{Field: "user", Message: "user is required"}
	}
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var contribs []Contribution
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "usercontribs")
		params.Set("ucuser", normalizeTitle(user))
		params.Set("ucprop", "ids|title|timestamp|comment|sizediff|size|flags")
		params.Set("uclimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(contribs))))
		helper.apply("uc", params)
		if cont != "" {
			params.Set("uccontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		items, err := queryList(resp, "usercontribs")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			uc, ok := item.(map[string]any)
			if !ok {
				continue
			}
			contribs = append(contribs, Contribution{
				Title:     getString(uc["title"]),
				PageID:    getInt64(uc["pageid"]),
				Namespace: getInt(uc["ns"]),
				RevID:     getInt64(uc["revid"]),
				ParentID:  getInt64(uc["parentid"]),
				Timestamp: getTime(uc["timestamp"]),
				Comment:   getString(uc["comment"]),
				Size:      getInt(uc["size"]),
				SizeDiff:  getInt(uc["sizediff"]),
				Minor:     getBool(uc["minor"]),
				New:       getBool(uc["new"]),
			})
		}

		if helper.limit >= 0 && len(contribs) >= helper.limit {
			return contribs[:helper.limit], nil
		}
		next, ok := continueToken(resp, "uccontinue")
		if !ok {
			return contribs, nil
		}
		cont = next
	}
}

// GlobalUser is a CentralAuth account spanning a wiki farm.
type GlobalUser struct {
	Name         string
	ID           int64
	HomeWiki     string
	Registration time.Time
	Groups       []string
	Accounts     []GlobalAccount
}

// GlobalAccount is one local attachment of a global account.
type GlobalAccount struct {
	Wiki         string
	URL          string
	EditCount    int
	Registration time.Time
	Blocked      bool
}

// GetGlobalUserInfo queries CentralAuth for a global account and its
// attachments across the farm. Wikis without CentralAuth report an
// API error; unattached users come back with Missing semantics via
// PageNotFoundError.
func (c *Client) GetGlobalUserInfo(ctx context.Context, user string) (GlobalUser, error) {
	if strings.TrimSpace(user) == "" {
		return GlobalUser{}, &ArgumentError{Field: "user", Message: "user is required"}
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return GlobalUser{}, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "globaluserinfo")
	params.Set("guiuser", normalizeTitle(user))
	params.Set("guiprop", "groups|merged")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return GlobalUser{}, err
	}

	query, ok := resp["query"].(map[string]any)
	if !ok {
		return GlobalUser{}, fmt.Errorf("unexpected globaluserinfo response")
	}
	info, ok := query["globaluserinfo"].(map[string]any)
	if !ok {
		return GlobalUser{}, fmt.Errorf("unexpected globaluserinfo response")
	}
	if getBool(info["missing"]) {
		return GlobalUser{}, &PageNotFoundError{Title: "User:" + user}
	}

	gu := GlobalUser{
		Name:         getString(info["name"]),
		ID:           getInt64(info["id"]),
		HomeWiki:     getString(info["home"]),
		Registration: getTime(info["registration"]),
		Groups:       stringSlice(info["groups"]),
	}
	if merged, ok := info["merged"].([]any); ok {
		for _, m := range merged {
			acct, ok := m.(map[string]any)
			if !ok {
				continue
			}
			gu.Accounts = append(gu.Accounts, GlobalAccount{
				Wiki:         getString(acct["wiki"]),
				URL:          getString(acct["url"]),
				EditCount:    getInt(acct["editcount"]),
				Registration: getTime(acct["timestamp"]),
				Blocked:      acct["blocked"] != nil,
			})
		}
	}
	return gu, nil
}

func parseUser(u map[string]any) User {
	return User{
		Name:         getString(u["name"]),
		UserID:       getInt64(u["userid"]),
		Registration: getTime(u["registration"]),
		Groups:       stringSlice(u["groups"]),
		Rights:       stringSlice(u["rights"]),
		EditCount:    getInt(u["editcount"]),
		Blocked:      u["blockedby"] != nil,
		BlockedBy:    getString(u["blockedby"]),
		BlockReason:  getString(u["blockreason"]),
		Missing:      getBool(u["missing"]),
	}
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
