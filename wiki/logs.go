package wiki

import (
	"context"
	"net/url"
	"strconv"
)

// GetLogEntries queries the public log (deletions, moves, blocks,
// protections and so on). logType filters by log type, action by the
// "type/action" pair; both may be empty. The helper narrows by time
// window, user and title.
func (c *Client) GetLogEntries(ctx context.Context, logType, action string, helper RequestHelper) ([]LogEntry, error) {
	if err := helper.validate(); err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var entries []LogEntry
	cont := helper.continueAt
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "logevents")
		params.Set("leprop", "ids|type|title|user|timestamp|comment|details")
		params.Set("lelimit", strconv.Itoa(helper.pageLimit(c.queryLimit(), len(entries))))
		if action != "" {
			params.Set("leaction", action)
		} else if logType != "" {
			params.Set("letype", logType)
		}
		helper.apply("le", params)
		if cont != "" {
			params.Set("lecontinue", cont)
		}

		resp, err := c.apiRequest(ctx, params)
		if err != nil {
			return nil, err
		}

		items, err := queryList(resp, "logevents")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			ev, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entry := LogEntry{
				LogID:         getInt64(ev["logid"]),
				Type:          getString(ev["type"]),
				Action:        getString(ev["action"]),
				Title:         getString(ev["title"]),
				User:          getString(ev["user"]),
				Timestamp:     getTime(ev["timestamp"]),
				Comment:       getString(ev["comment"]),
				UserHidden:    getBool(ev["userhidden"]),
				CommentHidden: getBool(ev["commenthidden"]),
				TargetHidden:  getBool(ev["actionhidden"]),
			}
			if details, ok := ev["params"].(map[string]any); ok && len(details) > 0 {
				entry.Details = details
			}
			entries = append(entries, entry)
		}

		if helper.limit >= 0 && len(entries) >= helper.limit {
			return entries[:helper.limit], nil
		}
		next, ok := continueToken(resp, "lecontinue")
		if !ok {
			return entries, nil
		}
		cont = next
	}
}
