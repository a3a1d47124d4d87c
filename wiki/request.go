package wiki

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// apiTimestamp is the ISO 8601 form the API accepts for range filters.
const apiTimestamp = "2006-01-02T15:04:05Z"

// RequestHelper is a fluent builder for the filters shared by list
// queries (revisions, log entries, contributions, recent changes). It
// is a value object: each With method returns a copy, so helpers can
// be shared and specialized without aliasing surprises.
type RequestHelper struct {
	start, end  time.Time
	user        string
	excludeUser string
	title       string
	namespaces  []int
	limit       int
	reverse     bool
	continueAt  string
}

// NewRequestHelper returns an empty helper: no filters, server-default
// limits, newest-first order.
func NewRequestHelper() RequestHelper {
	return RequestHelper{limit: -1}
}

// WithDateRange restricts results to [start, end]. Zero times leave
// the corresponding bound open.
func (h RequestHelper) WithDateRange(start, end time.Time) RequestHelper {
	h.start, h.end = start, end
	return h
}

// WithUser restricts results to those by the given user.
func (h RequestHelper) WithUser(user string) RequestHelper {
	h.user = user
	return h
}

// WithoutUser excludes results by the given user.
func (h RequestHelper) WithoutUser(user string) RequestHelper {
	h.excludeUser = user
	return h
}

// WithTitle restricts results to the given page.
func (h RequestHelper) WithTitle(title string) RequestHelper {
	h.title = title
	return h
}

// WithNamespaces restricts results to the given namespaces.
func (h RequestHelper) WithNamespaces(ns ...int) RequestHelper {
	h.namespaces = append([]int(nil), ns...)
	return h
}

// WithLimit caps the total number of results fetched. Negative means
// no cap (fetch until the server stops continuing).
func (h RequestHelper) WithLimit(limit int) RequestHelper {
	h.limit = limit
	return h
}

// Reverse asks for oldest-first order.
func (h RequestHelper) Reverse() RequestHelper {
	h.reverse = true
	return h
}

// WithContinue resumes a paginated query from a continuation token.
func (h RequestHelper) WithContinue(token string) RequestHelper {
	h.continueAt = token
	return h
}

// Limit returns the configured result cap (negative when uncapped).
func (h RequestHelper) Limit() int {
	return h.limit
}

// validate checks filter consistency before any request is issued.
func (h RequestHelper) validate() error {
	if !h.start.IsZero() && !h.end.IsZero() && h.start.After(h.end) {
		return &ArgumentError{
			Field:   "date range",
			Message: "start is after end",
		}
	}
	if h.user != "" && h.excludeUser != "" {
		return &ArgumentError{
			Field:   "user filter",
			Message: "cannot both include and exclude a user",
		}
	}
	return nil
}

// apply writes the helper's filters onto params using the API module's
// parameter prefix ("rv" for revisions, "le" for log events, ...).
// The API's older-first flag is <prefix>dir=newer; date bounds follow
// the listing direction (start is the newer bound when descending).
func (h RequestHelper) apply(prefix string, params url.Values) {
	if !h.start.IsZero() {
		params.Set(prefix+"start", h.start.UTC().Format(apiTimestamp))
	}
	if !h.end.IsZero() {
		params.Set(prefix+"end", h.end.UTC().Format(apiTimestamp))
	}
	if h.user != "" {
		params.Set(prefix+"user", h.user)
	}
	if h.excludeUser != "" {
		params.Set(prefix+"excludeuser", h.excludeUser)
	}
	if len(h.namespaces) > 0 {
		ns := make([]string, len(h.namespaces))
		for i, n := range h.namespaces {
			ns[i] = strconv.Itoa(n)
		}
		params.Set(prefix+"namespace", strings.Join(ns, "|"))
	}
	if h.reverse {
		params.Set(prefix+"dir", "newer")
	}
	if h.continueAt != "" {
		params.Set(prefix+"continue", h.continueAt)
	}
}

// pageLimit returns the per-request limit to ask the server for: the
// session's maximum, or less when the caller's remaining cap is lower.
func (h RequestHelper) pageLimit(sessionMax, fetched int) int {
	limit := sessionMax
	if h.limit >= 0 {
		if remaining := h.limit - fetched; remaining < limit {
			limit = remaining
		}
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
