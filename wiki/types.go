package wiki

import "time"

// Revision is an immutable snapshot of one revision of a page, as
// reported by the API. Two revisions are the same iff they share a
// revision ID and page title.
type Revision struct {
	Title     string
	RevID     int64
	ParentID  int64
	Timestamp time.Time
	User      string
	Comment   string
	SHA1      string // hex SHA-1 of the resulting page content
	Size      int
	Minor     bool
	Bot       bool
	New       bool

	// RevisionDeleted visibility flags. A hidden field reads as its
	// zero value; the flag records that it was withheld, not empty.
	UserHidden    bool
	CommentHidden bool
	ContentHidden bool
}

// Equal reports whether two revisions denote the same page revision.
func (r Revision) Equal(other Revision) bool {
	return r.RevID == other.RevID && r.Title == other.Title
}

// LogEntry is one entry from the wiki's public logs (deletions, moves,
// blocks, protections, ...).
type LogEntry struct {
	LogID     int64
	Type      string // log type, e.g. "delete", "move", "block"
	Action    string // action within the type, e.g. "restore"
	Title     string // target page
	User      string
	Timestamp time.Time
	Comment   string
	Details   map[string]any // type-specific parameters

	UserHidden    bool
	CommentHidden bool
	TargetHidden  bool
}

// User describes a registered account.
type User struct {
	Name         string
	UserID       int64
	Registration time.Time
	Groups       []string
	Rights       []string
	EditCount    int
	Blocked      bool
	BlockedBy    string
	BlockReason  string
	Missing      bool // no such account
}

// PageInfo is page metadata from prop=info.
type PageInfo struct {
	Title        string
	PageID       int64
	Namespace    int
	ContentModel string
	Language     string
	Length       int
	Touched      time.Time
	LastRevID    int64
	Exists       bool
	Redirect     bool
	Protection   []ProtectionEntry
}

// ProtectionEntry is one protection rule on a page.
type ProtectionEntry struct {
	Type   string // "edit", "move", ...
	Level  string // "autoconfirmed", "sysop", ...
	Expiry string // "infinity" or a timestamp
}

// SearchHit is one full-text search result.
type SearchHit struct {
	PageID  int64
	Title   string
	Snippet string
	Size    int
	WordCnt int
}

// SearchResult is a page of full-text search results.
type SearchResult struct {
	Query      string
	TotalHits  int
	Hits       []SearchHit
	HasMore    bool
	NextOffset int
}

// RecentChange is one entry from the recent-changes feed.
type RecentChange struct {
	Type      string // "edit", "new", "log"
	Title     string
	PageID    int64
	RevID     int64
	OldRevID  int64
	User      string
	Timestamp time.Time
	Comment   string
	SizeDiff  int
	Minor     bool
	Bot       bool
}

// Contribution is one edit from a user's contribution list.
type Contribution struct {
	Title     string
	PageID    int64
	Namespace int
	RevID     int64
	ParentID  int64
	Timestamp time.Time
	Comment   string
	Size      int
	SizeDiff  int
	Minor     bool
	New       bool
}

// ExternalLink is one external URL referenced by a page.
type ExternalLink struct {
	URL      string
	Protocol string
}

// Diff is the comparison of two revisions.
type Diff struct {
	FromTitle     string
	FromRevID     int64
	FromUser      string
	FromTimestamp time.Time
	ToTitle       string
	ToRevID       int64
	ToUser        string
	ToTimestamp   time.Time
	Body          string // HTML diff table rows
}
