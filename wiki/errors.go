package wiki

import (
	"fmt"
)

// ArgumentError reports malformed caller input. Operations validate
// their arguments eagerly and return this before any network traffic.
type ArgumentError struct {
	Field   string
	Value   string
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Value != "" {
		v := e.Value
		if len(v) > 100 {
			v = v[:100] + "..."
		}
		return fmt.Sprintf("invalid %s %q: %s", e.Field, v, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnsupportedError reports an operation that is not valid for the
// target, such as requesting the revision history of a Special: page.
type UnsupportedError struct {
	Operation string
	Target    string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s not supported for %q: %s", e.Operation, e.Target, e.Reason)
}

// PermissionError reports that the session lacks a right the operation
// needs, either detected locally from cached user rights or reported
// by the server.
type PermissionError struct {
	Operation string
	Right     string
	Reason    string
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied for %s", e.Operation)
	if e.Right != "" {
		msg += fmt.Sprintf(" (requires %q)", e.Right)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AssertError reports an assert-mode mismatch: the server rejected a
// request because the session no longer satisfies the configured
// assertion ("user" or "bot"), typically after being logged out.
type AssertError struct {
	Assertion string
	Info      string
}

func (e *AssertError) Error() string {
	return fmt.Sprintf("session assertion %q failed: %s", e.Assertion, e.Info)
}

// APIError is a structured error reported by the MediaWiki API.
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error [%s]: %s", e.Code, e.Info)
}

// PageNotFoundError reports a read against a page that does not exist.
type PageNotFoundError struct {
	Title string
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page not found: %s", e.Title)
}

// EditConflictError reports that a write lost a race: the page changed
// between the base revision the caller read and the save.
type EditConflictError struct {
	Title        string
	BaseRevision int64
}

func (e *EditConflictError) Error() string {
	return fmt.Sprintf("edit conflict on %q (base revision %d)", e.Title, e.BaseRevision)
}

// AuthenticationError reports a failed login or token fetch.
type AuthenticationError struct {
	Operation string
	Reason    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.Operation, e.Reason)
}

// apiErrorFrom maps a server-reported error code to the library's
// error taxonomy. Unrecognized codes stay plain APIErrors.
func apiErrorFrom(code, info string) error {
	switch code {
	case "permissiondenied", "protectedpage", "protectednamespace",
		"cantmove", "cascadeprotected", "customcssjsprotected":
		return &PermissionError{Operation: "request", Reason: fmt.Sprintf("[%s] %s", code, info)}
	case "assertuserfailed":
		return &AssertError{Assertion: "user", Info: info}
	case "assertbotfailed":
		return &AssertError{Assertion: "bot", Info: info}
	case "missingtitle", "nosuchpageid", "nosuchrevid":
		return &PageNotFoundError{Title: info}
	case "editconflict":
		return &EditConflictError{Title: info}
	case "mustbeloggedin", "notloggedin", "badtoken":
		return &AuthenticationError{Operation: "request", Reason: fmt.Sprintf("[%s] %s", code, info)}
	default:
		return &APIError{Code: code, Info: info}
	}
}
