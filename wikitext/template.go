// Package wikitext parses and manipulates wikitext template
// invocations without a full markup parser. It understands just enough
// structure (nested templates, wikilinks, HTML comments and nowiki
// regions) to split parameters at the right pipes.
package wikitext

import (
	"fmt"
	"strconv"
	"strings"
)

// Template is one parsed {{name|...}} invocation. Parameter order is
// preserved; positional parameters are keyed by their index ("1", "2",
// ...) and serialize back without an explicit name.
type Template struct {
	Name   string
	params []param
}

type param struct {
	name       string
	value      string
	positional bool
}

// ParseTemplate parses a single template invocation. The input must be
// exactly one balanced {{...}} region, optionally surrounded by
// whitespace.
func ParseTemplate(s string) (*Template, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return nil, fmt.Errorf("not a template invocation: %q", truncate(s, 80))
	}
	inner := s[2 : len(s)-2]
	if end := scanBalanced(s, 0); end != len(s) {
		return nil, fmt.Errorf("unbalanced braces in template: %q", truncate(s, 80))
	}

	parts := splitTop(inner, '|')
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return nil, fmt.Errorf("template has no name: %q", truncate(s, 80))
	}

	t := &Template{Name: name}
	position := 0
	for _, part := range parts[1:] {
		if eq := indexTop(part, '='); eq >= 0 {
			t.params = append(t.params, param{
				name:  strings.TrimSpace(part[:eq]),
				value: part[eq+1:],
			})
		} else {
			position++
			t.params = append(t.params, param{
				name:       strconv.Itoa(position),
				value:      part,
				positional: true,
			})
		}
	}
	return t, nil
}

// Param returns the raw value of the named parameter. Positional
// parameters are addressed by index: Param("1") is the first unnamed
// parameter.
func (t *Template) Param(name string) (string, bool) {
	for _, p := range t.params {
		if p.name == name {
			return p.value, true
		}
	}
	return "", false
}

// Params returns parameter names in order of appearance.
func (t *Template) Params() []string {
	names := make([]string, len(t.params))
	for i, p := range t.params {
		names[i] = p.name
	}
	return names
}

// SetParam sets a parameter: any existing parameter of that name is
// removed and the new value appended at the end. Setting an absent
// parameter and replacing an existing one therefore produce the same
// serialized form.
func (t *Template) SetParam(name, value string) {
	t.RemoveParam(name)
	t.params = append(t.params, param{name: name, value: value})
}

// RenameParam renames a parameter in place, keeping its position and
// value. Renaming onto an existing parameter name is an error.
func (t *Template) RenameParam(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	if _, exists := t.Param(newName); exists {
		return fmt.Errorf("parameter %q already present", newName)
	}
	for i := range t.params {
		if t.params[i].name == oldName {
			t.params[i].name = newName
			t.params[i].positional = false
			return nil
		}
	}
	return fmt.Errorf("no parameter %q", oldName)
}

// RemoveParam removes the named parameter. Removing an absent
// parameter is a no-op. Remaining positional parameters keep their
// original indices.
func (t *Template) RemoveParam(name string) {
	for i, p := range t.params {
		if p.name == name {
			t.params = append(t.params[:i], t.params[i+1:]...)
			return
		}
	}
}

// String serializes the template back to {{name|k=v|...}} form. A
// positional parameter serializes bare only while its index matches
// the position it would be assigned on reparse; after a removal shifts
// it out of sequence it gets an explicit index, so reparsing never
// reassigns values to different keys.
func (t *Template) String() string {
	var b strings.Builder
	b.WriteString("{{")
	b.WriteString(t.Name)
	position := 0
	for _, p := range t.params {
		b.WriteByte('|')
		if p.positional && p.name == strconv.Itoa(position+1) {
			position++
		} else {
			b.WriteString(p.name)
			b.WriteByte('=')
		}
		b.WriteString(p.value)
	}
	b.WriteString("}}")
	return b.String()
}

// GetTemplateParam parses a template invocation and returns one
// parameter's value. With trim set, surrounding whitespace is removed.
func GetTemplateParam(template, name string, trim bool) (string, bool) {
	t, err := ParseTemplate(template)
	if err != nil {
		return "", false
	}
	value, ok := t.Param(name)
	if !ok {
		return "", false
	}
	if trim {
		value = strings.TrimSpace(value)
	}
	return value, true
}

// SetTemplateParam parses a template invocation, sets one parameter
// and serializes the result.
func SetTemplateParam(template, name, value string) (string, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	t.SetParam(name, value)
	return t.String(), nil
}

// RemoveTemplateParam parses a template invocation, removes one
// parameter and serializes the result.
func RemoveTemplateParam(template, name string) (string, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	t.RemoveParam(name)
	return t.String(), nil
}

// FindTemplates extracts every top-level template invocation from a
// page of wikitext, in order of appearance. Templates nested inside
// other templates are not reported separately; comment and nowiki
// regions are ignored.
func FindTemplates(text string) []string {
	var out []string
	i := 0
	for i < len(text) {
		if skipped := skipOpaque(text, i); skipped > i {
			i = skipped
			continue
		}
		if strings.HasPrefix(text[i:], "{{") {
			end := scanBalanced(text, i)
			if end < 0 {
				break
			}
			out = append(out, text[i:end])
			i = end
			continue
		}
		i++
	}
	return out
}

// StripComments removes HTML comment regions. An unterminated comment
// runs to the end of the text.
func StripComments(text string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "<!--") {
			end := strings.Index(text[i+4:], "-->")
			if end < 0 {
				break
			}
			i += 4 + end + 3
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

// splitTop splits s on sep occurring at the top nesting level,
// ignoring separators inside {{...}}, [[...]], comments and nowiki.
func splitTop(s string, sep byte) []string {
	var parts []string
	start := 0
	i := 0
	for i < len(s) {
		if skipped := skipNested(s, i); skipped > i {
			i = skipped
			continue
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
		i++
	}
	return append(parts, s[start:])
}

// indexTop returns the index of the first top-level occurrence of sep,
// or -1.
func indexTop(s string, sep byte) int {
	i := 0
	for i < len(s) {
		if skipped := skipNested(s, i); skipped > i {
			i = skipped
			continue
		}
		if s[i] == sep {
			return i
		}
		i++
	}
	return -1
}

// skipNested advances past an opaque region or a balanced nested
// construct starting at i, returning the index after it, or i when
// nothing nested starts here.
func skipNested(s string, i int) int {
	if skipped := skipOpaque(s, i); skipped > i {
		return skipped
	}
	if strings.HasPrefix(s[i:], "{{") || strings.HasPrefix(s[i:], "[[") {
		if end := scanBalanced(s, i); end > i {
			return end
		}
		// Unbalanced; treat the opener as literal text.
		return i + 2
	}
	return i
}

// skipOpaque advances past a comment or nowiki region starting at i.
// Unterminated regions run to the end of the text.
func skipOpaque(s string, i int) int {
	if strings.HasPrefix(s[i:], "<!--") {
		if end := strings.Index(s[i+4:], "-->"); end >= 0 {
			return i + 4 + end + 3
		}
		return len(s)
	}
	if strings.HasPrefix(s[i:], "<nowiki>") {
		if end := strings.Index(s[i+8:], "</nowiki>"); end >= 0 {
			return i + 8 + end + 9
		}
		return len(s)
	}
	return i
}

// scanBalanced scans a {{...}} or [[...]] construct starting at i and
// returns the index just past its closer, or -1 when unbalanced.
// Nested constructs of either kind and opaque regions are skipped.
func scanBalanced(s string, i int) int {
	var closer string
	switch {
	case strings.HasPrefix(s[i:], "{{"):
		closer = "}}"
	case strings.HasPrefix(s[i:], "[["):
		closer = "]]"
	default:
		return -1
	}
	opener := s[i : i+2]

	depth := 1
	j := i + 2
	for j < len(s) {
		if skipped := skipOpaque(s, j); skipped > j {
			j = skipped
			continue
		}
		switch {
		case strings.HasPrefix(s[j:], opener):
			depth++
			j += 2
		case strings.HasPrefix(s[j:], closer):
			depth--
			j += 2
			if depth == 0 {
				return j
			}
		case strings.HasPrefix(s[j:], "{{") || strings.HasPrefix(s[j:], "[["):
			// The other bracket kind; skip it as a unit.
			if end := scanBalanced(s, j); end > j {
				j = end
			} else {
				j += 2
			}
		default:
			j++
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
