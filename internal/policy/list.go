// Package policy evaluates the per-job file policies carried in the job record: string
// lists of path patterns and remap tables.
package policy

import (
	"strings"
	"unicode"
)

// List is a parsed policy list of exact names and glob patterns.
type List []string

// ParseList splits a policy attribute on whitespace, commas and newlines.
func ParseList(s string) List {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// Contains reports whether path, or its base filename, matches an entry.
// Matching is case-sensitive. '*' is the only wildcard and matches any run of
// characters, '/' included; every other character is literal.
func (l List) Contains(path string) bool {
	base := BaseName(path)
	for _, entry := range l {
		if matchEntry(entry, path) || (base != "" && matchEntry(entry, base)) {
			return true
		}
	}
	return false
}

func matchEntry(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}

	first, last := parts[0], parts[len(parts)-1]
	if len(name) < len(first)+len(last) ||
		!strings.HasPrefix(name, first) || !strings.HasSuffix(name, last) {
		return false
	}
	rest := name[len(first) : len(name)-len(last)]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, mid)
		if i < 0 {
			return false
		}
		rest = rest[i+len(mid):]
	}
	return true
}

// BaseName returns the part of p after the final '/'. A trailing slash yields "".
func BaseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}
