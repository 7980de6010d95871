package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// Remap maps a file name to a replacement path or URL.
type Remap struct {
	Name   string
	Target string
}

// RemapTable is an ordered list of remaps. The first match wins.
type RemapTable []Remap

// ParseRemaps parses "name = target" entries separated by ';'. Whitespace around names
// and targets is trimmed and a backslash escapes the following character. Entries
// without '=' or with an empty name are skipped.
func ParseRemaps(s string) RemapTable {
	var (
		table  RemapTable
		name   strings.Builder
		target strings.Builder
		cur    = &name
		seenEq bool
	)
	flush := func() {
		n := strings.TrimSpace(name.String())
		if seenEq && n != "" {
			table = append(table, Remap{Name: n, Target: strings.TrimSpace(target.String())})
		}
		name.Reset()
		target.Reset()
		cur = &name
		seenEq = false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case c == '=' && !seenEq:
			seenEq = true
			cur = &target
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return table
}

// Find tries each candidate in order against the whole table and returns the target of
// the first entry matching the earliest candidate.
func (t RemapTable) Find(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, r := range t {
			if r.Name == c {
				return r.Target, true
			}
		}
	}
	return "", false
}

// BufferParams is an explicit buffer size setting from a per-file override.
type BufferParams struct {
	Size      int
	BlockSize int
}

func (p BufferParams) String() string {
	return fmt.Sprintf("(%d,%d)", p.Size, p.BlockSize)
}

// ParseBufferParams parses "(size,blocksize)". Text after the closing parenthesis is
// ignored.
func ParseBufferParams(s string) (BufferParams, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return BufferParams{}, false
	}
	inner, _, ok := strings.Cut(s[1:], ")")
	if !ok {
		return BufferParams{}, false
	}
	sizeText, blockText, ok := strings.Cut(inner, ",")
	if !ok {
		return BufferParams{}, false
	}
	size, err := strconv.Atoi(strings.TrimSpace(sizeText))
	if err != nil {
		return BufferParams{}, false
	}
	block, err := strconv.Atoi(strings.TrimSpace(blockText))
	if err != nil {
		return BufferParams{}, false
	}
	return BufferParams{Size: size, BlockSize: block}, true
}
