package util

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNotDollarQuoted is returned by ScanDollarQuoted when the input at the
// given position does not open a dollar-quoted block.
var ErrNotDollarQuoted = errors.New("not a dollar-quoted string")

// ErrUnterminatedDollarQuote is returned when a dollar-quoted block has no
// closing tag.
var ErrUnterminatedDollarQuote = errors.New("unterminated dollar-quoted string")

func isTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isTagChar(c byte) bool {
	return isTagStart(c) || (c >= '0' && c <= '9')
}

// readTag reads a delimiter such as $$ or $body$ starting at s[i] == '$'.
// It returns the tag between the dollar signs and the index just past the
// closing dollar sign.
func readTag(s string, i int) (string, int, bool) {
	if i >= len(s) || s[i] != '$' {
		return "", 0, false
	}
	j := i + 1
	if j < len(s) && s[j] == '$' {
		return "", j + 1, true
	}
	if j >= len(s) || !isTagStart(s[j]) {
		return "", 0, false
	}
	for j < len(s) && isTagChar(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return "", 0, false
	}
	return s[i+1 : j], j + 1, true
}

// DollarTags returns every delimiter tag that occurs in body, sorted.
// The empty string stands for $$. Overlapping candidates such as the
// "a" and "b" in $a$b$ are both reported.
func DollarTags(body string) []string {
	seen := make(map[string]bool)
	for i := 0; i < len(body); i++ {
		if body[i] != '$' {
			continue
		}
		if tag, _, ok := readTag(body, i); ok {
			seen[tag] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// sanitizeTag turns an arbitrary hint into a valid delimiter tag.
func sanitizeTag(hint string) string {
	var b strings.Builder
	for i := 0; i < len(hint); i++ {
		c := hint[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	tag := b.String()
	if tag == "" {
		return "body"
	}
	if tag[0] >= '0' && tag[0] <= '9' {
		tag = "_" + tag
	}
	return tag
}

// delimiterFits reports whether delim can close a block holding body: the
// first occurrence of delim in body+delim must be the appended one.
func delimiterFits(body, delim string) bool {
	return strings.Index(body+delim, delim) == len(body)
}

// ChooseDollarTag returns a delimiter (including its dollar signs) that does
// not collide with any tag present in body. Candidates are tried in order:
// $$, $hint$, $hint_1$, $hint_2$ and so on.
func ChooseDollarTag(body, hint string) string {
	forbidden := make(map[string]bool)
	for _, tag := range DollarTags(body) {
		forbidden[tag] = true
	}

	if !forbidden[""] && delimiterFits(body, "$$") {
		return "$$"
	}

	base := sanitizeTag(hint)
	for n := 0; ; n++ {
		tag := base
		if n > 0 {
			tag = base + "_" + strconv.Itoa(n)
		}
		delim := "$" + tag + "$"
		if !forbidden[tag] && delimiterFits(body, delim) {
			return delim
		}
	}
}

// DollarQuote wraps body in a delimiter chosen by ChooseDollarTag.
func DollarQuote(body, hint string) string {
	delim := ChooseDollarTag(body, hint)
	return delim + body + delim
}

// ScanDollarQuoted parses one dollar-quoted block opening at src[pos]. It
// returns the tag, the enclosed text and the index just past the closing
// delimiter. Delimiters with other tags inside the block are plain text.
func ScanDollarQuoted(src string, pos int) (tag, body string, end int, err error) {
	tag, start, ok := readTag(src, pos)
	if !ok {
		return "", "", 0, fmt.Errorf("%w at offset %d", ErrNotDollarQuoted, pos)
	}
	delim := "$" + tag + "$"
	idx := strings.Index(src[start:], delim)
	if idx < 0 {
		return "", "", 0, fmt.Errorf("%w: missing closing %s for block at offset %d", ErrUnterminatedDollarQuote, delim, pos)
	}
	return tag, src[start : start+idx], start + idx + len(delim), nil
}

// skipQuoted returns the index just past the quoted token starting at s[i],
// where s[i] is the quote character. Doubled quotes are escapes.
func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// skipComment returns the index past a comment starting at s[i], or i when
// no comment starts there.
func skipComment(s string, i int) int {
	if strings.HasPrefix(s[i:], "--") {
		if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
			return i + nl + 1
		}
		return len(s)
	}
	if strings.HasPrefix(s[i:], "/*") {
		depth := 0
		for j := i; j < len(s)-1; j++ {
			switch s[j : j+2] {
			case "/*":
				depth++
				j++
			case "*/":
				depth--
				j++
				if depth == 0 {
					return j + 1
				}
			}
		}
		return len(s)
	}
	return i
}

// skipDollar returns the index past a dollar-quoted block at s[i], or i
// when none opens there. Positional parameters like $1 are not blocks.
func skipDollar(s string, i int) int {
	if i > 0 && isTagChar(s[i-1]) {
		return i
	}
	_, _, end, err := ScanDollarQuoted(s, i)
	if err != nil {
		if errors.Is(err, ErrUnterminatedDollarQuote) {
			return len(s)
		}
		return i
	}
	return end
}

// SplitTopLevel splits s on sep where sep is outside quotes, comments,
// dollar-quoted blocks and parentheses. Pieces are trimmed and empty pieces
// are dropped.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	flush := func(end int) {
		if p := strings.TrimSpace(s[last:end]); p != "" {
			parts = append(parts, p)
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i, c)
			continue
		case c == '-' || c == '/':
			if j := skipComment(s, i); j > i {
				i = j
				continue
			}
		case c == '$':
			if j := skipDollar(s, i); j > i {
				i = j
				continue
			}
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			flush(i)
			last = i + 1
		}
		i++
	}
	flush(len(s))
	return parts
}

// QualifiedReference is a schema-qualified name found in SQL text.
type QualifiedReference struct {
	Schema string
	Name   string
}

// readIdentifier reads an unquoted or quoted identifier at s[i] and returns
// its folded value and the index past it.
func readIdentifier(s string, i int) (string, int, bool) {
	if i >= len(s) {
		return "", i, false
	}
	if s[i] == '"' {
		end := skipQuoted(s, i, '"')
		if end > len(s) || end-i < 2 || s[end-1] != '"' {
			return "", i, false
		}
		return strings.ReplaceAll(s[i+1:end-1], `""`, `"`), end, true
	}
	if !isTagStart(s[i]) {
		return "", i, false
	}
	j := i
	for j < len(s) && (isTagChar(s[j]) || s[j] == '$') {
		j++
	}
	return strings.ToLower(s[i:j]), j, true
}

// ScanQualifiedNames lexically collects schema.name pairs from SQL text,
// skipping comments and dollar-quoted blocks. Names inside string literals
// are only taken when the literal is cast to regclass, as in nextval
// defaults. Results are unique and in order of first appearance.
func ScanQualifiedNames(text string) []QualifiedReference {
	var refs []QualifiedReference
	seen := make(map[QualifiedReference]bool)
	add := func(ref QualifiedReference) {
		if ref.Schema == "" || ref.Name == "" || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'':
			end := skipQuoted(text, i, '\'')
			if strings.HasPrefix(strings.ToLower(text[end:]), "::regclass") && end-i >= 2 {
				lit := strings.ReplaceAll(text[i+1:end-1], "''", "'")
				if schema, next, ok := readIdentifier(lit, 0); ok && next < len(lit) && lit[next] == '.' {
					if name, last, ok := readIdentifier(lit, next+1); ok && last == len(lit) {
						add(QualifiedReference{Schema: schema, Name: name})
					}
				}
			}
			i = end
			continue
		case c == '-' || c == '/':
			if j := skipComment(text, i); j > i {
				i = j
				continue
			}
		case c == '$':
			if j := skipDollar(text, i); j > i {
				i = j
				continue
			}
		case c == '"' || isTagStart(c):
			if i > 0 && (isTagChar(text[i-1]) || text[i-1] == '.') {
				// middle of a longer token
				_, next, _ := readIdentifier(text, i)
				if next <= i {
					next = i + 1
				}
				i = next
				continue
			}
			first, next, ok := readIdentifier(text, i)
			if !ok {
				i++
				continue
			}
			if next < len(text) && text[next] == '.' {
				if second, after, ok := readIdentifier(text, next+1); ok {
					add(QualifiedReference{Schema: first, Name: second})
					i = after
					continue
				}
			}
			i = next
			continue
		}
		i++
	}
	return refs
}
