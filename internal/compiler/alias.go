package compiler

import (
	"strings"
	"unicode"
)

// deriveName returns the implicit column name of a leaf path: the last
// top-level segment that is a plain identifier, skipping trailing function
// invocations and stripping an indexer.
//
//	id                                    -> id
//	name.given.first()                    -> given
//	telecom.where(system = 'phone').value -> value
//	$.name[*].family                      -> family
//	name[0]                               -> name
//
// It returns false when no such segment exists or a trailing segment is
// something other than an identifier or invocation (operators, literals).
func deriveName(path string) (string, bool) {
	segments := splitTopLevel(path)
	for i := len(segments) - 1; i >= 0; i-- {
		seg := stripIndexer(strings.TrimSpace(segments[i]))
		switch {
		case strings.HasSuffix(seg, ")"):
			continue
		case isIdentifier(seg):
			return seg, true
		case len(seg) > 2 && seg[0] == '`' && seg[len(seg)-1] == '`':
			return seg[1 : len(seg)-1], true
		default:
			return "", false
		}
	}
	return "", false
}

// splitTopLevel splits on '.' outside brackets, parentheses and quotes.
func splitTopLevel(path string) []string {
	var segments []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range path {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == '.' && depth == 0:
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	return append(segments, path[start:])
}

func stripIndexer(seg string) string {
	for strings.HasSuffix(seg, "]") {
		open := strings.LastIndexByte(seg, '[')
		if open <= 0 {
			return seg
		}
		seg = seg[:open]
	}
	return seg
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
