package executor

import (
	"strings"
	"unicode"
)

// SplitStatements splits a script on top-level semicolons. Quoted strings,
// quoted identifiers, dollar-quoted bodies and comments are kept intact.
// Statements that contain nothing but whitespace and comments are dropped.
func SplitStatements(script string) []string {
	var (
		out     []string
		start   int
		hasCode bool
	)

	emit := func(end int) {
		if hasCode {
			out = append(out, strings.TrimSpace(script[start:end]))
		}
		start = end + 1
		hasCode = false
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
			} else {
				i += end + 3
			}
		case c == '\'' || c == '"' || c == '`':
			hasCode = true
			i = skipQuoted(script, i, c)
		case c == '$':
			hasCode = true
			if tag, ok := dollarTag(script, i); ok {
				end := strings.Index(script[i+len(tag):], tag)
				if end < 0 {
					i = len(script)
				} else {
					i += len(tag) + end + len(tag) - 1
				}
			}
		case c == ';':
			emit(i)
		case !unicode.IsSpace(rune(c)):
			hasCode = true
		}
	}
	if start < len(script) {
		emit(len(script))
	}
	return out
}

// skipQuoted returns the index of the closing quote; doubled quotes escape.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s)
}

// dollarTag recognizes $$ and $tag$ openers.
func dollarTag(s string, i int) (string, bool) {
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[i : j+1], true
		}
		if !(c == '_' || unicode.IsLetter(rune(c)) || (j > i+1 && unicode.IsDigit(rune(c)))) {
			return "", false
		}
	}
	return "", false
}

var rowKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"VALUES":    true,
	"SHOW":      true,
	"DESCRIBE":  true,
	"DESC":      true,
	"EXPLAIN":   true,
	"PRAGMA":    true,
	"TABLE":     true,
	"FROM":      true,
	"SUMMARIZE": true,
}

var dmlKeywords = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
}

// ReturnsRows reports whether a statement should be run as a query.
func ReturnsRows(stmt string) bool {
	words := keywords(stmt)
	if len(words) == 0 {
		return false
	}
	if rowKeywords[words[0]] {
		return true
	}
	if dmlKeywords[words[0]] {
		for _, w := range words[1:] {
			if w == "RETURNING" {
				return true
			}
		}
	}
	return false
}

// keywords returns the upper-cased bare words of stmt outside comments and quotes.
func keywords(stmt string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch {
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			flush()
			for i < len(stmt) && stmt[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			flush()
			end := strings.Index(stmt[i+2:], "*/")
			if end < 0 {
				return words
			}
			i += end + 3
		case c == '\'' || c == '"' || c == '`':
			flush()
			i = skipQuoted(stmt, i, c)
		case c == '_' || unicode.IsLetter(rune(c)):
			cur.WriteByte(c)
		default:
			flush()
		}
	}
	flush()
	return words
}
