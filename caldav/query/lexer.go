package query

import (
	"strings"
)

// lexer scans a single clause of query text. Offsets are reported relative
// to the full query so that errors point at the original input.
type lexer struct {
	src    string
	pos    int
	offset int
}

func newLexer(src string, offset int) *lexer {
	return &lexer{src: src, offset: offset}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isNameByte(c byte, first bool) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	case first:
		return false
	default:
		return '0' <= c && c <= '9' || c == '-'
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

// position returns the offset of the next unread byte in the full query.
func (l *lexer) position() int {
	return l.offset + l.pos
}

func (l *lexer) done() bool {
	l.skipSpace()
	return l.pos >= len(l.src)
}

func (l *lexer) accept(s string) bool {
	l.skipSpace()
	if strings.HasPrefix(l.src[l.pos:], s) {
		l.pos += len(s)
		return true
	}
	return false
}

// name scans a component, property or parameter name. Names are returned
// upper-cased.
func (l *lexer) name() (string, bool) {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.src) && isNameByte(l.src[l.pos], l.pos == start) {
		l.pos++
	}
	if l.pos == start {
		return "", false
	}
	return strings.ToUpper(l.src[start:l.pos]), true
}

// until scans up to the stop byte, which is left unread. If stop doesn't
// occur, the rest of the input is returned.
func (l *lexer) until(stop byte) string {
	start := l.pos
	if i := strings.IndexByte(l.src[l.pos:], stop); i >= 0 {
		l.pos += i
	} else {
		l.pos = len(l.src)
	}
	return strings.TrimSpace(l.src[start:l.pos])
}

func (l *lexer) rest() string {
	s := strings.TrimSpace(l.src[l.pos:])
	l.pos = len(l.src)
	return s
}

type segment struct {
	text   string
	offset int
}

// opensRange reports whether a '[' following prefix starts a time range.
// Ranges follow a bare name or a == / != operator. Anywhere else '[' is
// plain value text.
func opensRange(prefix string) bool {
	prefix = strings.TrimSpace(prefix)
	if strings.HasSuffix(prefix, "==") || strings.HasSuffix(prefix, "!=") {
		return true
	}
	l := newLexer(prefix, 0)
	_, ok := l.name()
	return ok && l.done()
}

// splitTopLevel splits s on sep, ignoring separators enclosed in time range
// brackets. If a bracket is left open, unclosed is its offset and the last
// segment holds it; otherwise unclosed is -1.
func splitTopLevel(s string, offset int, sep byte) (segs []segment, unclosed int) {
	open, start := -1, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case open >= 0:
			if c == ']' {
				open = -1
			}
		case c == '[':
			if opensRange(s[start:i]) {
				open = i
			}
		case c == sep:
			segs = append(segs, segment{s[start:i], offset + start})
			start = i + 1
		}
	}
	segs = append(segs, segment{s[start:], offset + start})
	if open >= 0 {
		return segs, offset + open
	}
	return segs, -1
}

// cutTopLevel splits s around the first sep outside of time range brackets.
// unclosed is set as in splitTopLevel when no sep is found.
func cutTopLevel(s string, sep byte) (before, after segment, found bool, unclosed int) {
	segs, unclosed := splitTopLevel(s, 0, sep)
	if len(segs) == 1 {
		return segs[0], segment{}, false, unclosed
	}
	rest := segs[1].offset
	return segs[0], segment{s[rest:], rest}, true, -1
}
