package pagetemplate

import (
	"fmt"
	"regexp"
	"strings"
)

type tokenType int

const (
	tokenText      tokenType = iota // literal text between directives
	tokenDirective                  // normalised command text inside delimiters
	tokenEOF                        // sent when no data is left
)

func (t tokenType) String() string {
	switch t {
	case tokenText:
		return "text"
	case tokenDirective:
		return "directive"
	case tokenEOF:
		return "eof"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type token struct {
	typ  tokenType
	dat  string
	line int
}

func (t token) String() string {
	return fmt.Sprintf("%s@%d %q", t.typ, t.line, t.dat)
}

type lexer struct {
	data  string
	rx    *regexp.Regexp
	pos   int
	line  int
	match []int
	toks  []token
}

type lexerState func(l *lexer) lexerState

// lex splits data into text and directive tokens using the directive
// pattern rx. The first non-empty capture group of each match is the command.
func lex(rx *regexp.Regexp, data string) []token {
	l := &lexer{
		data: data,
		rx:   rx,
		line: 1,
	}
	for state := lexText; state != nil; {
		state = state(l)
	}
	return l.toks
}

func (l *lexer) emit(typ tokenType, dat string) {
	l.toks = append(l.toks, token{
		typ:  typ,
		dat:  dat,
		line: l.line,
	})
}

// advance moves pos to end, counting the lines consumed on the way.
func (l *lexer) advance(end int) {
	l.line += strings.Count(l.data[l.pos:end], "\n")
	l.pos = end
}

func lexText(l *lexer) lexerState {
	loc := l.rx.FindStringSubmatchIndex(l.data[l.pos:])
	//a zero width match would never make progress
	if loc == nil || loc[0] == loc[1] {
		if l.pos < len(l.data) {
			l.emit(tokenText, l.data[l.pos:])
			l.advance(len(l.data))
		}
		l.emit(tokenEOF, "")
		return nil
	}
	for i := range loc {
		if loc[i] >= 0 {
			loc[i] += l.pos
		}
	}
	if loc[0] > l.pos {
		l.emit(tokenText, l.data[l.pos:loc[0]])
		l.advance(loc[0])
	}
	l.match = loc
	return lexDirective
}

func lexDirective(l *lexer) lexerState {
	var command string
	for i := 2; i+1 < len(l.match); i += 2 {
		if start, end := l.match[i], l.match[i+1]; start >= 0 && end > start {
			command = l.data[start:end]
			break
		}
	}
	l.emit(tokenDirective, normalizeCommand(command))
	l.advance(l.match[1])
	l.match = nil
	return lexText
}

// normalizeCommand trims the command and collapses runs of whitespace.
func normalizeCommand(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
