package pagetemplate

import (
	"net/url"
	"sort"
	"strings"
)

// Processors is a named set of text transformations applied by value and
// filter directives.
type Processors interface {
	Has(name string) bool
	Apply(name, text string) (string, error)
}

// ProcessorMap is a Processors backed by plain functions.
type ProcessorMap map[string]func(string) string

func (m ProcessorMap) Has(name string) bool {
	_, ok := m[name]
	return ok
}

func (m ProcessorMap) Apply(name, text string) (string, error) {
	f, ok := m[name]
	if !ok {
		return "", errUnknownProcessor
	}
	return f(text), nil
}

// Names lists the registered processors in order.
func (m ProcessorMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`"`, "&quot;",
	`>`, "&gt;",
	`<`, "&lt;",
)

// EscapeHTML escapes the four characters significant in HTML text and
// attribute values.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var lineBreaker = strings.NewReplacer(
	"\r\n", "<br />\n",
	"\n", "<br />\n",
)

// Simple escapes s for HTML and turns each line ending, LF or CRLF, into a
// line break.
func Simple(s string) string {
	return lineBreaker.Replace(EscapeHTML(s))
}

// EscapeURI escapes s for use in a query string. Everything except letters,
// digits, '_', '.' and '-' is escaped, and spaces become '+'.
func EscapeURI(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "~", "%7E")
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func unescaped(s string) string { return s }

// DefaultProcessors returns a fresh map holding unescaped, process,
// reverse, escapeURI, escapeHTML and simple.
func DefaultProcessors() ProcessorMap {
	return ProcessorMap{
		"unescaped":  unescaped,
		"process":    unescaped,
		"reverse":    reverse,
		"escapeURI":  EscapeURI,
		"escapeHTML": EscapeHTML,
		"simple":     Simple,
	}
}
