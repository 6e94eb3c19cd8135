package pagetemplate

import (
	"regexp"
	"strings"
)

var (
	htmlDirective = regexp.MustCompile(`(?is)<!--\s*(/?TMPL_.+?)\s*-->|<\s*(/?TMPL_[^>]*?)\s*/?>`)

	rxTmplVar     = regexp.MustCompile(`(?i)^TMPL_VAR (?:NAME\s*=\s*)?"?(\w+(?:\.\w+)*)"?(?: (?:PROCESSOR|ESCAPE)\s*=\s*"?(\w+)"?)?$`)
	rxTmplIf      = regexp.MustCompile(`(?i)^(TMPL_IF|TMPL_UNLESS) (?:NAME\s*=\s*)?"?(\w+(?:\.\w+)*)"?$`)
	rxTmplLoop    = regexp.MustCompile(`(?i)^TMPL_LOOP (?:NAME\s*=\s*)?"?(\w+(?:\.\w+)*)"?(?: ITERATORS?\s*=\s*"?((?:\s*\w+)+)"?)?$`)
	rxTmplCase    = regexp.MustCompile(`(?i)^TMPL_CASE (?:NAME\s*=\s*)?"?(\w+(?:\.\w+)*)"?$`)
	rxTmplInclude = regexp.MustCompile(`(?i)^TMPL_INCLUDE (?:(?:NAME|FILE)\s*=\s*)?"?([\w./-]+)"?$`)

	rxTmplElse = regexp.MustCompile(`(?i)^TMPL_ELSE$`)
	rxTmplEnd  = regexp.MustCompile(`(?i)^/\s*(\w+)$`)
	rxTmplWhen = regexp.MustCompile(`(?i)^TMPL_WHEN (?:(?:NAME|VALUE)\s*=\s*)?(.+)$`)
)

// escapes maps HTML::Template ESCAPE values to processor names.
var escapes = map[string]string{
	"html": "escapeHTML",
	"1":    "escapeHTML",
	"url":  "escapeURI",
	"0":    "unescaped",
	"none": "unescaped",
}

func htmlProcessor(name string) string {
	if p, ok := escapes[strings.ToLower(name)]; ok {
		return p
	}
	return name
}

// HTMLGlossary returns a new glossary for HTML::Template style markup:
//
//	<TMPL_VAR NAME="x" [ESCAPE=html]>     <TMPL_INCLUDE NAME="file">
//	<TMPL_IF x> ... <TMPL_ELSE> ... </TMPL_IF>
//	<TMPL_UNLESS x> ... </TMPL_UNLESS>
//	<TMPL_LOOP NAME="x" [ITERATORS="a b"]> ... </TMPL_LOOP>
//	<TMPL_CASE x><TMPL_WHEN a> ... <TMPL_ELSE> ... </TMPL_CASE>
//
// Every tag may also be written as <!-- TMPL_... -->. Tags no pattern
// matches are written back out as HTML comments.
func HTMLGlossary() *Glossary {
	g := NewGlossary(htmlDirective)

	g.Define(rxTmplVar, func(m []string) Node {
		return NewValue(m[1], htmlProcessor(m[2]))
	})
	g.Define(rxTmplIf, func(m []string) Node {
		calledAs := strings.ToLower(m[1])
		return NewIf(calledAs, m[2], calledAs == "tmpl_unless")
	})
	g.Define(rxTmplLoop, func(m []string) Node {
		return NewLoop("tmpl_loop", m[1], strings.Fields(m[2]))
	})
	g.Define(rxTmplCase, func(m []string) Node {
		return NewCase("tmpl_case", m[1])
	})
	g.Define(rxTmplInclude, func(m []string) Node {
		return NewInclude(m[1])
	})
	g.SetDefault(func(command string) Node {
		return TextNode("<!--" + command + "-->")
	})

	elseOnly := func(open Stackable, command string) (bool, error) {
		if !rxTmplElse.MatchString(command) {
			return false, nil
		}
		return applyElse(open)
	}
	g.Modifier(TagElse, elseOnly)
	g.Modifier(TagElsif, elseOnly)
	g.Modifier(TagEnd, func(open Stackable, command string) (bool, error) {
		m := rxTmplEnd.FindStringSubmatch(command)
		return m != nil && strings.EqualFold(m[1], open.CalledAs()), nil
	})
	g.Modifier(TagWhen, func(open Stackable, command string) (bool, error) {
		if m := rxTmplWhen.FindStringSubmatch(command); m != nil {
			return applyWhen(open, unquote(m[1]))
		}
		return elseOnly(open, command)
	})
	return g
}
