package pagetemplate

import (
	"regexp"
	"strings"
	"sync"
)

// Factory builds a node from the submatches of a glossary pattern.
type Factory func(match []string) Node

// Predicate decides whether command modifies or closes the open block,
// applying the change to open when it does. An error is structural.
type Predicate func(open Stackable, command string) (bool, error)

type glossaryEntry struct {
	rx      *regexp.Regexp
	factory Factory
}

// Glossary maps directive text to nodes. Patterns are tried in the order
// they were defined and the first match wins. A Glossary may be extended
// while templates compiled from it are being rendered.
type Glossary struct {
	mu        sync.RWMutex
	directive *regexp.Regexp
	entries   []glossaryEntry
	fallback  func(command string) Node
	modifiers map[string]Predicate
}

// NewGlossary returns an empty glossary for directives matched by
// directive. The first non-empty capture group of directive is the command.
func NewGlossary(directive *regexp.Regexp) *Glossary {
	return &Glossary{
		directive: directive,
		modifiers: map[string]Predicate{},
	}
}

// Directive returns the pattern that finds directives in template text.
func (g *Glossary) Directive() *regexp.Regexp {
	return g.directive
}

// Define registers a pattern after every existing one.
func (g *Glossary) Define(rx *regexp.Regexp, f Factory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, glossaryEntry{rx, f})
}

// SetDefault sets the factory used for commands no pattern matches. The
// initial default builds an UnknownNode.
func (g *Glossary) SetDefault(f func(command string) Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallback = f
}

// Modifier registers the predicate for tag.
func (g *Glossary) Modifier(tag string, p Predicate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modifiers[tag] = p
}

// Lookup builds the node for command.
func (g *Glossary) Lookup(command string) Node {
	g.mu.RLock()
	entries, fallback := g.entries, g.fallback
	g.mu.RUnlock()

	for _, e := range entries {
		if m := e.rx.FindStringSubmatch(command); m != nil {
			return e.factory(m)
		}
	}
	if fallback != nil {
		return fallback(command)
	}
	return NewUnknown(command)
}

// Modifies runs the predicate registered for tag. Unknown tags never match.
func (g *Glossary) Modifies(tag string, open Stackable, command string) (bool, error) {
	if tag == "" {
		return false, nil
	}
	g.mu.RLock()
	p := g.modifiers[tag]
	g.mu.RUnlock()
	if p == nil {
		return false, nil
	}
	return p(open, command)
}

// Clone returns an independent copy that can be extended separately.
func (g *Glossary) Clone() *Glossary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := &Glossary{
		directive: g.directive,
		entries:   append([]glossaryEntry(nil), g.entries...),
		fallback:  g.fallback,
		modifiers: make(map[string]Predicate, len(g.modifiers)),
	}
	for k, v := range g.modifiers {
		c.modifiers[k] = v
	}
	return c
}

// Interfaces the standard predicates drive.
type (
	elser   interface{ Else() error }
	elsifer interface{ Elsif(cond string) error }
	whener  interface{ When(literal string) error }
)

// applyElse switches open to its else block, if it has one.
func applyElse(open Stackable) (bool, error) {
	e, ok := open.(elser)
	if !ok {
		return false, nil
	}
	return true, e.Else()
}

func applyElsif(open Stackable, cond string) (bool, error) {
	e, ok := open.(elsifer)
	if !ok {
		return false, nil
	}
	return true, e.Elsif(cond)
}

func applyWhen(open Stackable, literal string) (bool, error) {
	e, ok := open.(whener)
	if !ok {
		return false, nil
	}
	return true, e.When(literal)
}

// unquote strips one pair of matching double or single quotes.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ********************
// * Default glossary *
// ********************

var (
	defaultDirective = regexp.MustCompile(`(?s)\[%(.+?)%\]`)

	rxVar     = regexp.MustCompile(`(?i)^var (\w+(?:\.\w+)*)(?:\s*:(\w+))?$`)
	rxComment = regexp.MustCompile(`^--(.*)$`)
	rxDefine  = regexp.MustCompile(`(?i)^define (\w+)\s+(.+)$`)
	rxFilter  = regexp.MustCompile(`(?i)^filter\s*:(\w+)$`)
	rxIf      = regexp.MustCompile(`(?i)^(if|unless) (\w+(?:\.\w+)*)$`)
	rxLoop    = regexp.MustCompile(`(?i)^(in|loop) (\w+(?:\.\w+)*)(?:\s*:((?:\s*\w+)+))?$`)
	rxCase    = regexp.MustCompile(`(?i)^case (\w+(?:\.\w+)*)$`)
	rxInclude = regexp.MustCompile(`(?i)^include ("[^"]+"|'[^']+'|[\w./-]+)$`)

	rxElse     = regexp.MustCompile(`(?i)^(?:else|no|empty)$`)
	rxElsif    = regexp.MustCompile(`(?i)^(?:elsif|elseif|else if) (\w+(?:\.\w+)*)$`)
	rxEnd      = regexp.MustCompile(`(?i)^end\s*(\w*)$`)
	rxWhen     = regexp.MustCompile(`(?i)^when\s+(.+)$`)
	rxCaseElse = regexp.MustCompile(`(?i)^else$`)
)

// DefaultGlossary returns a new glossary for the [% ... %] grammar:
//
//	[% var name[ :processor] %]      [% -- comment %]
//	[% define name value %]          [% filter :processor %] ... [% end %]
//	[% if name %] ... [% elsif name %] ... [% else %] ... [% end %]
//	[% unless name %] ... [% else %] ... [% end %]
//	[% in name[: a b] %] ... [% no %] ... [% end %]
//	[% case name %][% when literal %] ... [% else %] ... [% end %]
//	[% include name %]
func DefaultGlossary() *Glossary {
	g := NewGlossary(defaultDirective)

	g.Define(rxVar, func(m []string) Node {
		return NewValue(m[1], m[2])
	})
	g.Define(rxComment, func(m []string) Node {
		return NewComment(strings.TrimSpace(m[1]))
	})
	g.Define(rxDefine, func(m []string) Node {
		return NewDefine(m[1], m[2])
	})
	g.Define(rxFilter, func(m []string) Node {
		return NewFilter(m[1])
	})
	g.Define(rxIf, func(m []string) Node {
		calledAs := strings.ToLower(m[1])
		return NewIf(calledAs, m[2], calledAs == "unless")
	})
	g.Define(rxLoop, func(m []string) Node {
		return NewLoop(strings.ToLower(m[1]), m[2], strings.Fields(m[3]))
	})
	g.Define(rxCase, func(m []string) Node {
		return NewCase("case", m[1])
	})
	g.Define(rxInclude, func(m []string) Node {
		return NewInclude(unquote(m[1]))
	})

	g.Modifier(TagElse, func(open Stackable, command string) (bool, error) {
		if !rxElse.MatchString(command) {
			return false, nil
		}
		return applyElse(open)
	})
	g.Modifier(TagElsif, func(open Stackable, command string) (bool, error) {
		if m := rxElsif.FindStringSubmatch(command); m != nil {
			return applyElsif(open, m[1])
		}
		if rxElse.MatchString(command) {
			return applyElse(open)
		}
		return false, nil
	})
	g.Modifier(TagEnd, func(open Stackable, command string) (bool, error) {
		m := rxEnd.FindStringSubmatch(command)
		if m == nil {
			return false, nil
		}
		return m[1] == "" || strings.EqualFold(m[1], open.CalledAs()), nil
	})
	g.Modifier(TagWhen, func(open Stackable, command string) (bool, error) {
		if m := rxWhen.FindStringSubmatch(command); m != nil {
			return applyWhen(open, unquote(m[1]))
		}
		if rxCaseElse.MatchString(command) {
			return applyElse(open)
		}
		return false, nil
	})
	return g
}
