package pagetemplate

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type templatePassCase struct {
	template string
	context  any
	expect   string
}

type templateFailCase struct {
	template string
	context  any
}

type d map[string]any

type s struct{}

func (s *s) String() string {
	return "foo"
}

type person struct {
	First, Last string
}

func (p person) Name() string {
	return p.First + " " + p.Last
}

func (p *person) Fail() (string, error) {
	return "", errors.New("boom")
}

type item struct {
	Name string
}

var testFiles = map[string]string{
	"header": "H[% var x %]",
	"loop":   "a[% include loop %]",
	"nested": "<[% include header %]>",
}

func newTestParser(cfg Config) *Parser {
	if cfg.Source == nil {
		cfg.Source = NewMapSource(testFiles)
	}
	return New(cfg)
}

func TestTemplateNoContext(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`this is just a literal`, nil, `this is just a literal`},
		{`[% -- a comment %]test`, nil, `test`},
		{`[%-- a comment %]test[% --another %]`, nil, `test`},
		{`[% define foo bar %][% var foo %]`, nil, `bar`},
		{`[% define foo bar   baz %][% var foo %]`, nil, `bar baz`},
		{`[%var missing%]`, nil, ``},
		{"[%\n\tvar\n\tmissing\n%]", nil, ``},
	})
}

func TestTemplatePassValues(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% var foo %]`, d{"foo": "bar"}, `bar`},
		{`[%var foo%]`, d{"foo": "bar"}, `bar`},
		{`[% VAR foo %]`, d{"foo": "bar"}, `bar`},
		{`[% var foo %]`, d{"foo": d{"bar": "baz"}}, `map[bar:baz]`},
		{`[% var foo %]`, d{"foo": 0xBEEF}, `48879`},
		{`[% var foo %]`, d{"foo": []byte("bar")}, `bar`},
		{`[% var foo %]`, d{"foo": []int{1, 2, 3}}, `[1 2 3]`},
		{`[% var foo.bar %]`, d{"foo": d{"bar": "baz"}}, `baz`},
		{`[% var foo.1 %]`, d{"foo": []string{"a", "b"}}, `b`},
		{`[% var foo.2 %]`, d{"foo": []string{"a", "b"}}, ``},
		{`[% var foo.bar.baz %]`, d{"foo": d{"bar": nil}}, ``},
	})
}

func TestTemplatePassProcessors(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% var foo :escapeHTML %]`, d{"foo": `<a & "b">`}, `&lt;a &amp; &quot;b&quot;&gt;`},
		{`[% var foo:reverse %]`, d{"foo": "abc"}, `cba`},
		{`[% var foo :escapeURI %]`, d{"foo": "a b&c"}, `a+b%26c`},
		{`[% var foo :simple %]`, d{"foo": "a\n<b>"}, "a<br />\n&lt;b&gt;"},
		{`[% var foo :unescaped %]`, d{"foo": "<b>"}, `<b>`},
		{`[% var foo :nope %]`, d{"foo": "x"}, `[ Value: unknown processor nope ]`},
	})
	executeTemplatePasses(t, Config{DefaultProcessor: "escapeHTML"}, []templatePassCase{
		{`[% var foo %]`, d{"foo": "<b>"}, `&lt;b&gt;`},
		{`[% var foo :unescaped %]`, d{"foo": "<b>"}, `<b>`},
	})
}

func TestTemplatePassStringers(t *testing.T) {
	type snes struct{ Bar *s }
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% var foo %]`, d{"foo": &s{}}, `foo`},
		{`[% var foo %]`, d{"foo": s{}}, `{}`},
		{`[% var foo.bar %]`, d{"foo": &snes{&s{}}}, `foo`},
		{`[% var foo.Bar %]`, d{"foo": snes{&s{}}}, `foo`},
	})
}

func TestTemplatePassMethods(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% var p.name %]`, d{"p": person{"Ada", "Lovelace"}}, `Ada Lovelace`},
		{`[% var p.Name %]`, d{"p": &person{"Ada", "Lovelace"}}, `Ada Lovelace`},
		{`[% var p.first %]`, d{"p": &person{"Ada", "Lovelace"}}, `Ada`},
		{`[% var name %]`, person{"Ada", "Lovelace"}, `Ada Lovelace`},
		{`[% var p.fail %]`, d{"p": &person{}}, `[ Error: resolving "p.fail": boom ]`},
	})
}

func TestTemplatePassIfs(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% if foo %]yes[% end %]`, d{"foo": true}, `yes`},
		{`[% if foo %]yes[% end %]`, d{"foo": false}, ``},
		{`[% if foo %]yes[% else %]no[% end if %]`, d{"foo": ""}, `no`},
		{`[% if foo %]yes[% else %]no[% end if %]`, d{"foo": "x"}, `yes`},
		{`[% if foo %]yes[% else %]no[% end if %]`, d{"foo": 0}, `yes`},
		{`[% if foo %]yes[% else %]no[% end if %]`, nil, `no`},
		{`[% IF foo %]yes[% ELSE %]no[% END IF %]`, d{"foo": 1}, `yes`},
		{`[% if items %]yes[% else %]no[% end %]`, d{"items": []int{}}, `no`},
		{`[% if items %]yes[% else %]no[% end %]`, d{"items": []int{1}}, `yes`},
		{`[% if foo.bar %]yes[% end %]`, d{"foo": d{"bar": true}}, `yes`},
		{`[% unless foo %]yes[% else %]no[% end %]`, d{"foo": false}, `yes`},
		{`[% unless foo %]yes[% else %]no[% end unless %]`, d{"foo": true}, `no`},
		{`[% if a %]A[% elsif b %]B[% else %]C[% end %]`, d{"b": 1}, `B`},
		{`[% if a %]A[% elsif b %]B[% else %]C[% end %]`, d{}, `C`},
		{`[% if a %]A[% elsif b %]B[% else %]C[% end %]`, d{"a": 1, "b": 1}, `A`},
		{`[% if a %]A[% elseif b %]B[% end %]`, d{"b": 1}, `B`},
		{`[% if a %]A[% else if b %]B[% end %]`, d{"b": 1}, `B`},
		{`[% if a %][% if b %]AB[% else %]A[% end %][% end %]`, d{"a": 1}, `A`},
	})
	executeTemplatePasses(t, Config{EmptyIsTrue: true}, []templatePassCase{
		{`[% if foo %]yes[% else %]no[% end %]`, d{"foo": ""}, `yes`},
		{`[% if foo %]yes[% else %]no[% end %]`, d{"foo": false}, `no`},
		{`[% if foo %]yes[% else %]no[% end %]`, d{}, `no`},
	})
}

func TestTemplatePassLoops(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% in items %][% var __ITEM__ %],[% end %]`, d{"items": []int{1, 2, 3}}, `1,2,3,`},
		{`[% in items: x %][% var x %][% end in %]`, d{"items": []string{"a", "b"}}, `ab`},
		{
			`[% loop items: k v %][% var k %]=[% var v %];[% end loop %]`,
			d{"items": d{"b": 2, "a": 1}},
			`a=1;b=2;`,
		},
		{
			`[% in items %][% var __INDEX__ %][% if __FIRST__ %]F[% end %][% if __LAST__ %]L[% end %][% if __ODD__ %]o[% end %] [% end %]`,
			d{"items": []int{10, 20, 30}},
			`0Fo 1 2Lo `,
		},
		{`[% in items %]x[% no %]empty[% end %]`, d{"items": []int{}}, `empty`},
		{`[% in items %]x[% empty %]empty[% end %]`, nil, `empty`},
		{`[% in items %]x[% else %]empty[% end %]`, d{"items": false}, `empty`},
		{`[% in items %][% var name %][% end %]`, d{"items": []any{d{"name": "a"}, d{"name": "b"}}}, `ab`},
		{`[% in items %][% var name %][% end %]`, d{"items": []item{{"a"}, {"b"}}}, `ab`},
		{`[% in items %][% var outer %][% end %]`, d{"items": []int{1, 2}, "outer": "o"}, `oo`},
		{`[% in items %][% var __ITEM__ %][% end %]`, d{"items": "single"}, `single`},
		{
			`[% loop items: a b %][% var a %][% var b %] [% end %]`,
			d{"items": [][]any{{1, "x"}, {2, "y"}}},
			`1x 2y `,
		},
		{
			`[% loop items: a b %][% var a %][% end %]`,
			d{"items": []int{1}},
			`[ Error: resolving "items": int is not an ordered value ]`,
		},
		{
			`[% in rows: row %][% in row: cell %][% var cell %][% end %];[% end %]`,
			d{"rows": [][]int{{1, 2}, {3}}},
			`12;3;`,
		},
		{`[% in items %][% define v x %][% end %][% var v %]`, d{"items": []int{1}}, ``},
	})
}

func TestTemplatePassCases(t *testing.T) {
	const tmpl = `[% case x %][% when a %]A[% when b %]B[% else %]other[% end %]`
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{tmpl, d{"x": "a"}, `A`},
		{tmpl, d{"x": "b"}, `B`},
		{tmpl, d{"x": "c"}, `other`},
		{tmpl, nil, `other`},
		{`[% case x %][% when "a b" %]AB[% end case %]`, d{"x": "a b"}, `AB`},
		{`[% case n %][% when 2 %]two[% when 3 %]three[% end %]`, d{"n": 2}, `two`},
		{`[% case x %]default[% when a %]A[% end %]`, d{"x": "z"}, `default`},
	})
}

func TestTemplatePassFilters(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% filter :reverse %]ab[% var x %][% end %]`, d{"x": "cd"}, `dcba`},
		{`[% filter :escapeHTML %]<b>[% end filter %]`, nil, `&lt;b&gt;`},
		{`[% filter :nope %]x[% end %]`, nil, `[ Filter: unknown processor nope ]`},
	})
}

func TestTemplatePassIncludes(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% include header %]!`, d{"x": 1}, `H1!`},
		{`[% include "header" %]`, d{"x": 1}, `H1`},
		{`[% include nested %]`, d{"x": 1}, `<H1>`},
		{`[% include which %]`, d{"which": "header", "x": 2}, `H2`},
		{`[% include missing %]`, nil, `[ Template 'missing' not found ]`},
		{`[% include which %]`, d{"which": "nope"}, `[ Template 'nope' not found ]`},
		{
			`[% include loop %]`,
			nil,
			strings.Repeat("a", maxIncludeDepth) + `[ Error: resolving "loop": include depth exceeds 32 ]`,
		},
	})
}

func TestTemplatePassUnknown(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% frobnicate %]`, nil, `[ Unknown Command: frobnicate ]`},
		{`a[% end %]b`, nil, `a[ Unknown Command: end ]b`},
		{`[% var %]`, nil, `[ Unknown Command: var ]`},
	})
}

func TestTemplateScopes(t *testing.T) {
	executeTemplatePasses(t, Config{}, []templatePassCase{
		{`[% var a.b %][% define a z %][% var a %]`, d{"a": d{"b": "c"}}, `cz`},
		{`[% define a z %][% var a.b %]`, d{"a": d{"b": "c"}}, ``},
	})
}

func TestTemplateGlobals(t *testing.T) {
	p := newTestParser(Config{Namespace: map[string]any{"site": "S"}})
	p.Set("year", 2024)

	doc, err := p.Parse(`[% var site %] [% var year %] [% var page %]`)
	require.NoError(t, err)
	out, err := doc.Render(d{"page": "P", "site": "shadowed"})
	require.NoError(t, err)
	assert.Equal(t, "shadowed 2024 P", out)

	out, err = doc.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "S 2024 ", out)

	v, err := p.Get("year")
	require.NoError(t, err)
	assert.Equal(t, 2024, v)
}

func TestTemplateFails(t *testing.T) {
	executeTemplateFails(t, []templateFailCase{
		{`[% var missing %]`, nil},
		{`[% var foo.bar %]`, d{"foo": d{}}},
		{`[% var p.fail %]`, d{"p": &person{}}},
		{`[% var foo :nope %]`, d{"foo": "x"}},
		{`[% filter :nope %][% end %]`, nil},
		{`[% frobnicate %]`, nil},
		{`[% in p.fail %][% end %]`, d{"p": &person{}}},
		{`[% case p.fail %][% else %]x[% end %]`, d{"p": &person{}}},
		{`[% loop items: a b %][% end %]`, d{"items": []int{1}}},
	})
}

func TestTemplateStrictFallbacks(t *testing.T) {
	executeTemplatePasses(t, Config{Strict: true}, []templatePassCase{
		{`[% in items %]x[% else %]empty[% end %]`, d{}, `empty`},
		{`[% in items %]x[% no %]empty[% end %]`, nil, `empty`},
		{`[% loop a.b.c: x %]x[% else %]empty[% end %]`, d{"a": d{}}, `empty`},
		{`[% case x %][% when a %]A[% else %]default[% end %]`, nil, `default`},
		{`[% if missing %]yes[% else %]no[% end %]`, nil, `no`},
		{`<[% include missing %]>`, nil, `<[ Template 'missing' not found ]>`},
	})
}

func TestTemplateStrictErrors(t *testing.T) {
	p := newTestParser(Config{Strict: true})

	render := func(tmpl string, data any) error {
		doc, err := p.Parse(tmpl)
		require.NoError(t, err)
		_, err = doc.Render(data)
		return err
	}

	var rerr *ResolutionError
	err := render(`[% var missing %]`, nil)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "missing", rerr.Path)

	err = render(`[% include missing %][% in items %][% end %]`, nil)
	require.NoError(t, err)

	err = render(`[% in p.fail %][% end %]`, d{"p": &person{}})
	require.ErrorAs(t, err, &rerr)
	assert.EqualError(t, rerr.Err, "boom")

	err = render(`[% var p.fail %]`, d{"p": &person{}})
	require.ErrorAs(t, err, &rerr)
	assert.EqualError(t, rerr.Err, "boom")

	err = render(`[% frobnicate %]`, nil)
	require.ErrorIs(t, err, errUnknownCommand)
}

func executeTemplateFails(t *testing.T, cases []templateFailCase) {
	t.Helper()
	p := newTestParser(Config{Strict: true})
	for id, c := range cases {
		doc, err := p.Parse(c.template)
		if !assert.NoError(t, err, "%d: %s", id, c.template) {
			continue
		}
		assert.Error(t, doc.RenderTo(io.Discard, c.context), "%d: did not fail: %s", id, c.template)
	}
}

func executeTemplatePasses(t *testing.T, cfg Config, cases []templatePassCase) {
	t.Helper()
	p := newTestParser(cfg)
	for id, c := range cases {
		doc, err := p.Parse(c.template)
		if !assert.NoError(t, err, "%d: %s", id, c.template) {
			continue
		}
		got, err := doc.Render(c.context)
		if !assert.NoError(t, err, "%d: %s", id, c.template) {
			continue
		}
		assert.Equal(t, c.expect, got, "%d: %s", id, c.template)
	}
}
