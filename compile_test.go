package pagetemplate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var code = `
	literal
	[% -- a comment %]
	[% define title Hello %]
	[% if user.admin %]
		[% in user.roles: role %]
			[% var role :escapeHTML %][% if __LAST__ %].[% else %],[% end if %]
		[% no %]
			none
		[% end in %]
	[% elsif user %]
		[% var user.name %]
	[% else %]
		[% include login %]
	[% end if %]
	[% case user.kind %][% when staff %]S[% when "guest user" %]G[% else %]?[% end case %]
	[% filter :simple %]a
b[% end %]`

func BenchmarkParseSpeed(b *testing.B) {
	p := New(Config{Source: NewMapSource(nil)})
	for i := 0; i < b.N; i++ {
		p.Parse(code)
	}
}

func TestParseBasic(t *testing.T) {
	p := New(Config{Source: NewMapSource(nil)})
	doc, err := p.Parse(code)
	require.NoError(t, err)
	require.Len(t, doc.Block, 10)
	assert.IsType(t, &IfNode{}, doc.Block[5])
	assert.IsType(t, &CaseNode{}, doc.Block[7])
}

func TestParseDump(t *testing.T) {
	cases := []struct {
		name string
		tmpl string
		dump string
	}{
		{
			`text`,
			`a[% var x %]b`,
			"[document] [list\n\t[text \"a\"]\n\t[value x]\n\t[text \"b\"]\n]",
		},
		{
			`processor`,
			`[% var x.y :reverse %]`,
			"[document] [list\n\t[value x.y :reverse]\n]",
		},
		{
			`if`,
			`[% if x %]y[% else %]n[% end %]`,
			"[document] [list\n\t[if x] [list\n\t\t[text \"y\"]\n\t] | [else] [list\n\t\t[text \"n\"]\n\t]\n]",
		},
		{
			`loop`,
			`[% loop xs: k v %][% var k %][% end %]`,
			"[document] [list\n\t[loop xs: k v] [list\n\t\t[value k]\n\t]\n]",
		},
		{
			`case`,
			`[% case x %][% when a %]A[% end %]`,
			"[document] [list\n\t[case x] | [when \"a\"] [list\n\t\t[text \"A\"]\n\t] | [else] [list\n\t]\n]",
		},
		{
			`misc`,
			`[% define a b %][% include c %][% -- d %][% e %]`,
			"[document] [list\n\t[define a \"b\"]\n\t[include c]\n\t[comment \"d\"]\n\t[unknown \"e\"]\n]",
		},
	}

	p := New(Config{Source: NewMapSource(nil)})
	for _, c := range cases {
		doc, err := p.Parse(c.tmpl)
		if !assert.NoError(t, err, c.name) {
			continue
		}
		if diff := cmp.Diff(c.dump, doc.String()); diff != "" {
			t.Errorf("%s: dump mismatch (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestParseExpectedFailures(t *testing.T) {
	cases := []struct {
		name      string
		tmpl      string
		line      int
		directive string
	}{
		{`unclosed if`, `[% if x %]`, 1, `if x`},
		{`unclosed in`, "a\n\n[% in items %]\n[% if x %][% end %]", 3, `in items`},
		{`unclosed filter`, `[% filter :reverse %]abc`, 1, `filter :reverse`},
		{`unclosed case`, "[% case x %]\n[% when a %]", 1, `case x`},
		{`wrong end`, `[% if x %][% end loop %]`, 1, `if x`},
		{`nested unclosed`, "[% if a %]\n[% if b %]\n[% end %]", 1, `if a`},
		{`two elses`, "[% if x %][% else %]\n[% else %][% end %]", 2, `else`},
		{`elsif after else`, `[% if x %][% else %][% elsif y %][% end %]`, 1, `elsif y`},
		{`elsif in unless`, `[% unless x %][% elsif y %][% end %]`, 1, `elsif y`},
		{`two loop elses`, `[% in x %][% no %][% else %][% end %]`, 1, `else`},
	}

	p := New(Config{Source: NewMapSource(nil)})
	for _, c := range cases {
		_, err := p.Parse(c.tmpl)
		var serr *StructuralError
		if !assert.True(t, errors.As(err, &serr), "%s: expected a structural error, got %v", c.name, err) {
			continue
		}
		assert.Equal(t, c.line, serr.Line, c.name)
		assert.Equal(t, c.directive, serr.Directive, c.name)
	}
}

func TestStructuralErrorMessage(t *testing.T) {
	_, err := New(Config{Source: NewMapSource(nil)}).Parse(`[% if x %]`)
	assert.EqualError(t, err, `line 1: unclosed if: "if x"`)
}
