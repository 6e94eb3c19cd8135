/*
Package pagetemplate provides a directive based templating system with a
pluggable grammar.

PageTemplate keeps presentation out of program logic. A template is plain text
with directives embedded in it. Directives are compiled once into a tree of
nodes, and the tree is rendered as many times as needed against a hierarchy of
variable scopes.

Example

One could have the template defined in "page.txt"

	//file: page.txt
	<h1>[% var title :escapeHTML %]</h1>
	[% if items %]
	<ul>
	[% in items: item %]
		<li class="[% if __ODD__ %]odd[% else %]even[% end %]">[% var item.name %]</li>
	[% end in %]
	</ul>
	[% else %]
	<p>Nothing to see.</p>
	[% end if %]
	[% include footer.txt %]

and render it by

	p := pagetemplate.New(pagetemplate.Config{
		Source: pagetemplate.NewFileSource("templates"),
	})
	out, err := p.Render("page.txt", map[string]any{
		"title": "Fish & Chips",
		"items": []Item{{Name: "cod"}, {Name: "haddock"}},
	})
	if err != nil {
		//handle err
	}

Variables

A variable is a dotted path such as item.name. The first segment is looked up
in the current scope, then in the scope's backing object, then in the
enclosing scopes. Later segments walk into the value found so far: map keys,
list indexes, exported struct fields and methods taking no arguments. Field
and method names also match regardless of case, so item.name finds the field
Name. Backing objects may be Go maps, structs, pointers, values implementing
Lookuper, or cty values decoded from HCL or JSON data files.

A path that cannot be resolved renders as nothing. A method that fails
renders as an inline "[ Error: ... ]" message. With Config.Strict set both are
returned from Render as a *ResolutionError instead.

Directives

The default glossary understands the following directives. Keywords are case
insensitive.

	[% var name %]                 prints name
	[% var name :escapeHTML %]     prints name through a processor
	[% -- comment %]               prints nothing
	[% define name value %]        sets name in the current scope
	[% filter :simple %]...[% end %]
	[% if name %]...[% elsif other %]...[% else %]...[% end if %]
	[% unless name %]...[% else %]...[% end unless %]
	[% in list %]...[% no %]...[% end in %]
	[% loop list: key value %]...[% end loop %]
	[% case name %][% when a %]...[% when "b c" %]...[% else %]...[% end case %]
	[% include name %]

Inside a loop the names __INDEX__, __FIRST__, __LAST__ and __ODD__ describe the
current iteration. A loop with no iterator names makes each element the backing
object of the iteration scope, and __ITEM__ refers to the element itself.

HTMLGlossary provides the same directives in HTML::Template form, like
<TMPL_VAR NAME="title"> and <TMPL_LOOP NAME="items">...</TMPL_LOOP>.

Glossaries can be extended with Define. A directive that no pattern matched at
compile time is looked up again when it is rendered, so patterns defined later
still apply. Directives that never match render as "[ Unknown Command: ... ]".

Modes

A Parser has two modes, Production and Development, which can be changed at
any time with SetMode. Production is the default: compiled templates are
cached by their source and reused until the source reports a change. In
Development mode, every template is loaded from its source and compiled on
each use, and nothing is cached.

The escapeURI processor escapes everything except letters, digits, '_', '.'
and '-', turning spaces into '+'.
*/
package pagetemplate
