package pagetemplate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// Node is an executable element of a compiled template. The set of node
// kinds is closed; grammars only decide which kinds to build.
type Node interface {
	fmt.Stringer
	Execute(io.Writer, *Context) error
	node()
}

// Stackable is a node that opens a block. Its tags name the glossary
// predicates that may modify or close it while it is open.
type Stackable interface {
	Node
	Add(Node)
	CalledAs() string
	Tags() (modifier, closer string)
}

// Predicate tag names understood by the default and HTML glossaries.
const (
	TagElse  = "else"
	TagElsif = "elsif"
	TagEnd   = "end"
	TagWhen  = "when"
)

// Names injected into each loop iteration.
const (
	IndexName = "__INDEX__"
	FirstName = "__FIRST__"
	LastName  = "__LAST__"
	OddName   = "__ODD__"
)

const maxIncludeDepth = 32

var (
	errUnknownCommand   = errors.New("unknown command")
	errUnknownProcessor = errors.New("unknown processor")
)

// recovered renders err inline, unless the parser is strict.
func recovered(w io.Writer, c *Context, err error) error {
	return inline(w, c, err, diagnostic(err))
}

func inline(w io.Writer, c *Context, err error, text string) error {
	if c.strict() {
		return err
	}
	c.rt.parser.log.Warn("render error recovered", "err", err)
	_, werr := io.WriteString(w, text)
	return werr
}

func indent(s string) string {
	return strings.Replace(s, "\n", "\n\t", -1)
}

// *********
// * Block *
// *********

// Block is an ordered sequence of nodes.
type Block []Node

func (Block) node() {}

func (b Block) Execute(w io.Writer, c *Context) (err error) {
	for _, n := range b {
		if n == nil {
			return fmt.Errorf("unexpected nil in block")
		}
		if err = n.Execute(w, c); err != nil {
			return
		}
	}
	return
}

func (b Block) String() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "[list")
	for _, n := range b {
		if n != nil {
			fmt.Fprintf(&buf, "\t%s\n", indent(n.String()))
		} else {
			fmt.Fprint(&buf, "\tnil\n")
		}
	}
	fmt.Fprint(&buf, "]")
	return buf.String()
}

// Add appends n, folding it into a preceding text node when both are text.
func (b *Block) Add(n Node) {
	if t, ok := n.(TextNode); ok && len(*b) > 0 {
		if prev, ok := (*b)[len(*b)-1].(TextNode); ok {
			(*b)[len(*b)-1] = prev + t
			return
		}
	}
	*b = append(*b, n)
}

// ************
// * Document *
// ************

// Document is the root of a compiled template.
type Document struct {
	Block
	parser *Parser
	sum    uint64 // fnv1a of the compiled text
}

func (d *Document) CalledAs() string                { return "" }
func (d *Document) Tags() (modifier, closer string) { return "", "" }

func (d *Document) String() string {
	return "[document] " + d.Block.String()
}

// Execute renders the document against c. A nil c renders against a fresh
// root context of the document's parser.
func (d *Document) Execute(w io.Writer, c *Context) error {
	if c == nil {
		c = d.parser.NewContext(nil)
	}
	return d.Block.Execute(w, c)
}

// RenderTo renders the document to w. data may be a *Context, or any value
// to use as the backing object of a fresh root context.
func (d *Document) RenderTo(w io.Writer, data any) error {
	c, ok := data.(*Context)
	if !ok || c == nil {
		c = d.parser.NewContext(data)
	}
	return d.Block.Execute(w, c)
}

// Render renders the document to a string. See RenderTo.
func (d *Document) Render(data any) (string, error) {
	var buf strings.Builder
	err := d.RenderTo(&buf, data)
	return buf.String(), err
}

// ************
// * Text     *
// ************

// TextNode is literal template text.
type TextNode string

func (TextNode) node() {}

func (t TextNode) Execute(w io.Writer, c *Context) (err error) {
	_, err = io.WriteString(w, string(t))
	return
}

func (t TextNode) String() string {
	return fmt.Sprintf("[text %q]", string(t))
}

// ***********
// * Comment *
// ***********

// CommentNode renders nothing.
type CommentNode struct {
	text string
}

func NewComment(text string) *CommentNode { return &CommentNode{text: text} }

func (*CommentNode) node() {}

func (n *CommentNode) Execute(w io.Writer, c *Context) error { return nil }

func (n *CommentNode) String() string {
	return fmt.Sprintf("[comment %q]", n.text)
}

// *********
// * Value *
// *********

// ValueNode prints a variable through a processor.
type ValueNode struct {
	path      string
	processor string
}

// NewValue prints path through processor, or through the parser's default
// processor when processor is empty.
func NewValue(path, processor string) *ValueNode {
	return &ValueNode{path: path, processor: processor}
}

func (*ValueNode) node() {}

func (n *ValueNode) Execute(w io.Writer, c *Context) (err error) {
	v, err := c.Get(n.path)
	if err != nil {
		return recovered(w, c, err)
	}
	out, err := c.process(n.processor, stringify(v))
	if err != nil {
		if errors.Is(err, errUnknownProcessor) {
			return inline(w, c, err, fmt.Sprintf("[ Value: unknown processor %s ]", n.processor))
		}
		return recovered(w, c, err)
	}
	_, err = io.WriteString(w, out)
	return
}

func (n *ValueNode) String() string {
	if n.processor != "" {
		return fmt.Sprintf("[value %s :%s]", n.path, n.processor)
	}
	return fmt.Sprintf("[value %s]", n.path)
}

// process applies the named processor, or the default one, to text.
func (c *Context) process(name, text string) (string, error) {
	p := c.rt.parser
	if name == "" {
		name = p.cfg.DefaultProcessor
	}
	if !p.cfg.Processors.Has(name) {
		return "", &ResolutionError{Path: ":" + name, Err: errUnknownProcessor}
	}
	out, err := p.cfg.Processors.Apply(name, text)
	if err != nil {
		return "", &ResolutionError{Path: ":" + name, Err: err}
	}
	return out, nil
}

// **********
// * Define *
// **********

// DefineNode sets a literal on the current scope.
type DefineNode struct {
	name  string
	value string
}

func NewDefine(name, value string) *DefineNode {
	return &DefineNode{name: name, value: value}
}

func (*DefineNode) node() {}

func (n *DefineNode) Execute(w io.Writer, c *Context) error {
	c.Set(n.name, n.value)
	return nil
}

func (n *DefineNode) String() string {
	return fmt.Sprintf("[define %s %q]", n.name, n.value)
}

// **********
// * Filter *
// **********

// FilterNode passes the whole rendered output of its block through a
// processor in one call.
type FilterNode struct {
	processor string
	body      Block
}

func NewFilter(processor string) *FilterNode {
	return &FilterNode{processor: processor}
}

func (*FilterNode) node() {}

func (n *FilterNode) Add(child Node)                  { n.body.Add(child) }
func (n *FilterNode) CalledAs() string                { return "filter" }
func (n *FilterNode) Tags() (modifier, closer string) { return "", TagEnd }

func (n *FilterNode) Execute(w io.Writer, c *Context) (err error) {
	var buf strings.Builder
	if err = n.body.Execute(&buf, c); err != nil {
		return
	}
	out, err := c.process(n.processor, buf.String())
	if err != nil {
		if errors.Is(err, errUnknownProcessor) {
			return inline(w, c, err, fmt.Sprintf("[ Filter: unknown processor %s ]", n.processor))
		}
		return recovered(w, c, err)
	}
	_, err = io.WriteString(w, out)
	return
}

func (n *FilterNode) String() string {
	return fmt.Sprintf("[filter :%s] %s", n.processor, n.body)
}

// ******
// * If *
// ******

type ifBranch struct {
	cond string
	body Block
}

// IfNode renders the block of the first true condition, or its else block.
type IfNode struct {
	calledAs string
	negate   bool
	branches []*ifBranch
	fail     Block
	inElse   bool
	switched bool
}

// NewIf opens a conditional on cond. With negate set it behaves as unless:
// text before the else renders when cond is false.
func NewIf(calledAs, cond string, negate bool) *IfNode {
	return &IfNode{
		calledAs: calledAs,
		negate:   negate,
		branches: []*ifBranch{{cond: cond}},
		inElse:   negate,
	}
}

func (*IfNode) node() {}

func (n *IfNode) CalledAs() string                { return n.calledAs }
func (n *IfNode) Tags() (modifier, closer string) { return TagElsif, TagEnd }

func (n *IfNode) Add(child Node) {
	if n.inElse {
		n.fail.Add(child)
		return
	}
	n.branches[len(n.branches)-1].body.Add(child)
}

// Elsif starts a new condition.
func (n *IfNode) Elsif(cond string) error {
	if n.switched || n.negate {
		return fmt.Errorf("elsif cannot follow else or appear in %s", n.calledAs)
	}
	n.branches = append(n.branches, &ifBranch{cond: cond})
	return nil
}

// Else switches to the other block.
func (n *IfNode) Else() error {
	if n.switched {
		return fmt.Errorf("more than one else in %s", n.calledAs)
	}
	n.inElse = !n.inElse
	n.switched = true
	return nil
}

func (n *IfNode) Execute(w io.Writer, c *Context) error {
	for _, b := range n.branches {
		if c.Truthy(b.cond) {
			return b.body.Execute(w, c)
		}
	}
	return n.fail.Execute(w, c)
}

func (n *IfNode) String() string {
	var buf bytes.Buffer
	label := n.calledAs
	for _, b := range n.branches {
		fmt.Fprintf(&buf, "[%s %s] %s", label, b.cond, b.body)
		label = "elsif"
	}
	if len(n.fail) > 0 {
		fmt.Fprintf(&buf, " | [else] %s", n.fail)
	}
	return buf.String()
}

// ********
// * Loop *
// ********

// LoopNode renders its body once per element of a collection.
type LoopNode struct {
	calledAs  string
	path      string
	iterators []string
	body      Block
	fail      Block
	inElse    bool
	switched  bool
}

// NewLoop loops over path, binding each element to iterators. With no
// iterators the element becomes the backing object of the iteration scope.
func NewLoop(calledAs, path string, iterators []string) *LoopNode {
	return &LoopNode{
		calledAs:  calledAs,
		path:      path,
		iterators: iterators,
	}
}

func (*LoopNode) node() {}

func (n *LoopNode) CalledAs() string                { return n.calledAs }
func (n *LoopNode) Tags() (modifier, closer string) { return TagElse, TagEnd }

func (n *LoopNode) Add(child Node) {
	if n.inElse {
		n.fail.Add(child)
		return
	}
	n.body.Add(child)
}

// Else starts the block rendered for absent or empty collections.
func (n *LoopNode) Else() error {
	if n.switched {
		return fmt.Errorf("more than one else in %s", n.calledAs)
	}
	n.inElse = !n.inElse
	n.switched = true
	return nil
}

func (n *LoopNode) Execute(w io.Writer, c *Context) error {
	v, err := c.present(n.path)
	if err != nil {
		return recovered(w, c, err)
	}
	items := enumerate(v)
	if len(items) == 0 {
		return n.fail.Execute(w, c)
	}

	ns := c.Child(nil)
	odd := true
	for i, item := range items {
		ns.Clear()
		ns.setObject(nil)
		switch len(n.iterators) {
		case 0:
			ns.setObject(item)
		case 1:
			ns.Set(n.iterators[0], item)
		default:
			parts, err := components(item, len(n.iterators))
			if err != nil {
				if err := recovered(w, c, &ResolutionError{Path: n.path, Err: err}); err != nil {
					return err
				}
				odd = !odd
				continue
			}
			for j, name := range n.iterators {
				ns.Set(name, parts[j])
			}
		}
		ns.Set(IndexName, i)
		ns.Set(FirstName, i == 0)
		ns.Set(LastName, i == len(items)-1)
		ns.Set(OddName, odd)
		odd = !odd
		if err := n.body.Execute(w, ns); err != nil {
			return err
		}
	}
	return nil
}

func (n *LoopNode) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s %s", n.calledAs, n.path)
	if len(n.iterators) > 0 {
		fmt.Fprintf(&buf, ": %s", strings.Join(n.iterators, " "))
	}
	fmt.Fprintf(&buf, "] %s", n.body)
	if len(n.fail) > 0 {
		fmt.Fprintf(&buf, " | [else] %s", n.fail)
	}
	return buf.String()
}

// ********
// * Case *
// ********

// CaseNode renders the block registered for the value of a variable.
type CaseNode struct {
	calledAs string
	path     string
	blocks   map[string]*Block
	order    []string
	current  string
	inWhen   bool
	fallback Block
}

func NewCase(calledAs, path string) *CaseNode {
	return &CaseNode{
		calledAs: calledAs,
		path:     path,
		blocks:   map[string]*Block{},
	}
}

func (*CaseNode) node() {}

func (n *CaseNode) CalledAs() string                { return n.calledAs }
func (n *CaseNode) Tags() (modifier, closer string) { return TagWhen, TagEnd }

func (n *CaseNode) Add(child Node) {
	if !n.inWhen {
		n.fallback.Add(child)
		return
	}
	n.blocks[n.current].Add(child)
}

// When starts the block for literal. Repeating a literal appends to its
// existing block.
func (n *CaseNode) When(literal string) error {
	n.current = literal
	n.inWhen = true
	if _, ok := n.blocks[literal]; !ok {
		n.blocks[literal] = &Block{}
		n.order = append(n.order, literal)
	}
	return nil
}

// Else returns to the default block.
func (n *CaseNode) Else() error {
	n.inWhen = false
	return nil
}

func (n *CaseNode) Execute(w io.Writer, c *Context) error {
	v, err := c.present(n.path)
	if err != nil {
		return recovered(w, c, err)
	}
	if v != nil {
		if b, ok := n.blocks[stringify(v)]; ok {
			return b.Execute(w, c)
		}
	}
	return n.fallback.Execute(w, c)
}

func (n *CaseNode) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s %s]", n.calledAs, n.path)
	for _, lit := range n.order {
		fmt.Fprintf(&buf, " | [when %q] %s", lit, n.blocks[lit])
	}
	fmt.Fprintf(&buf, " | [else] %s", n.fallback)
	return buf.String()
}

// ***********
// * Include *
// ***********

// IncludeNode renders another template from the parser's source.
type IncludeNode struct {
	name string
}

func NewInclude(name string) *IncludeNode { return &IncludeNode{name: name} }

func (*IncludeNode) node() {}

func (n *IncludeNode) Execute(w io.Writer, c *Context) error {
	if c.rt.depth >= maxIncludeDepth {
		return recovered(w, c, resolutionErrorf(n.name, "include depth exceeds %d", maxIncludeDepth))
	}
	p := c.rt.parser
	name := n.name
	doc, err := p.Load(name)
	if errors.Is(err, ErrNotFound) {
		if v, ok := c.Lookup(n.name); ok && v != nil {
			name = stringify(v)
			doc, err = p.Load(name)
		}
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			//a missing template is never fatal, even when strict
			p.log.Warn("include not found", "name", name)
			_, err = fmt.Fprintf(w, "[ Template '%s' not found ]", name)
			return err
		}
		return recovered(w, c, err)
	}

	c.rt.depth++
	defer func() { c.rt.depth-- }()
	return doc.Block.Execute(w, c)
}

func (n *IncludeNode) String() string {
	return fmt.Sprintf("[include %s]", n.name)
}

// ***********
// * Unknown *
// ***********

type resolvedNode struct {
	Node
}

// UnknownNode holds a directive no glossary entry matched at compile time.
// It is looked up again when first rendered, so entries defined after
// compilation still apply.
type UnknownNode struct {
	command  string
	resolved atomic.Pointer[resolvedNode]
}

func NewUnknown(command string) *UnknownNode { return &UnknownNode{command: command} }

func (*UnknownNode) node() {}

func (n *UnknownNode) Execute(w io.Writer, c *Context) error {
	if r := n.resolved.Load(); r != nil {
		return r.Execute(w, c)
	}
	found := c.rt.parser.cfg.Glossary.Lookup(n.command)
	if _, ok := found.(*UnknownNode); ok {
		err := &ResolutionError{Path: n.command, Err: errUnknownCommand}
		return inline(w, c, err, fmt.Sprintf("[ Unknown Command: %s ]", n.command))
	}
	n.resolved.Store(&resolvedNode{found})
	return found.Execute(w, c)
}

func (n *UnknownNode) String() string {
	if r := n.resolved.Load(); r != nil {
		return r.String()
	}
	return fmt.Sprintf("[unknown %q]", n.command)
}
