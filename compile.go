package pagetemplate

import (
	"github.com/edwingeng/deque"
	"github.com/segmentio/fasthash/fnv1a"
)

// frame is an open block on the compile stack.
type frame struct {
	node      Stackable
	line      int
	directive string
}

// Parse compiles text with the parser's glossary. Unclosed blocks and
// misplaced modifiers are reported as a *StructuralError.
func (p *Parser) Parse(text string) (*Document, error) {
	return compile(p, p.cfg.Glossary, text)
}

func compile(p *Parser, g *Glossary, text string) (*Document, error) {
	doc := &Document{parser: p, sum: fnv1a.HashString64(text)}
	stack := deque.NewDeque()
	stack.PushBack(&frame{node: doc, line: 1})

	for _, tok := range lex(g.Directive(), text) {
		top := stack.Back().(*frame)
		switch tok.typ {
		case tokenText:
			top.node.Add(TextNode(tok.dat))

		case tokenDirective:
			modifier, closer := top.node.Tags()
			ok, err := g.Modifies(modifier, top.node, tok.dat)
			if err != nil {
				return nil, &StructuralError{Line: tok.line, Directive: tok.dat, Msg: err.Error()}
			}
			if ok {
				continue
			}
			ok, err = g.Modifies(closer, top.node, tok.dat)
			if err != nil {
				return nil, &StructuralError{Line: tok.line, Directive: tok.dat, Msg: err.Error()}
			}
			if ok {
				stack.PopBack()
				stack.Back().(*frame).node.Add(top.node)
				continue
			}

			n := g.Lookup(tok.dat)
			if s, ok := n.(Stackable); ok {
				stack.PushBack(&frame{node: s, line: tok.line, directive: tok.dat})
				continue
			}
			top.node.Add(n)
		}
	}

	if stack.Len() > 1 {
		open := stack.Back().(*frame)
		return nil, &StructuralError{
			Line:      open.line,
			Directive: open.directive,
			Msg:       "unclosed " + open.node.CalledAs(),
		}
	}
	return doc, nil
}
