package pagetemplate

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tevino/abool/v2"
)

// Mode selects whether compiled templates are cached by their source.
type Mode bool

func (m Mode) String() string {
	if bool(m) {
		return "Development"
	}
	return "Production"
}

const (
	// Production uses compiled templates offered by the source and offers
	// every compiled template back to it. Sources drop a compiled template
	// once its text changes.
	Production Mode = false
	// Development always recompiles from the source text and caches
	// nothing.
	Development Mode = true
)

// ParseMode maps "production" or "development" (any case) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "production":
		return Production, nil
	case "development":
		return Development, nil
	}
	return Production, errors.New("unknown mode " + s)
}

// Config holds the settings of a Parser. Zero fields take their defaults.
type Config struct {
	Glossary   *Glossary  // DefaultGlossary()
	Processors Processors // DefaultProcessors()
	// DefaultProcessor applies to values that name no processor.
	DefaultProcessor string // "unescaped"
	Source           Source // NewFileSource(".")
	// Namespace seeds the parser level variables.
	Namespace map[string]any
	// MethodSeparators are the characters accepted as path separators.
	MethodSeparators string // "./"
	// Strict returns resolution errors instead of rendering them inline.
	Strict bool
	// EmptyIsTrue treats empty strings and collections as true.
	EmptyIsTrue bool
	Mode        Mode         // Production
	Logger      *slog.Logger // discards
}

// Parser compiles and renders templates. It is safe for concurrent use.
type Parser struct {
	cfg         Config
	log         *slog.Logger
	development *abool.AtomicBool
	locks       *keyLock

	mu      sync.RWMutex
	globals map[string]any
}

// New returns a parser for cfg.
func New(cfg Config) *Parser {
	if cfg.Glossary == nil {
		cfg.Glossary = DefaultGlossary()
	}
	if cfg.Processors == nil {
		cfg.Processors = DefaultProcessors()
	}
	if cfg.DefaultProcessor == "" {
		cfg.DefaultProcessor = "unescaped"
	}
	if cfg.Source == nil {
		cfg.Source = NewFileSource(".")
	}
	if cfg.MethodSeparators == "" {
		cfg.MethodSeparators = "./"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	p := &Parser{
		cfg:         cfg,
		log:         cfg.Logger,
		development: abool.NewBool(bool(cfg.Mode)),
		locks:       newKeyLock(),
		globals:     map[string]any{},
	}
	for k, v := range cfg.Namespace {
		p.globals[k] = v
	}
	return p
}

// Glossary returns the glossary templates are compiled with.
func (p *Parser) Glossary() *Glossary { return p.cfg.Glossary }

// Source returns the source templates are loaded from.
func (p *Parser) Source() Source { return p.cfg.Source }

// SetMode switches between caching and always recompiling.
func (p *Parser) SetMode(m Mode) {
	p.development.SetTo(bool(m))
	p.log.Debug("mode changed", "mode", m)
}

func (p *Parser) Mode() Mode {
	return Mode(p.development.IsSet())
}

// Set stores a parser level variable, visible to every later render.
func (p *Parser) Set(key string, val any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globals[key] = val
}

// Get resolves path against the parser level variables.
func (p *Parser) Get(path string) (any, error) {
	return p.NewContext(nil).Get(path)
}

// NewContext returns a context for one render. Parser level variables are
// copied into its root, so later calls to Set do not affect it. data, if
// not nil, backs a child of that root.
func (p *Parser) NewContext(data any) *Context {
	root := newContext(&runtime{parser: p}, nil, nil)
	p.mu.RLock()
	for k, v := range p.globals {
		root.values[k] = v
	}
	p.mu.RUnlock()
	if data == nil {
		return root
	}
	return root.Child(data)
}

// Load returns the compiled template for name. In Production mode compiled
// templates are cached through the source.
func (p *Parser) Load(name string) (*Document, error) {
	p.locks.Lock(name)
	defer p.locks.Unlock(name)

	production := p.Mode() == Production
	text, doc, err := p.cfg.Source.Get(name)
	if err != nil {
		var se *SourceError
		if !errors.As(err, &se) {
			err = &SourceError{Name: name, Err: err}
		}
		return nil, err
	}
	if doc != nil && production {
		p.log.Debug("template cache hit", "name", name)
		return doc, nil
	}

	doc, err = p.Parse(text)
	if err != nil {
		return nil, &SourceError{Name: name, Err: err}
	}
	p.log.Debug("template compiled", "name", name, "mode", p.Mode())
	if production {
		p.cfg.Source.Cache(name, doc)
	}
	return doc, nil
}

// Execute renders the template name to w. data is used as in
// Document.RenderTo.
func (p *Parser) Execute(w io.Writer, name string, data any) error {
	doc, err := p.Load(name)
	if err != nil {
		return err
	}
	return doc.RenderTo(w, data)
}

// Render renders the template name to a string.
func (p *Parser) Render(name string, data any) (string, error) {
	var buf strings.Builder
	err := p.Execute(&buf, name, data)
	return buf.String(), err
}
