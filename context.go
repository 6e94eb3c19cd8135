package pagetemplate

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ItemName refers to the backing object of a context itself.
const ItemName = "__ITEM__"

var errMissing = errors.New("no such variable")

// runtime is shared by every context of one render call.
type runtime struct {
	parser *Parser
	depth  int
}

// Context is one level of variable scope. Lookups fall back to the backing
// object and then to the parent. A Context belongs to a single render and
// must not be shared between goroutines.
type Context struct {
	values map[string]any
	cache  map[string]any
	object any
	parent *Context
	rt     *runtime
}

func newContext(rt *runtime, parent *Context, object any) *Context {
	return &Context{
		values: map[string]any{},
		cache:  map[string]any{},
		object: object,
		parent: parent,
		rt:     rt,
	}
}

// Child returns a new scope below c, backed by object.
func (c *Context) Child(object any) *Context {
	return newContext(c.rt, c, object)
}

// Parser returns the parser this context renders for.
func (c *Context) Parser() *Parser { return c.rt.parser }

// Object returns the backing object, if any.
func (c *Context) Object() any { return c.object }

// Parent returns the enclosing scope, or nil for the root.
func (c *Context) Parent() *Context { return c.parent }

func (c *Context) String() string {
	var buf bytes.Buffer
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprint(&buf, "values {")
	for _, k := range keys {
		fmt.Fprintf(&buf, "\n\t%s: %s", k, strings.Replace(stringify(c.values[k]), "\n", "\n\t", -1))
	}
	if len(keys) > 0 {
		fmt.Fprint(&buf, "\n")
	}
	fmt.Fprint(&buf, "}")
	if c.object != nil {
		fmt.Fprintf(&buf, " object %T", c.object)
	}
	if c.parent != nil {
		fmt.Fprintf(&buf, "\n%s", c.parent)
	}
	return buf.String()
}

// Set stores val under key in this scope only.
func (c *Context) Set(key string, val any) {
	c.values[key] = val
	c.forget(key)
}

// Delete removes key from this scope.
func (c *Context) Delete(key string) {
	delete(c.values, key)
	c.forget(key)
}

// forget drops the cached resolutions of key and of every path below it.
func (c *Context) forget(key string) {
	for name := range c.cache {
		if name == key || strings.HasPrefix(name, key+".") {
			delete(c.cache, name)
		}
	}
}

// Clear drops every value set on this scope and its resolution cache, so it
// can be reused for the next loop iteration.
func (c *Context) Clear() {
	clear(c.values)
	clear(c.cache)
}

func (c *Context) setObject(object any) {
	c.object = object
}

func (c *Context) strict() bool { return c.rt.parser.cfg.Strict }

// Get resolves a dotted path. A missing path yields nil, and a failing
// method call yields an inline error string, unless the parser is strict, in
// which case both are returned as a *ResolutionError.
func (c *Context) Get(path string) (any, error) {
	val, found, err := c.resolve(path)
	switch {
	case err != nil:
		if c.strict() {
			return nil, err
		}
		c.rt.parser.log.Warn("resolution error recovered", "path", path, "err", err)
		return diagnostic(err), nil
	case !found:
		if c.strict() {
			return nil, &ResolutionError{Path: path, Err: errMissing}
		}
		return nil, nil
	}
	return val, nil
}

// present resolves path for the block directives. An absent path is nil
// in every mode, so the block falls back to its else branch; only failing
// lookups are errors.
func (c *Context) present(path string) (any, error) {
	val, found, err := c.resolve(path)
	if err != nil || !found {
		return nil, err
	}
	return val, nil
}

// Lookup resolves a dotted path, reporting whether it was found.
func (c *Context) Lookup(path string) (any, bool) {
	val, found, err := c.resolve(path)
	if err != nil || !found {
		return nil, false
	}
	return val, true
}

// Truthy reports whether path resolves to a true value. Resolution errors
// count as false.
func (c *Context) Truthy(path string) bool {
	val, found, err := c.resolve(path)
	if err != nil || !found {
		return false
	}
	return truthy(val, c.rt.parser.cfg.EmptyIsTrue)
}

func (c *Context) resolve(path string) (any, bool, error) {
	key, rest, norm := splitPath(path, c.rt.parser.cfg.MethodSeparators)
	if val, ok := c.cache[norm]; ok && rest != "" {
		return val, true, nil
	}

	val, found, delegated, err := c.first(key, norm)
	if delegated || err != nil || !found || rest == "" {
		return val, found, err
	}

	name := key
	for _, seg := range strings.Split(rest, ".") {
		name += "." + seg
		if cached, ok := c.cache[name]; ok {
			val = cached
			continue
		}
		next, found, err := step(val, seg)
		if err != nil {
			return nil, false, &ResolutionError{Path: name, Err: err}
		}
		if !found {
			return nil, false, nil
		}
		c.cache[name] = next
		val = next
	}
	return val, true, nil
}

// first resolves the leading segment of a path. When the segment is not
// known here the whole path is handed to the parent and delegated is set.
func (c *Context) first(key, path string) (val any, found, delegated bool, err error) {
	if v, ok := c.values[key]; ok {
		return v, true, false, nil
	}
	if v, ok := c.cache[key]; ok {
		return v, true, false, nil
	}
	if c.object != nil {
		if v, ok, _ := keyed(c.object, key); ok {
			c.cache[key] = v
			return v, true, false, nil
		}
		v, ok, err := attribute(c.object, key)
		if err != nil {
			return nil, false, false, &ResolutionError{Path: key, Err: err}
		}
		if ok {
			c.cache[key] = v
			return v, true, false, nil
		}
		if key == ItemName {
			return c.object, true, false, nil
		}
	}
	if c.parent != nil {
		val, found, err = c.parent.resolve(path)
		return val, found, true, err
	}
	return nil, false, false, nil
}

// step resolves one trailing path segment against the previous value.
func step(v any, seg string) (any, bool, error) {
	if r, found, supported := keyed(v, seg); supported {
		return r, found, nil
	}
	if r, found := indexed(v, seg); found {
		return r, true, nil
	}
	return attribute(v, seg)
}

func diagnostic(err error) string {
	return "[ Error: " + err.Error() + " ]"
}
