package pagetemplate

import (
	"sort"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

// Source supplies template bodies by name and may keep compiled documents
// for them. Get returns the body text, along with a cached document when one
// is still valid for that body. A missing name is an error matching
// ErrNotFound.
type Source interface {
	Get(name string) (text string, doc *Document, err error)
	Cache(name string, doc *Document)
}

// *************
// * MapSource *
// *************

type mapEntry struct {
	sum uint64
	doc *Document
}

// MapSource holds template bodies in memory. Compiled documents are tied to
// a fingerprint of the body they were compiled from.
type MapSource struct {
	mu     sync.RWMutex
	bodies map[string]string
	cache  map[string]mapEntry
}

// NewMapSource returns a source holding a copy of bodies.
func NewMapSource(bodies map[string]string) *MapSource {
	s := &MapSource{
		bodies: make(map[string]string, len(bodies)),
		cache:  map[string]mapEntry{},
	}
	for name, body := range bodies {
		s.bodies[name] = body
	}
	return s
}

// Set stores body under name, dropping any document compiled from an older
// body.
func (s *MapSource) Set(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[name] = body
	if e, ok := s.cache[name]; ok && e.sum != fnv1a.HashString64(body) {
		delete(s.cache, name)
	}
}

func (s *MapSource) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bodies, name)
	delete(s.cache, name)
}

// Names lists the stored templates in order.
func (s *MapSource) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.bodies))
	for name := range s.bodies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MapSource) Get(name string) (string, *Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.bodies[name]
	if !ok {
		return "", nil, &SourceError{Name: name, Err: ErrNotFound}
	}
	if e, ok := s.cache[name]; ok && e.sum == fnv1a.HashString64(body) {
		return body, e.doc, nil
	}
	return body, nil, nil
}

// Cache keeps doc for as long as the body it was compiled from is stored.
func (s *MapSource) Cache(name string, doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[name]; !ok {
		return
	}
	s.cache[name] = mapEntry{sum: doc.sum, doc: doc}
}
