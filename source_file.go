package pagetemplate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var errOutsidePaths = errors.New("path escapes the include paths")

type fileStamp struct {
	file    string
	modTime time.Time
	size    int64
}

func stampOf(file string, fi os.FileInfo) fileStamp {
	return fileStamp{file: file, modTime: fi.ModTime(), size: fi.Size()}
}

func (a fileStamp) same(b fileStamp) bool {
	return a.file == b.file && a.size == b.size && a.modTime.Equal(b.modTime)
}

type fileEntry struct {
	fileStamp
	doc *Document
}

// FileSource reads templates from files below a list of include paths.
// Names are tried against each path in order. Compiled documents are kept
// until the file's modification time or size changes.
type FileSource struct {
	paths []string

	mu      sync.Mutex
	cache   map[string]fileEntry
	pending map[string]fileStamp
}

// NewFileSource returns a source reading below paths, or below the working
// directory when none are given.
func NewFileSource(paths ...string) *FileSource {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	s := &FileSource{
		cache:   map[string]fileEntry{},
		pending: map[string]fileStamp{},
	}
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		s.paths = append(s.paths, filepath.Clean(p))
	}
	return s
}

// Paths returns the absolute include paths.
func (s *FileSource) Paths() []string {
	return append([]string(nil), s.paths...)
}

func (s *FileSource) within(file string) bool {
	for _, p := range s.paths {
		rel, err := filepath.Rel(p, file)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolve finds the file for name.
func (s *FileSource) resolve(name string) (string, os.FileInfo, error) {
	for _, seg := range strings.Split(filepath.ToSlash(name), "/") {
		if seg == ".." {
			return "", nil, &SourceError{Name: name, Err: errOutsidePaths}
		}
	}

	var candidates []string
	if filepath.IsAbs(name) {
		file := filepath.Clean(name)
		if !s.within(file) {
			return "", nil, &SourceError{Name: name, Err: errOutsidePaths}
		}
		candidates = []string{file}
	} else {
		for _, p := range s.paths {
			candidates = append(candidates, filepath.Join(p, name))
		}
	}

	for _, file := range candidates {
		fi, err := os.Stat(file)
		if err == nil && fi.Mode().IsRegular() {
			return file, fi, nil
		}
	}
	return "", nil, &SourceError{Name: name, Err: ErrNotFound}
}

func (s *FileSource) Get(name string) (string, *Document, error) {
	file, fi, err := s.resolve(name)
	if err != nil {
		return "", nil, err
	}
	stamp := stampOf(file, fi)

	data, err := os.ReadFile(file)
	if err != nil {
		return "", nil, &SourceError{Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.cache[file]; ok && e.same(stamp) {
		return string(data), e.doc, nil
	}
	s.pending[name] = stamp
	return string(data), nil, nil
}

// Cache keeps doc against the file state seen by the last Get of name.
func (s *FileSource) Cache(name string, doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.pending[name]
	if !ok {
		return
	}
	delete(s.pending, name)
	s.cache[stamp.file] = fileEntry{fileStamp: stamp, doc: doc}
}

// Sweep drops documents whose files changed or disappeared, returning how
// many were dropped.
func (s *FileSource) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for file, e := range s.cache {
		fi, err := os.Stat(file)
		if err != nil || !e.same(stampOf(file, fi)) {
			delete(s.cache, file)
			dropped++
		}
	}
	return dropped
}

// Cached reports how many compiled documents are held.
func (s *FileSource) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
