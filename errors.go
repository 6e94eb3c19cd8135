package pagetemplate

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Source that has no template for a name.
var ErrNotFound = errors.New("template not found")

// StructuralError reports a block that was never closed, or a modifier used
// where it is not allowed. It is always fatal to compilation.
type StructuralError struct {
	Line      int
	Directive string
	Msg       string
}

func (e *StructuralError) Error() string {
	if e.Directive == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Directive)
}

// ResolutionError reports a missing variable, path segment or processor at
// render time.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %q: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SourceError reports a template body that could not be supplied.
type SourceError struct {
	Name string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Name, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func resolutionErrorf(path, format string, args ...any) *ResolutionError {
	return &ResolutionError{Path: path, Err: fmt.Errorf(format, args...)}
}
