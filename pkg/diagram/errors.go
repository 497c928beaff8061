package diagram

import (
	"errors"
	"fmt"
)

var (
	// ErrDiagramNotFound indicates that no diagram resource exists for the requested name.
	ErrDiagramNotFound = errors.New("diagram not found")

	// ErrInvalidDiagram indicates that the resource could not be parsed or has no process.
	ErrInvalidDiagram = errors.New("invalid diagram")

	// ErrNoStartEvent indicates that the process has no start marker.
	ErrNoStartEvent = errors.New("diagram has no start event")

	// ErrMultipleStartEvents indicates that the process has more than one start marker.
	ErrMultipleStartEvents = errors.New("diagram has more than one start event")

	// ErrUnknownNode indicates a flow that references a node that does not exist.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode indicates two elements sharing one key.
	ErrDuplicateNode = errors.New("duplicate node key")
)

// LoadError wraps any failure to turn a named diagram resource into a Diagram.
type LoadError struct {
	Name string // Diagram name as requested
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load diagram %q: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError wraps err for the named diagram. Existing load errors are returned unchanged.
func NewLoadError(name string, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return err
	}

	return &LoadError{Name: name, Err: err}
}

// IsLoadError reports whether err is a diagram load failure.
func IsLoadError(err error) bool {
	var loadErr *LoadError

	return errors.As(err, &loadErr)
}

// IsNotFound reports whether err indicates a missing diagram.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDiagramNotFound)
}
