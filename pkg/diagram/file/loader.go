// Package file serves diagrams from a directory of BPMN and YAML definition files.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/diagram/bpmn"
	"github.com/goobi/goobi-production/pkg/diagram/definition"
)

type reader func(ctx context.Context, name string, r io.Reader) (*diagram.Diagram, error)

// Formats are tried in this order when resolving a diagram name.
var formats = []struct {
	extension string
	read      reader
}{
	{bpmn.Extension, bpmn.Read},
	{definition.Extension, definition.Read},
}

// Loader resolves a diagram name to <root>/<name>.bpmn20.xml or <root>/<name>.yaml.
type Loader struct {
	root   string
	logger *slog.Logger
}

func NewLoader(root string, logger *slog.Logger) *Loader {
	return &Loader{
		root:   root,
		logger: logger.With("module", "diagram_loader", "root", root),
	}
}

func (l *Loader) Load(ctx context.Context, name string) (*diagram.Diagram, error) {
	path, read, err := l.resolve(name)
	if err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, diagram.NewLoadError(name, err)
	}
	defer func() { _ = f.Close() }()

	l.logger.DebugContext(ctx, "Loading diagram", "diagram", name, "path", path)

	return read(ctx, name, f)
}

// Modified returns the modification time of the file backing the named diagram.
func (l *Loader) Modified(_ context.Context, name string) (time.Time, error) {
	path, _, err := l.resolve(name)
	if err != nil {
		return time.Time{}, diagram.NewLoadError(name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, diagram.NewLoadError(name, err)
	}

	return info.ModTime(), nil
}

// List returns the names of all diagrams in the directory, sorted.
func (l *Loader) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("failed to read diagram directory: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		for _, format := range formats {
			if name, ok := strings.CutSuffix(entry.Name(), format.extension); ok && name != "" {
				if !slices.Contains(names, name) {
					names = append(names, name)
				}

				break
			}
		}
	}

	slices.Sort(names)

	return names, nil
}

func (l *Loader) resolve(name string) (string, reader, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", nil, fmt.Errorf("%w: invalid name %q", diagram.ErrDiagramNotFound, name)
	}

	for _, format := range formats {
		path := filepath.Join(l.root, name+format.extension)

		if _, err := os.Stat(path); err == nil {
			return path, format.read, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
	}

	return "", nil, diagram.ErrDiagramNotFound
}
