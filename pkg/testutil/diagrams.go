// Package testutil provides test diagrams and an in-memory diagram source.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/goobi/goobi-production/pkg/diagram"
)

// Digitization is the process id of the diagrams built here.
const Digitization = "digitization"

// LinearDiagram builds start -> titles[0] -> ... -> titles[n-1].
func LinearDiagram(name string, titles ...string) *diagram.Diagram {
	b := diagram.NewBuilder()
	prev := b.Start("start")

	for _, title := range titles {
		step := b.Step(title, title, diagram.StepAttributes{Title: title})
		b.Flow("", prev, step, "")
		prev = step
	}

	return mustDiagram(name, b)
}

// BranchingDiagram builds start -> A -> G{B "x=1", C "x=2"} -> J -> D, compiling to
// A(1) B(2) C(2) D(3).
func BranchingDiagram(name string) *diagram.Diagram {
	b := diagram.NewBuilder()
	start := b.Start("start")
	a := b.Step("A", "A", diagram.StepAttributes{Title: "A", TypeImagesWrite: true})
	g := b.Gateway("G", "", diagram.GatewayDiverging)
	bb := b.Step("B", "B", diagram.StepAttributes{Title: "B"})
	c := b.Step("C", "C", diagram.StepAttributes{
		Title:         "C",
		TypeAutomatic: true,
		Script:        &diagram.ScriptAttributes{Name: "ocr", Path: "/usr/local/bin/ocr.sh"},
	})
	j := b.Gateway("J", "", diagram.GatewayConverging)
	d := b.Step("D", "D", diagram.StepAttributes{Title: "D", TypeExportDMS: true})

	b.Flow("", start, a, "")
	b.Flow("", a, g, "")
	b.Flow("", g, bb, "x=1")
	b.Flow("", g, c, "x=2")
	b.Flow("", bb, j, "")
	b.Flow("", c, j, "")
	b.Flow("", j, d, "")

	return mustDiagram(name, b)
}

// CyclicDiagram builds start -> A -> B -> A.
func CyclicDiagram(name string) *diagram.Diagram {
	b := diagram.NewBuilder()
	start := b.Start("start")
	a := b.Step("A", "A", diagram.StepAttributes{Title: "A"})
	bb := b.Step("B", "B", diagram.StepAttributes{Title: "B"})

	b.Flow("", start, a, "")
	b.Flow("", a, bb, "")
	b.Flow("", bb, a, "")

	return mustDiagram(name, b)
}

func mustDiagram(name string, b *diagram.Builder) *diagram.Diagram {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}

	return &diagram.Diagram{
		Name: name,
		Process: diagram.Process{
			ID:    Digitization,
			Title: "Digitization " + name,
		},
		Graph: g,
	}
}

// Source is an in-memory diagram.Source. Put replaces a diagram and bumps its modification time.
type Source struct {
	mu       sync.RWMutex
	diagrams map[string]*diagram.Diagram
	modified map[string]time.Time
}

func NewSource(diagrams ...*diagram.Diagram) *Source {
	s := &Source{
		diagrams: make(map[string]*diagram.Diagram),
		modified: make(map[string]time.Time),
	}

	for _, d := range diagrams {
		s.Put(d, time.Now())
	}

	return s
}

func (s *Source) Put(d *diagram.Diagram, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagrams[d.Name] = d
	s.modified[d.Name] = modified
}

func (s *Source) Load(_ context.Context, name string) (*diagram.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.diagrams[name]
	if !ok {
		return nil, diagram.NewLoadError(name, diagram.ErrDiagramNotFound)
	}

	return d, nil
}

func (s *Source) Modified(_ context.Context, name string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	modified, ok := s.modified[name]
	if !ok {
		return time.Time{}, diagram.NewLoadError(name, diagram.ErrDiagramNotFound)
	}

	return modified, nil
}

func (s *Source) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.diagrams))
	for name := range s.diagrams {
		names = append(names, name)
	}

	return names, nil
}
