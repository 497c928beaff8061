// Package compiler turns a process graph into the ordered task list of a template.
package compiler

import (
	"errors"
	"fmt"

	"github.com/goobi/goobi-production/pkg/diagram"
)

var (
	// ErrCycleDetected indicates a path that reaches one of its own nodes again.
	ErrCycleDetected = errors.New("cycle detected in diagram")

	// ErrUnstructuredGateway indicates a gateway whose branches join at different gateways.
	ErrUnstructuredGateway = errors.New("gateway branches converge on different gateways")
)

// EntryKind discriminates the entries of a linearized graph.
type EntryKind int

const (
	EntryStep   EntryKind = iota + 1 // A step on the current line
	EntryBranch                      // Start of one branch of a gateway, Edge leads into it
	EntryJoin                        // End of the gateway's branch block
)

// Entry is one element of a linearized graph. Node is the step for EntryStep and the gateway
// for EntryBranch and EntryJoin.
type Entry struct {
	Kind EntryKind
	Node diagram.NodeID
	Edge diagram.EdgeID
}

// Linearize flattens the graph, starting at its start marker, into a sequence of steps and
// gateway blocks. Each diverging gateway contributes one EntryBranch per outgoing flow, each
// followed by the entries of that branch, and a closing EntryJoin. A branch ends where its path
// ends or at a converging gateway; once every branch arriving at that gateway has been seen,
// the line continues after it.
func Linearize(g *diagram.Graph) ([]Entry, error) {
	l := &linearizer{
		graph:  g,
		onPath: make(map[diagram.NodeID]bool),
	}

	if _, _, err := l.walk(g.Start(), false); err != nil {
		return nil, err
	}

	return l.entries, nil
}

type linearizer struct {
	graph   *diagram.Graph
	entries []Entry
	onPath  map[diagram.NodeID]bool
}

// walk follows a line from id. Inside a branch it stops at the first converging gateway and
// returns it with the number of branch paths that arrived there.
func (l *linearizer) walk(id diagram.NodeID, nested bool) (diagram.NodeID, int, error) {
	var visited []diagram.NodeID

	defer func() {
		for _, v := range visited {
			delete(l.onPath, v)
		}
	}()

	for id != diagram.NoNode {
		if l.onPath[id] {
			return diagram.NoNode, 0, fmt.Errorf("%w: node %q is reached again", ErrCycleDetected, l.graph.Node(id).Key)
		}

		if nested && l.graph.IsConverging(id) {
			return id, 1, nil
		}

		l.onPath[id] = true
		visited = append(visited, id)

		node := l.graph.Node(id)

		switch {
		case node.Kind == diagram.KindStep:
			l.entries = append(l.entries, Entry{Kind: EntryStep, Node: id})
			id = l.graph.Next(id)
		case node.Kind == diagram.KindGateway && !l.graph.IsConverging(id) && len(l.graph.Outgoing(id)) > 0:
			join, arrivals, err := l.expand(id)
			if err != nil {
				return diagram.NoNode, 0, err
			}

			if join == diagram.NoNode {
				return diagram.NoNode, 0, nil
			}

			// The join also collects paths of an enclosing gateway.
			if nested && arrivals < len(l.graph.Incoming(join)) {
				return join, arrivals, nil
			}

			if l.onPath[join] {
				return diagram.NoNode, 0, fmt.Errorf("%w: node %q is reached again", ErrCycleDetected, l.graph.Node(join).Key)
			}

			l.onPath[join] = true
			visited = append(visited, join)
			id = l.graph.Next(join)
		default:
			id = l.graph.Next(id)
		}
	}

	return diagram.NoNode, 0, nil
}

func (l *linearizer) expand(gateway diagram.NodeID) (diagram.NodeID, int, error) {
	join := diagram.NoNode
	arrivals := 0

	for _, edge := range l.graph.Outgoing(gateway) {
		l.entries = append(l.entries, Entry{Kind: EntryBranch, Node: gateway, Edge: edge.ID})

		stop, n, err := l.walk(edge.Target, true)
		if err != nil {
			return diagram.NoNode, 0, err
		}

		if stop == diagram.NoNode {
			continue
		}

		if join != diagram.NoNode && join != stop {
			return diagram.NoNode, 0, fmt.Errorf("%w: gateway %q joins at %q and %q", ErrUnstructuredGateway,
				l.graph.Node(gateway).Key, l.graph.Node(join).Key, l.graph.Node(stop).Key)
		}

		join = stop
		arrivals += n
	}

	l.entries = append(l.entries, Entry{Kind: EntryJoin, Node: gateway})

	return join, arrivals, nil
}
