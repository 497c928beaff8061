package diagram

import (
	"errors"
	"fmt"
)

// Builder assembles a Graph. Nodes are registered under their diagram element key so that
// flows can reference them by key, as diagram formats do.
type Builder struct {
	graph *Graph
	keys  map[string]NodeID
	errs  []error
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		graph: &Graph{start: NoNode},
		keys:  make(map[string]NodeID),
	}
}

// Start adds a start marker.
func (b *Builder) Start(key string) NodeID {
	return b.add(Node{Key: key, Kind: KindStart})
}

// Step adds a step node. The step title defaults to the node name, then to the key.
func (b *Builder) Step(key, name string, attrs StepAttributes) NodeID {
	if attrs.Title == "" {
		attrs.Title = name
	}

	if attrs.Title == "" {
		attrs.Title = key
	}

	return b.add(Node{Key: key, Kind: KindStep, Name: name, Step: &attrs})
}

// Gateway adds a gateway node.
func (b *Builder) Gateway(key, name string, direction GatewayDirection) NodeID {
	return b.add(Node{Key: key, Kind: KindGateway, Name: name, Direction: direction})
}

// Lookup resolves a node key registered earlier.
func (b *Builder) Lookup(key string) (NodeID, bool) {
	id, ok := b.keys[key]

	return id, ok
}

// Flow connects two nodes.
func (b *Builder) Flow(key string, source, target NodeID, condition string) EdgeID {
	id := EdgeID(len(b.graph.edges))

	if !b.valid(source) || !b.valid(target) {
		b.errs = append(b.errs, fmt.Errorf("%w: flow %q references node %d -> %d", ErrUnknownNode, key, source, target))

		return id
	}

	b.graph.edges = append(b.graph.edges, Edge{
		ID:        id,
		Key:       key,
		Source:    source,
		Target:    target,
		Condition: condition,
	})
	b.graph.outgoing[source] = append(b.graph.outgoing[source], id)
	b.graph.incoming[target] = append(b.graph.incoming[target], id)

	return id
}

// FlowByKey connects two nodes addressed by their diagram keys.
func (b *Builder) FlowByKey(key, sourceKey, targetKey, condition string) {
	source, ok := b.keys[sourceKey]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("%w: flow %q source %q", ErrUnknownNode, key, sourceKey))

		return
	}

	target, ok := b.keys[targetKey]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("%w: flow %q target %q", ErrUnknownNode, key, targetKey))

		return
	}

	b.Flow(key, source, target, condition)
}

// Build validates the collected structure and returns the graph. Exactly one start marker
// is required.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	starts := 0

	for _, node := range b.graph.nodes {
		if node.Kind == KindStart {
			starts++
			b.graph.start = node.ID
		}
	}

	switch {
	case starts == 0:
		return nil, ErrNoStartEvent
	case starts > 1:
		return nil, fmt.Errorf("%w: found %d", ErrMultipleStartEvents, starts)
	}

	return b.graph, nil
}

func (b *Builder) add(node Node) NodeID {
	id := NodeID(len(b.graph.nodes))
	node.ID = id

	if node.Key != "" {
		if _, exists := b.keys[node.Key]; exists {
			b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicateNode, node.Key))
		}

		b.keys[node.Key] = id
	}

	b.graph.nodes = append(b.graph.nodes, node)
	b.graph.outgoing = append(b.graph.outgoing, nil)
	b.graph.incoming = append(b.graph.incoming, nil)

	return id
}

func (b *Builder) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(b.graph.nodes)
}
