// Package diagram defines the in-memory process graph that workflow diagrams are loaded into.
package diagram

import (
	"fmt"
)

// NodeID addresses a node inside one Graph. IDs are assigned in insertion order by the Builder
// and are only meaningful for the Graph that produced them.
type NodeID int

// EdgeID addresses a sequence flow inside one Graph.
type EdgeID int

// NoNode is returned where a node lookup has no result, e.g. the successor of a final step.
const NoNode NodeID = -1

// Kind discriminates the node variants of a Graph.
type Kind int

const (
	KindStart   Kind = iota + 1 // Start marker, exactly one per graph
	KindStep                    // Unit of work, compiled into a task
	KindGateway                 // Branching or joining point
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindStep:
		return "step"
	case KindGateway:
		return "gateway"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// GatewayDirection mirrors the BPMN gatewayDirection attribute.
type GatewayDirection string

const (
	GatewayUnspecified GatewayDirection = ""
	GatewayDiverging   GatewayDirection = "Diverging"
	GatewayConverging  GatewayDirection = "Converging"
	GatewayMixed       GatewayDirection = "Mixed"
)

// Node is one element of the process graph.
type Node struct {
	ID   NodeID
	Key  string // Element id in the source diagram
	Kind Kind
	Name string

	Step      *StepAttributes  // KindStep only
	Direction GatewayDirection // KindGateway only
}

// IsScript reports whether the node is a step carrying script attributes.
func (n Node) IsScript() bool {
	return n.Kind == KindStep && n.Step != nil && n.Step.Script != nil
}

// Edge is a directed sequence flow with an optional guard condition.
type Edge struct {
	ID        EdgeID
	Key       string
	Source    NodeID
	Target    NodeID
	Condition string
}

// Graph is an immutable process graph. Build one with a Builder.
type Graph struct {
	nodes    []Node
	edges    []Edge
	outgoing [][]EdgeID
	incoming [][]EdgeID
	start    NodeID
}

// Start returns the start marker of the graph.
func (g *Graph) Start() NodeID {
	return g.start
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) Node {
	return g.nodes[id]
}

// Edge returns the sequence flow with the given id.
func (g *Graph) Edge(id EdgeID) Edge {
	return g.edges[id]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, len(g.nodes))
	copy(nodes, g.nodes)

	return nodes
}

// Steps returns all step nodes in insertion order.
func (g *Graph) Steps() []Node {
	var steps []Node

	for _, node := range g.nodes {
		if node.Kind == KindStep {
			steps = append(steps, node)
		}
	}

	return steps
}

// Outgoing returns the flows leaving the node, in diagram order.
func (g *Graph) Outgoing(id NodeID) []Edge {
	return g.collect(g.outgoing[id])
}

// Incoming returns the flows entering the node, in diagram order.
func (g *Graph) Incoming(id NodeID) []Edge {
	return g.collect(g.incoming[id])
}

// Next returns the target of the first outgoing flow, or NoNode when the node has none.
func (g *Graph) Next(id NodeID) NodeID {
	if len(g.outgoing[id]) == 0 {
		return NoNode
	}

	return g.edges[g.outgoing[id][0]].Target
}

// IsConverging reports whether the node is a gateway that joins branches back together.
// An explicit direction wins; otherwise a gateway with several incoming and at most one
// outgoing flow is treated as converging.
func (g *Graph) IsConverging(id NodeID) bool {
	node := g.nodes[id]
	if node.Kind != KindGateway {
		return false
	}

	switch node.Direction {
	case GatewayConverging:
		return true
	case GatewayDiverging, GatewayMixed:
		return false
	default:
		return len(g.incoming[id]) > 1 && len(g.outgoing[id]) <= 1
	}
}

func (g *Graph) collect(ids []EdgeID) []Edge {
	edges := make([]Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, g.edges[id])
	}

	return edges
}
