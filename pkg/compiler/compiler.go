package compiler

import (
	"sort"

	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/models"
)

// StepInfo is the compile-time information attached to a step: its ordering index and the
// condition under which it runs.
type StepInfo struct {
	Node      diagram.NodeID
	Ordering  int
	Condition string
}

// Result holds the compiled steps of a graph, sorted by ordering. Steps sharing an ordering
// keep the order in which the walk first reached them.
type Result struct {
	Steps []StepInfo
	graph *diagram.Graph
}

// Compile assigns every reachable step its ordering and condition.
//
// The main line is numbered from 1. All branches of a gateway start at the same index and
// number their steps consecutively from there; after the gateway the main line continues after
// the highest index any branch used. A branch inherits the condition of the flow leading into
// it, or the enclosing condition when that flow has none. A step reached more than once keeps
// its first ordering and collects the conditions of every path, joined by a space.
func Compile(g *diagram.Graph) (*Result, error) {
	entries, err := Linearize(g)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		graph:   g,
		entries: entries,
		index:   make(map[diagram.NodeID]int),
	}

	c.line(diagram.NoNode, 1, models.DefaultCondition)

	sort.SliceStable(c.steps, func(i, j int) bool {
		return c.steps[i].Ordering < c.steps[j].Ordering
	})

	return &Result{Steps: c.steps, graph: g}, nil
}

// Tasks compiles the graph and materializes the task list.
func Tasks(g *diagram.Graph) ([]*models.Task, error) {
	result, err := Compile(g)
	if err != nil {
		return nil, err
	}

	return result.Tasks(), nil
}

// Tasks materializes one task per compiled step.
func (r *Result) Tasks() []*models.Task {
	tasks := make([]*models.Task, 0, len(r.Steps))

	for _, info := range r.Steps {
		tasks = append(tasks, NewTask(r.graph.Node(info.Node), info))
	}

	return tasks
}

// NewTask copies the step attributes of node into a task definition.
func NewTask(node diagram.Node, info StepInfo) *models.Task {
	task := &models.Task{
		Ordering:          info.Ordering,
		WorkflowCondition: info.Condition,
	}

	if node.Step == nil {
		task.Title = node.Key

		return task
	}

	attrs := node.Step
	task.Title = attrs.Title
	task.Priority = attrs.Priority
	task.EditType = attrs.EditType
	task.BatchStep = attrs.BatchStep
	task.TypeAutomatic = attrs.TypeAutomatic
	task.TypeExportDMS = attrs.TypeExportDMS
	task.TypeExportRussian = attrs.TypeExportRussian
	task.TypeMetadata = attrs.TypeMetadata
	task.TypeImportFileUpload = attrs.TypeImportFileUpload
	task.TypeImagesRead = attrs.TypeImagesRead
	task.TypeImagesWrite = attrs.TypeImagesWrite
	task.TypeAcceptClose = attrs.TypeAcceptClose
	task.TypeCloseVerify = attrs.TypeCloseVerify

	if node.IsScript() {
		task.ScriptName = attrs.Script.Name
		task.ScriptPath = attrs.Script.Path
	}

	return task
}

type compiler struct {
	graph   *diagram.Graph
	entries []Entry
	pos     int
	steps   []StepInfo
	index   map[diagram.NodeID]int
}

// line numbers the steps of one line starting at i and returns the next free index. The line
// ends at the next branch or join entry of gateway.
func (c *compiler) line(gateway diagram.NodeID, i int, condition string) int {
	for c.pos < len(c.entries) {
		entry := c.entries[c.pos]

		if entry.Node == gateway && entry.Kind != EntryStep {
			return i
		}

		switch entry.Kind {
		case EntryStep:
			c.add(entry.Node, i, condition)
			c.pos++
			i++
		case EntryBranch:
			i = c.block(entry.Node, i, condition)
		default:
			c.pos++
		}
	}

	return i
}

// block compiles every branch of gateway from the shared base index and consumes the
// closing join entry.
func (c *compiler) block(gateway diagram.NodeID, base int, enclosing string) int {
	next := base

	for c.pos < len(c.entries) {
		entry := c.entries[c.pos]
		c.pos++

		if entry.Node != gateway || entry.Kind == EntryStep {
			continue
		}

		if entry.Kind == EntryJoin {
			break
		}

		condition := c.graph.Edge(entry.Edge).Condition
		if condition == "" {
			condition = enclosing
		}

		if end := c.line(gateway, base, condition); end > next {
			next = end
		}
	}

	return next
}

func (c *compiler) add(node diagram.NodeID, ordering int, condition string) {
	if idx, ok := c.index[node]; ok {
		c.steps[idx].Condition += " " + condition

		return
	}

	c.index[node] = len(c.steps)
	c.steps = append(c.steps, StepInfo{Node: node, Ordering: ordering, Condition: condition})
}
