// Package definition reads diagrams written as YAML or JSON documents instead of BPMN XML.
//
// A definition lists the process header, the nodes and the flows between them:
//
//	process:
//	  id: digitization
//	  title: Digitization
//	  docket: 2
//	nodes:
//	  - {key: start, kind: start}
//	  - {key: scan, kind: step, name: Scanning, attributes: {priority: 1}}
//	flows:
//	  - {from: start, to: scan}
package definition

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Extension is the file suffix of definition resources.
const Extension = ".yaml"

//go:embed schema.json
var schema []byte

// Node kinds accepted in a definition.
const (
	KindStart   = "start"
	KindStep    = "step"
	KindScript  = "script"
	KindGateway = "gateway"
)

type Definition struct {
	Process ProcessHeader `json:"process"         yaml:"process"`
	Nodes   []Node        `json:"nodes"           yaml:"nodes"`
	Flows   []Flow        `json:"flows,omitempty" yaml:"flows"`
}

type ProcessHeader struct {
	ID         string `json:"id"                   yaml:"id"`
	Title      string `json:"title,omitempty"      yaml:"title"`
	OutputName string `json:"outputName,omitempty" yaml:"outputName"`
	Docket     int64  `json:"docket,omitempty"     yaml:"docket"`
	Ruleset    int64  `json:"ruleset,omitempty"    yaml:"ruleset"`
}

type Node struct {
	Key        string         `json:"key"                  yaml:"key"`
	Kind       string         `json:"kind"                 yaml:"kind"`
	Name       string         `json:"name,omitempty"       yaml:"name"`
	Direction  string         `json:"direction,omitempty"  yaml:"direction"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes"`
}

type Flow struct {
	Key       string `json:"key,omitempty"       yaml:"key"`
	From      string `json:"from"                yaml:"from"`
	To        string `json:"to"                  yaml:"to"`
	Condition string `json:"condition,omitempty" yaml:"condition"`
}

// Parse decodes a YAML or JSON definition and validates it against the definition schema.
func Parse(data []byte) (*Definition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", diagram.ErrInvalidDiagram, err)
	}

	if err := validate(doc); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", diagram.ErrInvalidDiagram, err)
	}

	return &def, nil
}

// Read parses a definition from r and builds the diagram.
func Read(ctx context.Context, name string, r io.Reader) (*diagram.Diagram, error) {
	if err := ctx.Err(); err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	return def.Diagram(name)
}

// Diagram builds the process graph described by the definition.
func (d *Definition) Diagram(name string) (*diagram.Diagram, error) {
	b := diagram.NewBuilder()

	for _, node := range d.Nodes {
		switch node.Kind {
		case KindStart:
			b.Start(node.Key)
		case KindStep, KindScript:
			attrs, err := diagram.DecodeStepAttributes(node.Attributes, node.Kind == KindScript)
			if err != nil {
				return nil, diagram.NewLoadError(name, fmt.Errorf("%w: node %q: %w", diagram.ErrInvalidDiagram, node.Key, err))
			}

			b.Step(node.Key, node.Name, attrs)
		case KindGateway:
			b.Gateway(node.Key, node.Name, diagram.GatewayDirection(node.Direction))
		default:
			return nil, diagram.NewLoadError(name, fmt.Errorf("%w: node %q has unknown kind %q", diagram.ErrInvalidDiagram, node.Key, node.Kind))
		}
	}

	for i, flow := range d.Flows {
		key := flow.Key
		if key == "" {
			key = fmt.Sprintf("flow_%d", i+1)
		}

		b.FlowByKey(key, flow.From, flow.To, strings.TrimSpace(flow.Condition))
	}

	graph, err := b.Build()
	if err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	return &diagram.Diagram{
		Name: name,
		Process: diagram.Process{
			ID:         d.Process.ID,
			Title:      d.Process.Title,
			OutputName: d.Process.OutputName,
			DocketID:   d.Process.Docket,
			RulesetID:  d.Process.Ruleset,
		},
		Graph: graph,
	}, nil
}

func validate(doc any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", diagram.ErrInvalidDiagram, err)
	}

	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}

		return fmt.Errorf("%w: schema validation failed: %s", diagram.ErrInvalidDiagram, strings.Join(problems, "; "))
	}

	return nil
}
