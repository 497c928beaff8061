// Package bpmn reads BPMN 2.0 XML diagrams carrying Kitodo task extension attributes.
package bpmn

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/goobi/goobi-production/pkg/diagram"
)

// Extension is the file suffix of BPMN diagram resources.
const Extension = ".bpmn20.xml"

// Namespace is the XML namespace of the Kitodo task and process attributes.
const Namespace = "http://www.kitodo.org/template"

// Attribute prefixes accepted when a diagram uses the prefix without declaring the namespace.
var undeclaredPrefixes = map[string]bool{
	"kitodo":   true,
	"template": true,
}

type definitions struct {
	Processes []process `xml:"process"`
}

type process struct {
	ID       string     `xml:"id,attr"`
	Name     string     `xml:"name,attr"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Elements []element  `xml:",any"`
}

type element struct {
	XMLName   xml.Name
	ID        string     `xml:"id,attr"`
	Name      string     `xml:"name,attr"`
	SourceRef string     `xml:"sourceRef,attr"`
	TargetRef string     `xml:"targetRef,attr"`
	Direction string     `xml:"gatewayDirection,attr"`
	Attrs     []xml.Attr `xml:",any,attr"`
	Condition *struct {
		Text string `xml:",chardata"`
	} `xml:"conditionExpression"`
}

// Read parses a BPMN document. The first process of the document becomes the diagram.
func Read(ctx context.Context, name string, r io.Reader) (*diagram.Diagram, error) {
	if err := ctx.Err(); err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	var defs definitions
	if err := xml.NewDecoder(r).Decode(&defs); err != nil {
		return nil, diagram.NewLoadError(name, fmt.Errorf("%w: %w", diagram.ErrInvalidDiagram, err))
	}

	if len(defs.Processes) == 0 {
		return nil, diagram.NewLoadError(name, fmt.Errorf("%w: document contains no process", diagram.ErrInvalidDiagram))
	}

	proc := defs.Processes[0]

	d := &diagram.Diagram{
		Name: name,
		Process: diagram.Process{
			ID:    proc.ID,
			Title: proc.Name,
		},
	}

	if err := diagram.DecodeProcessAttributes(kitodoAttributes(proc.Attrs), &d.Process); err != nil {
		return nil, diagram.NewLoadError(name, fmt.Errorf("%w: %w", diagram.ErrInvalidDiagram, err))
	}

	graph, err := buildGraph(proc.Elements)
	if err != nil {
		return nil, diagram.NewLoadError(name, err)
	}

	d.Graph = graph

	return d, nil
}

func buildGraph(elements []element) (*diagram.Graph, error) {
	b := diagram.NewBuilder()
	stops := make(map[string]bool)

	for _, el := range elements {
		switch el.XMLName.Local {
		case "startEvent":
			b.Start(el.ID)
		case "task", "userTask", "manualTask", "serviceTask", "scriptTask",
			"sendTask", "receiveTask", "businessRuleTask":
			script := el.XMLName.Local == "scriptTask"

			attrs, err := diagram.DecodeStepAttributes(kitodoAttributes(el.Attrs), script)
			if err != nil {
				return nil, fmt.Errorf("%w: task %q: %w", diagram.ErrInvalidDiagram, el.ID, err)
			}

			b.Step(el.ID, el.Name, attrs)
		case "exclusiveGateway", "parallelGateway", "inclusiveGateway", "eventBasedGateway", "complexGateway":
			b.Gateway(el.ID, el.Name, direction(el.Direction))
		case "sequenceFlow":
		default:
			// End events, intermediate events and other flow elements end a path.
			if el.ID != "" {
				stops[el.ID] = true
			}
		}
	}

	for _, el := range elements {
		if el.XMLName.Local != "sequenceFlow" {
			continue
		}

		if stops[el.TargetRef] || stops[el.SourceRef] {
			continue
		}

		condition := ""
		if el.Condition != nil {
			condition = strings.TrimSpace(el.Condition.Text)
		}

		b.FlowByKey(el.ID, el.SourceRef, el.TargetRef, condition)
	}

	return b.Build()
}

func kitodoAttributes(attrs []xml.Attr) map[string]any {
	raw := make(map[string]any, len(attrs))

	for _, attr := range attrs {
		if attr.Name.Space == Namespace || undeclaredPrefixes[attr.Name.Space] {
			raw[attr.Name.Local] = attr.Value
		}
	}

	return raw
}

func direction(value string) diagram.GatewayDirection {
	switch diagram.GatewayDirection(value) {
	case diagram.GatewayDiverging:
		return diagram.GatewayDiverging
	case diagram.GatewayConverging:
		return diagram.GatewayConverging
	case diagram.GatewayMixed:
		return diagram.GatewayMixed
	default:
		return diagram.GatewayUnspecified
	}
}
