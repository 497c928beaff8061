package diagram

import (
	"context"
	"time"
)

// Process holds the process-level properties of a diagram.
type Process struct {
	ID         string `json:"id"          mapstructure:"-"`          // Identifies the workflow together with the diagram name
	Title      string `json:"title"       mapstructure:"-"`          // Becomes the template title
	OutputName string `json:"output_name" mapstructure:"outputName"`
	DocketID   int64  `json:"docket_id"   mapstructure:"docket"`  // <= 0 means no docket
	RulesetID  int64  `json:"ruleset_id"  mapstructure:"ruleset"` // <= 0 means no ruleset
}

// Diagram is a loaded diagram resource.
type Diagram struct {
	Name    string // Resource name the diagram was loaded from, without extension
	Process Process
	Graph   *Graph
}

// Loader turns a named diagram resource into a Diagram.
type Loader interface {
	Load(ctx context.Context, name string) (*Diagram, error)
}

// Source is a Loader that can also report on the resources it serves.
type Source interface {
	Loader
	Modified(ctx context.Context, name string) (time.Time, error)
	List(ctx context.Context) ([]string, error)
}
